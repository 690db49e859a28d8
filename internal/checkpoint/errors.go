package checkpoint

import (
	"fmt"

	"github.com/frigov/sicrawler/pkg/failure"
)

type CheckpointErrorCause string

const (
	ErrCauseWriteFailure CheckpointErrorCause = "write failure"
	ErrCauseReadFailure  CheckpointErrorCause = "read failure"
	ErrCauseDecodeFailure CheckpointErrorCause = "decode failure"
)

// CheckpointError always carries SeverityRecoverable: a checkpoint failure
// never aborts a crawl, it only means the run starts (or resumes) without a
// saved frontier state (§4.9/§7.9).
type CheckpointError struct {
	Message string
	Cause   CheckpointErrorCause
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint error (%s): %s", e.Cause, e.Message)
}

func (e *CheckpointError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

var _ failure.ClassifiedError = (*CheckpointError)(nil)
