package normalize

import (
	"fmt"

	"github.com/frigov/sicrawler/internal/metadata"
	"github.com/frigov/sicrawler/pkg/failure"
)

type NormalizationErrorCause string

const (
	ErrCauseEmptyContent            NormalizationErrorCause = "empty content"
	ErrCauseSectionDerivationFailed NormalizationErrorCause = "section derivation failed"
	ErrCauseHashComputationFailed   NormalizationErrorCause = "hash computation failed"
)

type NormalizationError struct {
	Message   string
	Retryable bool
	Cause     NormalizationErrorCause
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalization error: %s", e.Cause)
}

func (e *NormalizationError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapNormalizationErrorToMetadataCause maps normalize-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapNormalizationErrorToMetadataCause(err NormalizationError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseEmptyContent:
		return metadata.CauseContentInvalid
	case ErrCauseSectionDerivationFailed:
		return metadata.CauseContentInvalid
	case ErrCauseHashComputationFailed:
		return metadata.CauseStorageFailure
	default:
		return metadata.CauseUnknown
	}
}
