package crawl

import (
	"fmt"

	"github.com/frigov/sicrawler/pkg/failure"
)

// CrawlErrorCause classifies a fatal failure raised while turning a
// dequeued token into a PageRaw - anything short of this (network errors,
// non-OK statuses, disallowed robots) is a normal terminal PageRaw, not an
// error, per §7's error taxonomy. Only conditions the taxonomy calls
// "malformed HTML / parser failure"-grade reach this type.
type CrawlErrorCause string

const (
	ErrCauseMalformedContent CrawlErrorCause = "malformed content"
	ErrCauseStoreFailure     CrawlErrorCause = "store failure"
)

// CrawlError is raised by worker-loop stages whose failure must terminate
// the owning worker (§7.4, §7.7): a malformed-document parse panic recovered
// at the boundary, or a store write that failed outright.
type CrawlError struct {
	Message string
	Cause   CrawlErrorCause
}

func (e *CrawlError) Error() string {
	return fmt.Sprintf("crawl error: %s: %s", e.Cause, e.Message)
}

func (e *CrawlError) Severity() failure.Severity {
	return failure.SeverityFatal
}

var _ failure.ClassifiedError = (*CrawlError)(nil)
