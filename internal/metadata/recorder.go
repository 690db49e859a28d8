package metadata

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

/*
Metadata Collected
- Fetch timestamps
- HTTP status codes
- Content hashes
- Crawl depth

Logging Goals
- Debuggable crawl behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred.

Allowed:
- Primitive values
- Timestamps
- URLs (as values, not objects with behavior)
- Hashes
- Status codes
- Durations
- Identifiers (page ID, crawl ID)
*/

// Recorder fans every observation out to three independent loggers: a
// console/debug stream, a warnings file, and an errors file. None of the
// three ever return an error to the caller - a slow or unwritable sink must
// never perturb crawl control flow.
type Recorder struct {
	mu sync.Mutex

	debugLog *log.Logger
	warnLog  *log.Logger
	errLog   *log.Logger

	closers []io.Closer
}

// NewRecorder builds a Recorder writing debug lines to stdout and
// warnings/errors to timestamped files under logDir. An empty logDir keeps
// warnings and errors on stderr only (useful for tests and dry runs).
func NewRecorder(logDir string) (*Recorder, error) {
	r := &Recorder{
		debugLog: log.New(os.Stdout, "[debug] ", log.LstdFlags),
		warnLog:  log.New(os.Stderr, "[warn] ", log.LstdFlags),
		errLog:   log.New(os.Stderr, "[error] ", log.LstdFlags),
	}

	if logDir == "" {
		return r, nil
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, err
	}

	warnFile, err := os.OpenFile(filepath.Join(logDir, "warnings.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	errFile, err := os.OpenFile(filepath.Join(logDir, "errors.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		warnFile.Close()
		return nil, err
	}

	r.warnLog = log.New(io.MultiWriter(os.Stderr, warnFile), "[warn] ", log.LstdFlags)
	r.errLog = log.New(io.MultiWriter(os.Stderr, errFile), "[error] ", log.LstdFlags)
	r.closers = append(r.closers, warnFile, errFile)
	return r, nil
}

// Close releases the underlying log files. Safe to call on a Recorder built
// with an empty logDir.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Recorder) RecordFetch(fetchURL string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.debugLog.Printf("fetch url=%s status=%d duration=%s content_type=%s retries=%d depth=%d",
		fetchURL, httpStatus, duration, contentType, retryCount, crawlDepth)
}

func (r *Recorder) RecordAssetFetch(fetchURL string, httpStatus int, duration time.Duration, retryCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.debugLog.Printf("asset_fetch url=%s status=%d duration=%s retries=%d", fetchURL, httpStatus, duration, retryCount)
}

func (r *Recorder) RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, errorString string, attrs []Attribute) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errLog.Printf("pkg=%s action=%s cause=%d error=%q attrs=%s observed_at=%s",
		packageName, action, cause, errorString, formatAttrs(attrs), observedAt.Format(time.RFC3339))
}

// RecordWarning is an additive observation point - not part of
// MetadataSink - used by callers that distinguish a recoverable anomaly
// from a hard error without promoting it to RecordError.
func (r *Recorder) RecordWarning(packageName string, action string, message string, attrs []Attribute) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnLog.Printf("pkg=%s action=%s message=%q attrs=%s", packageName, action, message, formatAttrs(attrs))
}

func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.debugLog.Printf("artifact kind=%s path=%s attrs=%s", kind, path, formatAttrs(attrs))
}

func (r *Recorder) RecordFinalCrawlStats(totalPages int, totalErrors int, totalAssets int, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.debugLog.Printf("crawl_finished pages=%d errors=%d assets=%d duration=%s", totalPages, totalErrors, totalAssets, duration)
}

func formatAttrs(attrs []Attribute) string {
	out := ""
	for i, a := range attrs {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%s=%s", a.Key, a.Value)
	}
	return out
}

// NoopSink discards every observation. Used by tests and by components
// constructed without a Recorder.
type NoopSink struct{}

func NewNoopSink() NoopSink { return NoopSink{} }

func (NoopSink) RecordFetch(string, int, time.Duration, string, int, int)                 {}
func (NoopSink) RecordAssetFetch(string, int, time.Duration, int)                         {}
func (NoopSink) RecordError(time.Time, string, string, ErrorCause, string, []Attribute)    {}
func (NoopSink) RecordArtifact(ArtifactKind, string, []Attribute)                         {}
func (NoopSink) RecordFinalCrawlStats(int, int, int, time.Duration)                       {}
