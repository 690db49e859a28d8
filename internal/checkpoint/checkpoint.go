package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/frigov/sicrawler/internal/frontier"
	"github.com/frigov/sicrawler/internal/metadata"
	"github.com/frigov/sicrawler/pkg/failure"
)

/*
Responsibilities
- Freeze the frontier's pending/visited state to disk
- Thaw a prior run's state back into a fresh Frontier
- Never fail the crawl - every failure here is reported and absorbed

A checkpoint is a snapshot of Frontier state only (§4.9); the store holds
everything already persisted, so nothing else needs freezing.
*/

// document is the on-disk JSON shape. SavedAt is metadata only - Load does
// not use it for anything beyond what a reader might want to inspect.
type document struct {
	SavedAt  time.Time         `json:"saved_at"`
	Frontier frontier.Snapshot `json:"frontier"`
}

// Checkpointer persists and restores frontier.Snapshot values to a single
// JSON file on disk, reporting every failure through sink without ever
// returning a severity the caller must treat as fatal.
type Checkpointer struct {
	path string
	sink metadata.MetadataSink
}

// NewCheckpointer builds a Checkpointer writing to path and reporting
// through sink.
func NewCheckpointer(path string, sink metadata.MetadataSink) Checkpointer {
	return Checkpointer{path: path, sink: sink}
}

// Save writes snapshot to c.path atomically: the new content is written to
// a sibling temp file first, then renamed over the destination, so a crash
// mid-write never leaves a half-written checkpoint behind.
func (c Checkpointer) Save(snapshot frontier.Snapshot) failure.ClassifiedError {
	doc := document{SavedAt: time.Now(), Frontier: snapshot}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		cerr := &CheckpointError{Message: err.Error(), Cause: ErrCauseDecodeFailure}
		c.recordError("Checkpointer.Save", cerr)
		return cerr
	}

	dir := filepath.Dir(c.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			cerr := &CheckpointError{Message: err.Error(), Cause: ErrCauseWriteFailure}
			c.recordError("Checkpointer.Save", cerr)
			return cerr
		}
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		cerr := &CheckpointError{Message: err.Error(), Cause: ErrCauseWriteFailure}
		c.recordError("Checkpointer.Save", cerr)
		return cerr
	}
	if err := os.Rename(tmp, c.path); err != nil {
		cerr := &CheckpointError{Message: err.Error(), Cause: ErrCauseWriteFailure}
		c.recordError("Checkpointer.Save", cerr)
		return cerr
	}

	c.sink.RecordArtifact(
		metadata.ArtifactCheckpoint,
		c.path,
		[]metadata.Attribute{metadata.NewAttr(metadata.AttrWritePath, c.path)},
	)
	return nil
}

// Load reads and decodes c.path into a frontier.Snapshot. A missing file is
// not an error - it returns a zero-value Snapshot so a fresh crawl starts
// empty. Any other failure (unreadable or malformed file) is reported and
// likewise absorbed into an empty Snapshot: per §4.9/§7.9 a corrupt
// checkpoint degrades to a cold start, it never aborts the run.
func (c Checkpointer) Load() (frontier.Snapshot, failure.ClassifiedError) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return frontier.Snapshot{}, nil
		}
		cerr := &CheckpointError{Message: err.Error(), Cause: ErrCauseReadFailure}
		c.recordError("Checkpointer.Load", cerr)
		return frontier.Snapshot{}, cerr
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		cerr := &CheckpointError{Message: err.Error(), Cause: ErrCauseDecodeFailure}
		c.recordError("Checkpointer.Load", cerr)
		return frontier.Snapshot{}, cerr
	}

	return doc.Frontier, nil
}

func (c Checkpointer) recordError(action string, err *CheckpointError) {
	if c.sink == nil {
		return
	}
	c.sink.RecordError(
		time.Now(),
		"checkpoint",
		action,
		metadata.CauseStorageFailure,
		err.Error(),
		[]metadata.Attribute{metadata.NewAttr(metadata.AttrWritePath, c.path)},
	)
}
