// Package tracker records every deviation from the brief's plan. The log is
// held in memory for the duration of the run and flushed once at
// finalization; a retried finalize rewrites the same record.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/pagecraft/api/internal/model"
	"github.com/pagecraft/api/internal/store"
)

type Tracker struct {
	mu      sync.Mutex
	jobID   string
	entries []model.ChangeLogEntry
	flushed bool
}

func New(jobID string) *Tracker {
	return &Tracker{jobID: jobID}
}

// Log appends one deviation. Safe for concurrent sections in a batch.
func (t *Tracker) Log(pass model.PassID, sectionKey string, changeType model.ChangeType, detail string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, model.ChangeLogEntry{
		Seq:        len(t.entries) + 1,
		Pass:       pass,
		SectionKey: sectionKey,
		Type:       changeType,
		Detail:     detail,
		At:         time.Now(),
	})
}

// Restore seeds the tracker with entries persisted by an interrupted run so
// the final flush carries the complete history.
func (t *Tracker) Restore(entries []model.ChangeLogEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.entries) > 0 {
		return
	}
	t.entries = append(t.entries, entries...)
}

// Entries returns a snapshot of the accumulated log.
func (t *Tracker) Entries() []model.ChangeLogEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.ChangeLogEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Finalize flushes the whole log in a single idempotent write.
func (t *Tracker) Finalize(ctx context.Context, st store.Store) error {
	t.mu.Lock()
	entries := make([]model.ChangeLogEntry, len(t.entries))
	copy(entries, t.entries)
	t.mu.Unlock()

	if err := st.AppendChangeLog(ctx, t.jobID, entries); err != nil {
		return err
	}
	t.mu.Lock()
	t.flushed = true
	t.mu.Unlock()
	return nil
}
