// Package store persists jobs, sections and change logs. All writes are
// idempotent by (jobID[, sectionKey]): a retried write after a crash
// overwrites the same record instead of duplicating it.
package store

import (
	"context"
	"errors"

	"github.com/pagecraft/api/internal/model"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrVerification = errors.New("read-back verification failed")
)

// Store is the persistence boundary of the pipeline.
type Store interface {
	UpsertJob(ctx context.Context, job *model.GenerationJob) error
	GetJob(ctx context.Context, jobID string) (*model.GenerationJob, error)

	// UpsertSection writes a section and verifies the write by reading it
	// back, so the resume flow can trust what it finds.
	UpsertSection(ctx context.Context, sec *model.Section) error
	GetSection(ctx context.Context, jobID, key string) (*model.Section, error)
	ListSections(ctx context.Context, jobID string) ([]*model.Section, error)

	// AppendChangeLog stores the full ordered log for a job in one write;
	// repeating the flush after a retry yields the same single record.
	AppendChangeLog(ctx context.Context, jobID string, entries []model.ChangeLogEntry) error
	GetChangeLog(ctx context.Context, jobID string) ([]model.ChangeLogEntry, error)
}
