package store

import (
	"context"
	"testing"
	"time"

	"github.com/pagecraft/api/internal/model"
)

func TestJobRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	job := model.NewJob("job-1", model.Brief{
		ProjectID:  "p1",
		DocumentID: "d1",
		Title:      "Test",
		Outline:    []model.OutlineItem{{Key: "s1", Heading: "One"}},
	})
	if err := s.UpsertJob(ctx, job); err != nil {
		t.Fatalf("UpsertJob: %v", err)
	}

	got, err := s.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.ID != "job-1" || got.Status != model.JobStatusQueued {
		t.Errorf("job = %+v", got)
	}
	if len(got.Passes) != len(model.PassOrder) {
		t.Errorf("passes = %d, want %d", len(got.Passes), len(model.PassOrder))
	}

	// mutating the returned copy must not leak into the store
	got.Status = model.JobStatusFailed
	again, _ := s.GetJob(ctx, "job-1")
	if again.Status != model.JobStatusQueued {
		t.Error("store shares memory with callers")
	}
}

func TestGetJobNotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.GetJob(context.Background(), "nope"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpsertJobIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	job := model.NewJob("job-1", model.Brief{Title: "T"})
	s.UpsertJob(ctx, job)
	job.Status = model.JobStatusRunning
	s.UpsertJob(ctx, job)
	s.UpsertJob(ctx, job)

	got, _ := s.GetJob(ctx, "job-1")
	if got.Status != model.JobStatusRunning {
		t.Errorf("status = %s after repeated upserts", got.Status)
	}
}

func TestListSectionsOrdered(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, sec := range []*model.Section{
		{JobID: "j", Key: "c", Order: 3},
		{JobID: "j", Key: "a", Order: 1},
		{JobID: "j", Key: "b", Order: 2},
	} {
		if err := s.UpsertSection(ctx, sec); err != nil {
			t.Fatalf("UpsertSection: %v", err)
		}
	}

	secs, err := s.ListSections(ctx, "j")
	if err != nil {
		t.Fatalf("ListSections: %v", err)
	}
	if len(secs) != 3 {
		t.Fatalf("sections = %d, want 3", len(secs))
	}
	for i, want := range []string{"a", "b", "c"} {
		if secs[i].Key != want {
			t.Errorf("secs[%d].Key = %s, want %s", i, secs[i].Key, want)
		}
	}
}

func TestSectionHistorySurvivesRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	sec := &model.Section{JobID: "j", Key: "s1", Order: 1, Heading: "H"}
	sec.Record(model.PassDraft, "drafted body", model.StructuralCounts{Words: 2}, model.VerdictAccepted)
	s.UpsertSection(ctx, sec)

	got, err := s.GetSection(ctx, "j", "s1")
	if err != nil {
		t.Fatalf("GetSection: %v", err)
	}
	if got.Content != "drafted body" {
		t.Errorf("content = %q", got.Content)
	}
	if got.SnapshotFor(model.PassDraft) == nil {
		t.Error("draft snapshot lost in round trip")
	}
	if got.SnapshotFor(model.PassPolish) != nil {
		t.Error("phantom snapshot for a pass that never ran")
	}
}

func TestChangeLogReplacedWhole(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first := []model.ChangeLogEntry{
		{Seq: 1, Pass: model.PassVisuals, Type: model.ChangeUnplannedImage, At: time.Now()},
	}
	s.AppendChangeLog(ctx, "j", first)

	full := append(first, model.ChangeLogEntry{
		Seq: 2, Pass: model.PassPolish, Type: model.ChangeStructureTrimmed, At: time.Now(),
	})
	s.AppendChangeLog(ctx, "j", full)
	s.AppendChangeLog(ctx, "j", full) // retried flush

	got, err := s.GetChangeLog(ctx, "j")
	if err != nil {
		t.Fatalf("GetChangeLog: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2", len(got))
	}
	if got[0].Seq != 1 || got[1].Seq != 2 {
		t.Errorf("sequence = %d, %d", got[0].Seq, got[1].Seq)
	}
}
