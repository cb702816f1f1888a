package tracker

import (
	"context"
	"sync"
	"testing"

	"github.com/pagecraft/api/internal/model"
	"github.com/pagecraft/api/internal/store"
)

func TestLogAssignsSequence(t *testing.T) {
	tr := New("job-1")
	tr.Log(model.PassVisuals, "s1", model.ChangeUnplannedImage, "criteria met")
	tr.Log(model.PassFormat, "s2", model.ChangeBudgetSkipped, "list budget")

	entries := tr.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Seq != 1 || entries[1].Seq != 2 {
		t.Errorf("seq = %d, %d", entries[0].Seq, entries[1].Seq)
	}
	if entries[0].SectionKey != "s1" || entries[0].Type != model.ChangeUnplannedImage {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestConcurrentLog(t *testing.T) {
	tr := New("job-1")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Log(model.PassDraft, "s", model.ChangeSectionBlocked, "")
		}()
	}
	wg.Wait()

	entries := tr.Entries()
	if len(entries) != 20 {
		t.Fatalf("entries = %d, want 20", len(entries))
	}
	seen := make(map[int]bool)
	for _, e := range entries {
		if seen[e.Seq] {
			t.Fatalf("duplicate seq %d", e.Seq)
		}
		seen[e.Seq] = true
	}
}

func TestFinalizeFlushIdempotent(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	tr := New("job-1")
	tr.Log(model.PassPolish, "s1", model.ChangeStructureTrimmed, "lists 2 -> 1")

	if err := tr.Finalize(ctx, st); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := tr.Finalize(ctx, st); err != nil {
		t.Fatalf("second Finalize: %v", err)
	}

	got, _ := st.GetChangeLog(ctx, "job-1")
	if len(got) != 1 {
		t.Fatalf("entries = %d, want 1 after double flush", len(got))
	}
}

func TestRestoreSeedsOnceAndContinuesSequence(t *testing.T) {
	prior := []model.ChangeLogEntry{
		{Seq: 1, Pass: model.PassDraft, Type: model.ChangeSectionBlocked},
	}

	tr := New("job-1")
	tr.Restore(prior)
	tr.Restore(prior) // second restore is a no-op
	tr.Log(model.PassPolish, "s2", model.ChangeStructureTrimmed, "")

	entries := tr.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[1].Seq != 2 {
		t.Errorf("continued seq = %d, want 2", entries[1].Seq)
	}
}
