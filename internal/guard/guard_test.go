package guard

import (
	"testing"

	"github.com/pagecraft/api/internal/model"
)

func counts(headings, images, lists, tables int) model.StructuralCounts {
	return model.StructuralCounts{Headings: headings, Images: images, Lists: lists, Tables: tables}
}

func TestImageDecreaseAlwaysBlocks(t *testing.T) {
	before := counts(1, 2, 0, 0)
	after := counts(1, 1, 0, 0)

	v := Check(before, after, 1000, 1000, Requirements{})
	if v.Allow {
		t.Fatal("expected block on image decrease")
	}

	// over-budget formats never soften image loss
	v = Check(before, after, 1000, 1000, Requirements{ListOverBudget: true, TableOverBudget: true})
	if v.Allow {
		t.Fatal("expected block on image decrease even over budget")
	}
}

func TestHeadingDecreaseBlocks(t *testing.T) {
	v := Check(counts(2, 0, 0, 0), counts(1, 0, 0, 0), 500, 500, Requirements{})
	if v.Allow {
		t.Fatal("expected block on heading decrease")
	}
}

func TestListDecreaseWithinBudgetBlocks(t *testing.T) {
	v := Check(counts(1, 0, 1, 0), counts(1, 0, 0, 0), 500, 500, Requirements{})
	if v.Allow {
		t.Fatal("expected block: document within list budget")
	}
}

func TestListDecreaseOverBudgetIsTrimmed(t *testing.T) {
	v := Check(counts(1, 0, 2, 0), counts(1, 0, 1, 0), 500, 500, Requirements{ListOverBudget: true})
	if !v.Allow {
		t.Fatalf("expected trim tolerated over budget, got block: %s", v.Reason)
	}
	if len(v.Trimmed) != 1 {
		t.Fatalf("expected one trim record, got %v", v.Trimmed)
	}
}

func TestRequiredListRemovalBlocksEvenOverBudget(t *testing.T) {
	req := Requirements{RequiredFormat: model.FormatList, ListOverBudget: true}
	v := Check(counts(1, 0, 1, 0), counts(1, 0, 0, 0), 500, 500, req)
	if v.Allow {
		t.Fatal("expected block: brief-required list is load-bearing")
	}
}

func TestRequiredTableRemovalBlocksEvenOverBudget(t *testing.T) {
	req := Requirements{RequiredFormat: model.FormatTable, TableOverBudget: true}
	v := Check(counts(1, 0, 0, 1), counts(1, 0, 0, 0), 500, 500, req)
	if v.Allow {
		t.Fatal("expected block: brief-required table is load-bearing")
	}
}

func TestTextHalvingBlocks(t *testing.T) {
	v := Check(counts(1, 0, 0, 0), counts(1, 0, 0, 0), 1000, 499, Requirements{})
	if v.Allow {
		t.Fatal("expected block when text shrinks past half")
	}

	v = Check(counts(1, 0, 0, 0), counts(1, 0, 0, 0), 1000, 500, Requirements{})
	if !v.Allow {
		t.Fatalf("expected exactly half to pass, got block: %s", v.Reason)
	}
}

func TestIncreasesAlwaysAllowed(t *testing.T) {
	v := Check(counts(1, 0, 0, 0), counts(3, 2, 1, 1), 500, 2000, Requirements{})
	if !v.Allow {
		t.Fatalf("expected growth to pass, got block: %s", v.Reason)
	}
	if len(v.Trimmed) != 0 {
		t.Fatalf("unexpected trim records: %v", v.Trimmed)
	}
}

// Applying the guard after every step of a pipeline means the image count
// can never decrease across any accepted prefix of passes.
func TestImageCountMonotonicAcrossAcceptedSteps(t *testing.T) {
	steps := []model.StructuralCounts{
		counts(1, 0, 0, 0),
		counts(1, 1, 0, 0),
		counts(1, 2, 1, 0),
		counts(1, 1, 1, 0), // regression, must be rejected
		counts(1, 3, 1, 0),
	}

	accepted := steps[0]
	for _, next := range steps[1:] {
		v := Check(accepted, next, 1000, 1000, Requirements{})
		if v.Allow {
			if next.Images < accepted.Images {
				t.Fatalf("accepted an image regression %d -> %d", accepted.Images, next.Images)
			}
			accepted = next
		}
	}
	if accepted.Images != 3 {
		t.Fatalf("expected final accepted image count 3, got %d", accepted.Images)
	}
}
