// Package guard enforces the pipeline's structural non-regression rule:
// a pass may never silently destroy elements an earlier pass introduced.
package guard

import (
	"fmt"

	"github.com/pagecraft/api/internal/model"
)

// Requirements carries the document-level context a check needs: whether the
// brief demands a structure for this section, and whether the document
// exceeded its format budget before the edit.
type Requirements struct {
	RequiredFormat  model.AnswerFormat
	ListOverBudget  bool
	TableOverBudget bool
}

// Verdict is the guard's decision. Trimmed lists tolerated reductions the
// caller should record in the change log.
type Verdict struct {
	Allow   bool
	Reason  string
	Trimmed []string
}

func block(reason string) Verdict {
	return Verdict{Allow: false, Reason: reason}
}

// Check compares structural censuses before and after a proposed edit.
// Image loss always blocks. List/table loss blocks when the structure is
// brief-required or the document was still within its format budget;
// trimming structure that was already over budget is tolerated. A text
// shrink past half the original blocks outright.
func Check(before, after model.StructuralCounts, textLenBefore, textLenAfter int, req Requirements) Verdict {
	if after.Images < before.Images {
		return block(fmt.Sprintf("images reduced %d -> %d", before.Images, after.Images))
	}
	if after.Headings < before.Headings {
		return block(fmt.Sprintf("headings reduced %d -> %d", before.Headings, after.Headings))
	}

	var trimmed []string
	if after.Lists < before.Lists {
		// a brief-required list is load-bearing regardless of budget
		if req.RequiredFormat == model.FormatList {
			return block(fmt.Sprintf("required list removed (%d -> %d)", before.Lists, after.Lists))
		}
		if !req.ListOverBudget {
			return block(fmt.Sprintf("lists reduced %d -> %d while within budget", before.Lists, after.Lists))
		}
		trimmed = append(trimmed, fmt.Sprintf("lists %d -> %d", before.Lists, after.Lists))
	}
	if after.Tables < before.Tables {
		if req.RequiredFormat == model.FormatTable {
			return block(fmt.Sprintf("required table removed (%d -> %d)", before.Tables, after.Tables))
		}
		if !req.TableOverBudget {
			return block(fmt.Sprintf("tables reduced %d -> %d while within budget", before.Tables, after.Tables))
		}
		trimmed = append(trimmed, fmt.Sprintf("tables %d -> %d", before.Tables, after.Tables))
	}

	if textLenBefore > 0 && textLenAfter*2 < textLenBefore {
		return block(fmt.Sprintf("text shrank %d -> %d characters", textLenBefore, textLenAfter))
	}

	return Verdict{Allow: true, Trimmed: trimmed}
}
