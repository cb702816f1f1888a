package pass

import (
	"fmt"
	"strings"

	"github.com/pagecraft/api/internal/config"
	"github.com/pagecraft/api/internal/markdown"
	"github.com/pagecraft/api/internal/model"
)

// Budget is the document-level format budget, computed once per document
// before a budgeted pass runs.
type Budget struct {
	ListSlots     int // sections allowed to carry a list
	TableSlots    int
	ListSections  int // sections currently carrying one
	TableSections int
}

func ComputeBudget(sections []*model.Section, cfg config.PipelineConfig) Budget {
	n := len(sections)
	b := Budget{
		ListSlots:  int(cfg.ListBudget * float64(n)),
		TableSlots: int(cfg.TableBudget * float64(n)),
	}
	for _, sec := range sections {
		if sec.Counts.Lists > 0 {
			b.ListSections++
		}
		if sec.Counts.Tables > 0 {
			b.TableSections++
		}
	}
	return b
}

func (b Budget) ListsOver() bool  { return b.ListSections > b.ListSlots }
func (b Budget) TablesOver() bool { return b.TableSections > b.TableSlots }

var headingCues = []string{"how ", "how-", "steps", "step-by-step", " vs ", "versus", "compare", "comparison", "guide", "process"}

// visualCriteria is the ≥2-of-4 rule for unplanned image placements: long
// section, structured content, process/comparison heading, keyword-dense
// outline entry.
func visualCriteria(sec *model.Section, jc *JobContext) int {
	met := 0
	if sec.Counts.Words >= 250 {
		met++
	}
	if sec.Counts.Lists+sec.Counts.Tables >= 1 {
		met++
	}
	lower := strings.ToLower(sec.Heading)
	for _, cue := range headingCues {
		if strings.Contains(lower, cue) {
			met++
			break
		}
	}
	if item := jc.Brief.OutlineItemFor(sec.Key); item != nil && len(item.Keywords) >= 2 {
		met++
	}
	return met
}

// Definitions builds the section-level pass table. The introduction, quality
// audit and metadata stages operate on the whole document and live in the
// orchestrator.
func Definitions(cfg config.PipelineConfig) map[model.PassID]*Definition {
	validateBody := func(_ *model.Section, out string, _ *JobContext) error {
		if strings.TrimSpace(out) == "" {
			return fmt.Errorf("empty body")
		}
		return nil
	}

	defs := map[model.PassID]*Definition{
		model.PassDraft: {
			ID:          model.PassDraft,
			BatchSize:   cfg.ParallelBatch,
			BuildPrompt: draftPrompt,
			Validate: func(sec *model.Section, out string, jc *JobContext) error {
				c := markdown.Census(out)
				if c.Words < cfg.MinSectionWords {
					return fmt.Errorf("body too short: %d words, need at least %d", c.Words, cfg.MinSectionWords)
				}
				if c.Headings > 0 {
					return fmt.Errorf("body must not contain heading lines")
				}
				return nil
			},
		},

		model.PassHeadings: {
			ID:          model.PassHeadings,
			BatchSize:   cfg.ParallelBatch,
			BuildPrompt: headingPrompt,
			Validate: func(_ *model.Section, out string, _ *JobContext) error {
				out = strings.TrimSpace(out)
				if out == "" {
					return fmt.Errorf("empty heading")
				}
				if strings.Contains(out, "\n") {
					return fmt.Errorf("heading must be a single line")
				}
				if strings.HasPrefix(out, "#") {
					return fmt.Errorf("heading must not carry markdown markers")
				}
				if len(out) > 120 {
					return fmt.Errorf("heading too long: %d characters", len(out))
				}
				return nil
			},
			Commit: func(sec *model.Section, out string, jc *JobContext) string {
				out = strings.TrimSpace(out)
				if out != sec.Heading {
					jc.Tracker.Log(model.PassHeadings, sec.Key, model.ChangeHeadingRewritten,
						fmt.Sprintf("%q -> %q", sec.Heading, out))
					sec.Heading = out
				}
				return sec.Content
			},
		},

		model.PassFormat: {
			ID:          model.PassFormat,
			BatchSize:   cfg.ParallelBatch,
			Protected:   true,
			BuildPrompt: formatPrompt,
			SelectAll:   selectFormat,
			Validate: func(sec *model.Section, out string, jc *JobContext) error {
				c := markdown.Census(out)
				wantTable := false
				if item := jc.Brief.OutlineItemFor(sec.Key); item != nil {
					wantTable = item.Format == model.FormatTable
				}
				if wantTable && c.Tables <= sec.Counts.Tables {
					return fmt.Errorf("a markdown table is required")
				}
				if !wantTable && c.Lists <= sec.Counts.Lists {
					return fmt.Errorf("a markdown list is required")
				}
				if !markdown.StructuresIntroduced(out) {
					return fmt.Errorf("every list or table must be preceded by an introducing sentence")
				}
				return nil
			},
		},

		model.PassDiscourse: {
			ID:          model.PassDiscourse,
			BatchSize:   cfg.SequentialBatch,
			Sequential:  true,
			Protected:   true,
			BuildPrompt: discoursePrompt,
			Validate:    validateBody,
		},

		model.PassMicro: {
			ID:          model.PassMicro,
			BatchSize:   cfg.ParallelBatch,
			Protected:   true,
			BuildPrompt: microPrompt,
			Validate:    validateBody,
		},

		model.PassVisuals: {
			ID:        model.PassVisuals,
			BatchSize: cfg.ParallelBatch,
			Protected: true,
			SelectAll: selectVisuals,
			Transform: func(sec *model.Section, jc *JobContext) (string, bool) {
				if sec.Counts.Images > 0 {
					return sec.Content, false
				}
				desc := ""
				if slot := jc.Brief.PlannedImage(sec.Key); slot != nil {
					desc = slot.Description
				} else {
					desc = "Illustration: " + sec.Heading
					jc.Tracker.Log(model.PassVisuals, sec.Key, model.ChangeUnplannedImage,
						fmt.Sprintf("placement justified by %d/4 criteria", visualCriteria(sec, jc)))
				}
				return markdown.InsertAfterFirstParagraph(sec.Content, markdown.Placeholder(desc)), true
			},
		},

		model.PassPolish: {
			ID:          model.PassPolish,
			BatchSize:   cfg.SequentialBatch,
			Sequential:  true,
			Protected:   true,
			BuildPrompt: polishPrompt,
			Validate:    validateBody,
		},
	}
	return defs
}

// selectFormat picks under-budget sections that need structure they do not
// yet have. The budget is computed once per document; sections past the
// budget are skipped and the skip is logged as a plan deviation.
func selectFormat(jc *JobContext) (map[string]bool, map[string]string) {
	selected := make(map[string]bool)
	skipped := make(map[string]string)

	listSlots := jc.Budget.ListSlots - jc.Budget.ListSections
	tableSlots := jc.Budget.TableSlots - jc.Budget.TableSections

	for _, sec := range jc.Sections {
		item := jc.Brief.OutlineItemFor(sec.Key)
		if item == nil || item.Format == model.FormatProse {
			continue
		}
		switch item.Format {
		case model.FormatTable:
			if sec.Counts.Tables > 0 {
				continue
			}
			if tableSlots <= 0 {
				skipped[sec.Key] = "table budget exhausted"
				jc.Tracker.Log(model.PassFormat, sec.Key, model.ChangeBudgetSkipped, "table budget exhausted")
				continue
			}
			tableSlots--
			selected[sec.Key] = true
		case model.FormatList:
			if sec.Counts.Lists > 0 {
				continue
			}
			if listSlots <= 0 {
				skipped[sec.Key] = "list budget exhausted"
				jc.Tracker.Log(model.PassFormat, sec.Key, model.ChangeBudgetSkipped, "list budget exhausted")
				continue
			}
			listSlots--
			selected[sec.Key] = true
		}
	}
	return selected, skipped
}

// selectVisuals picks the plan-flagged sections plus any section meeting at
// least two of the four placement criteria.
func selectVisuals(jc *JobContext) (map[string]bool, map[string]string) {
	selected := make(map[string]bool)
	for _, sec := range jc.Sections {
		if jc.Brief.PlannedImage(sec.Key) != nil {
			selected[sec.Key] = true
			continue
		}
		if visualCriteria(sec, jc) >= 2 {
			selected[sec.Key] = true
		}
	}
	return selected, nil
}
