package pass

import (
	"strings"
	"testing"

	"github.com/pagecraft/api/internal/model"
)

func TestComputeBudget(t *testing.T) {
	sections := make([]*model.Section, 10)
	for i := range sections {
		sections[i] = &model.Section{Key: string(rune('a' + i))}
	}
	sections[0].Counts.Lists = 1
	sections[1].Counts.Lists = 2
	sections[2].Counts.Tables = 1

	b := ComputeBudget(sections, testPipelineCfg())
	if b.ListSlots != 4 || b.TableSlots != 1 {
		t.Errorf("slots = %d/%d, want 4/1", b.ListSlots, b.TableSlots)
	}
	if b.ListSections != 2 || b.TableSections != 1 {
		t.Errorf("carrying = %d/%d, want 2/1", b.ListSections, b.TableSections)
	}
	if b.ListsOver() || b.TablesOver() {
		t.Errorf("over = %v/%v, want false/false", b.ListsOver(), b.TablesOver())
	}
}

func TestBudgetOver(t *testing.T) {
	b := Budget{ListSlots: 2, ListSections: 3, TableSlots: 1, TableSections: 1}
	if !b.ListsOver() {
		t.Error("3 list sections over 2 slots should be over budget")
	}
	if b.TablesOver() {
		t.Error("1 table section within 1 slot is not over budget")
	}
}

func TestSelectFormatRespectsBudget(t *testing.T) {
	sections := []*model.Section{
		{Key: "s1", Heading: "One"},
		{Key: "s2", Heading: "Two"},
		{Key: "s3", Heading: "Three"},
	}
	jc := testJobContext(sections...)
	jc.Brief.Outline[0].Format = model.FormatList
	jc.Brief.Outline[1].Format = model.FormatList
	jc.Brief.Outline[2].Format = model.FormatTable
	jc.Budget = Budget{ListSlots: 1, TableSlots: 1}

	selected, skipped := selectFormat(jc)
	if !selected["s1"] {
		t.Error("first list-required section not selected")
	}
	if selected["s2"] {
		t.Error("second list-required section selected past the budget")
	}
	if skipped["s2"] == "" {
		t.Error("budget skip carries no reason")
	}
	if !selected["s3"] {
		t.Error("table-required section not selected")
	}

	var logged bool
	for _, e := range jc.Tracker.Entries() {
		if e.Type == model.ChangeBudgetSkipped && e.SectionKey == "s2" {
			logged = true
		}
	}
	if !logged {
		t.Error("budget skip missing from change log")
	}
}

func TestSelectFormatSkipsSatisfiedSections(t *testing.T) {
	sections := []*model.Section{
		{Key: "s1", Heading: "One", Counts: model.StructuralCounts{Lists: 1}},
	}
	jc := testJobContext(sections...)
	jc.Brief.Outline[0].Format = model.FormatList
	jc.Budget = Budget{ListSlots: 2}

	selected, skipped := selectFormat(jc)
	if len(selected) != 0 || len(skipped) != 0 {
		t.Errorf("selected=%v skipped=%v, section already has its list", selected, skipped)
	}
}

func TestVisualCriteria(t *testing.T) {
	jc := testJobContext()
	jc.Brief.Outline = []model.OutlineItem{
		{Key: "rich", Heading: "How to deploy", Keywords: []string{"deploy", "rollback"}},
		{Key: "plain", Heading: "Background"},
	}

	rich := &model.Section{
		Key:     "rich",
		Heading: "How to deploy",
		Counts:  model.StructuralCounts{Words: 300, Lists: 1},
	}
	if got := visualCriteria(rich, jc); got != 4 {
		t.Errorf("criteria = %d, want 4", got)
	}

	plain := &model.Section{
		Key:     "plain",
		Heading: "Background",
		Counts:  model.StructuralCounts{Words: 100},
	}
	if got := visualCriteria(plain, jc); got != 0 {
		t.Errorf("criteria = %d, want 0", got)
	}
}

func TestSelectVisuals(t *testing.T) {
	jc := testJobContext(
		&model.Section{Key: "planned", Heading: "Planned", Counts: model.StructuralCounts{Words: 50}},
		&model.Section{Key: "earned", Heading: "Steps to compare", Counts: model.StructuralCounts{Words: 300}},
		&model.Section{Key: "neither", Heading: "Background", Counts: model.StructuralCounts{Words: 50}},
	)
	jc.Brief.ImagePlan = []model.ImageSlot{{SectionKey: "planned", Description: "Diagram"}}

	selected, _ := selectVisuals(jc)
	if !selected["planned"] {
		t.Error("plan-flagged section not selected")
	}
	if !selected["earned"] {
		t.Error("section meeting two criteria not selected")
	}
	if selected["neither"] {
		t.Error("section meeting no criteria selected")
	}
}

func TestVisualTransformPlacesPlaceholder(t *testing.T) {
	defs := Definitions(testPipelineCfg())
	def := defs[model.PassVisuals]

	sec := &model.Section{
		Key:     "s1",
		Heading: "How it works",
		Content: "First paragraph explains the idea.\n\nSecond paragraph adds detail.",
	}
	jc := testJobContext(sec)
	jc.Brief.ImagePlan = []model.ImageSlot{{SectionKey: "s1", Description: "Flow diagram"}}

	out, changed := def.Transform(sec, jc)
	if !changed {
		t.Fatal("transform reported no change")
	}
	if !strings.Contains(out, "![Flow diagram](placeholder)") {
		t.Errorf("output lacks planned placeholder: %q", out)
	}
	idx := strings.Index(out, "![")
	if idx < strings.Index(out, "First paragraph") {
		t.Error("placeholder landed before the first paragraph")
	}
	if len(jc.Tracker.Entries()) != 0 {
		t.Error("planned placement logged as a deviation")
	}
}

func TestVisualTransformLogsUnplannedPlacement(t *testing.T) {
	defs := Definitions(testPipelineCfg())
	def := defs[model.PassVisuals]

	sec := &model.Section{
		Key:     "s1",
		Heading: "Steps to follow",
		Content: "A paragraph of prose.\n\nAnother paragraph.",
		Counts:  model.StructuralCounts{Words: 300, Lists: 1},
	}
	jc := testJobContext(sec)

	out, changed := def.Transform(sec, jc)
	if !changed || !strings.Contains(out, "](placeholder)") {
		t.Fatalf("transform output = %q, changed = %v", out, changed)
	}

	logged := jc.Tracker.Entries()
	if len(logged) != 1 || logged[0].Type != model.ChangeUnplannedImage {
		t.Errorf("change log = %+v, want unplanned_image", logged)
	}
}

func TestVisualTransformSkipsSectionsWithImages(t *testing.T) {
	defs := Definitions(testPipelineCfg())
	def := defs[model.PassVisuals]

	sec := &model.Section{
		Key:     "s1",
		Heading: "H",
		Content: "Text.\n\n![existing](placeholder)",
		Counts:  model.StructuralCounts{Images: 1},
	}
	jc := testJobContext(sec)

	out, changed := def.Transform(sec, jc)
	if changed {
		t.Errorf("transform changed a section that already has an image: %q", out)
	}
}

func TestHeadingCommitLogsRewrite(t *testing.T) {
	defs := Definitions(testPipelineCfg())
	def := defs[model.PassHeadings]

	sec := &model.Section{Key: "s1", Heading: "Old Heading", Content: "body text"}
	jc := testJobContext(sec)

	got := def.Commit(sec, "New Heading", jc)
	if got != "body text" {
		t.Errorf("commit returned %q, the body must be untouched", got)
	}
	if sec.Heading != "New Heading" {
		t.Errorf("heading = %q", sec.Heading)
	}

	logged := jc.Tracker.Entries()
	if len(logged) != 1 || logged[0].Type != model.ChangeHeadingRewritten {
		t.Errorf("change log = %+v, want heading_rewritten", logged)
	}

	// committing the same heading again is not a rewrite
	def.Commit(sec, "New Heading", jc)
	if len(jc.Tracker.Entries()) != 1 {
		t.Error("unchanged heading logged as a rewrite")
	}
}

func TestHeadingValidation(t *testing.T) {
	defs := Definitions(testPipelineCfg())
	validate := defs[model.PassHeadings].Validate

	if err := validate(nil, "Clean Heading", nil); err != nil {
		t.Errorf("valid heading rejected: %v", err)
	}
	if err := validate(nil, "two\nlines", nil); err == nil {
		t.Error("multi-line heading accepted")
	}
	if err := validate(nil, "# Marked", nil); err == nil {
		t.Error("markdown-marked heading accepted")
	}
	if err := validate(nil, strings.Repeat("x", 121), nil); err == nil {
		t.Error("overlong heading accepted")
	}
}

func TestDraftValidation(t *testing.T) {
	defs := Definitions(testPipelineCfg())
	validate := defs[model.PassDraft].Validate

	long := strings.Repeat("Useful words fill this body with content for the reader today. ", 10)
	if err := validate(nil, long, nil); err != nil {
		t.Errorf("valid draft rejected: %v", err)
	}
	if err := validate(nil, "too short", nil); err == nil {
		t.Error("thin draft accepted")
	}
	if err := validate(nil, "## Heading\n\n"+long, nil); err == nil {
		t.Error("draft with heading lines accepted")
	}
}
