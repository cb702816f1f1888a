package model

// Job status
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// Pass identifiers, in pipeline order
type PassID string

const (
	PassDraft      PassID = "draft"
	PassHeadings   PassID = "heading_optimization"
	PassFormat     PassID = "format_optimization"
	PassDiscourse  PassID = "discourse_integration"
	PassMicro      PassID = "microlinguistic"
	PassVisuals    PassID = "visual_placement"
	PassIntro      PassID = "introduction"
	PassPolish     PassID = "final_polish"
	PassAudit      PassID = "quality_audit"
	PassMetadata   PassID = "metadata_synthesis"
)

// PassOrder is the strict execution order of the pipeline. The introduction
// pass runs after the body-shaping passes so the intro can summarize a
// stable document.
var PassOrder = []PassID{
	PassDraft,
	PassHeadings,
	PassFormat,
	PassDiscourse,
	PassMicro,
	PassVisuals,
	PassIntro,
	PassPolish,
	PassAudit,
	PassMetadata,
}

// Per-pass status
type PassStatus string

const (
	PassNotStarted PassStatus = "not_started"
	PassRunning    PassStatus = "running"
	PassCompleted  PassStatus = "completed"
	PassFailed     PassStatus = "failed"
	PassSkipped    PassStatus = "skipped"
)

// Per-section outcome of one pass
type PassVerdict string

const (
	VerdictAccepted PassVerdict = "accepted"
	VerdictBlocked  PassVerdict = "blocked"
	VerdictRetried  PassVerdict = "retried"
)

// Gate classification
type GateClass string

const (
	GatePass  GateClass = "pass"
	GateWarn  GateClass = "warn"
	GateBlock GateClass = "block"
)

// Change log entry types
type ChangeType string

const (
	ChangeUnplannedImage   ChangeType = "unplanned_image"
	ChangeStructureBlocked ChangeType = "structure_blocked"
	ChangeStructureTrimmed ChangeType = "structure_trimmed"
	ChangeSectionBlocked   ChangeType = "section_blocked"
	ChangeBudgetSkipped    ChangeType = "budget_skipped"
	ChangeHeadingRewritten ChangeType = "heading_rewritten"
)

// Structural formats a brief can require for a section's answer
type AnswerFormat string

const (
	FormatProse AnswerFormat = ""
	FormatList  AnswerFormat = "list"
	FormatTable AnswerFormat = "table"
)
