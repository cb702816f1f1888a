package model

import "time"

// Finding is one structured observation from the quality gate.
type Finding struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	SectionKey string `json:"sectionKey,omitempty"`
}

// QualityVerdict is the gate's scoring outcome, computed once per job.
type QualityVerdict struct {
	Score              int       `json:"score"` // 0-100
	Class              GateClass `json:"class"`
	AlgorithmicScore   int       `json:"algorithmicScore"`
	ComplianceScore    int       `json:"complianceScore"`
	ConsistencyPenalty int       `json:"consistencyPenalty"`
	Findings           []Finding `json:"findings,omitempty"`
	ComputedAt         time.Time `json:"computedAt"`
}

// ChangeLogEntry records one deviation from the brief's plan. Entries are
// append-only for the duration of a run and flushed once at finalization.
type ChangeLogEntry struct {
	Seq        int        `json:"seq"`
	Pass       PassID     `json:"pass"`
	SectionKey string     `json:"sectionKey,omitempty"`
	Type       ChangeType `json:"type"`
	Detail     string     `json:"detail,omitempty"`
	At         time.Time  `json:"at"`
}
