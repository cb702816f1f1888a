package model

import "time"

// GenerationStartRequest starts a pipeline run for a brief.
type GenerationStartRequest struct {
	Brief Brief `json:"brief" validate:"required"`
}

// GenerationStartResponse acknowledges a queued job.
type GenerationStartResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// GenerationStatusResponse reports job lifecycle state.
type GenerationStatusResponse struct {
	JobID       string     `json:"jobId"`
	Status      JobStatus  `json:"status"`
	CurrentPass PassID     `json:"currentPass,omitempty"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// ProgressSnapshot is the fine-grained progress view consumed by the UI.
type ProgressSnapshot struct {
	JobID           string                `json:"jobId"`
	Status          JobStatus             `json:"status"`
	CurrentPass     PassID                `json:"currentPass,omitempty"`
	SectionFraction float64               `json:"sectionFraction"` // completion within the current pass
	Passes          map[PassID]PassStatus `json:"passes"`
	Verdict         *QualityVerdict       `json:"verdict,omitempty"`
}

// GenerationResultResponse delivers a finished document. Blocked documents
// are never delivered through this response.
type GenerationResultResponse struct {
	JobID     string           `json:"jobId"`
	Status    JobStatus        `json:"status"`
	Result    DocumentResult   `json:"result"`
	Verdict   QualityVerdict   `json:"verdict"`
	ChangeLog []ChangeLogEntry `json:"changeLog,omitempty"`
}

// GenerationCancelResponse acknowledges a cancel request. An in-flight pass
// finishes before the cancellation takes effect.
type GenerationCancelResponse struct {
	Success bool      `json:"success"`
	JobID   string    `json:"jobId"`
	Status  JobStatus `json:"status"`
}
