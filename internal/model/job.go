package model

import (
	"fmt"
	"time"
)

// PassState tracks one pass of one job. Transitions are only performed
// through the methods below so an illegal sequence (e.g. completing a pass
// that never ran) cannot be persisted.
type PassState struct {
	Status      PassStatus `json:"status"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Reason      string     `json:"reason,omitempty"` // failure or skip reason
	SectionsDone  int      `json:"sectionsDone,omitempty"`
	SectionsTotal int      `json:"sectionsTotal,omitempty"`
}

func (p *PassState) Start() error {
	if p.Status != PassNotStarted && p.Status != PassRunning {
		return fmt.Errorf("pass cannot start from %q", p.Status)
	}
	if p.StartedAt == nil {
		now := time.Now()
		p.StartedAt = &now
	}
	p.Status = PassRunning
	return nil
}

func (p *PassState) Complete() error {
	if p.Status != PassRunning {
		return fmt.Errorf("pass cannot complete from %q", p.Status)
	}
	now := time.Now()
	p.CompletedAt = &now
	p.Status = PassCompleted
	return nil
}

func (p *PassState) Fail(reason string) error {
	if p.Status != PassRunning {
		return fmt.Errorf("pass cannot fail from %q", p.Status)
	}
	now := time.Now()
	p.CompletedAt = &now
	p.Status = PassFailed
	p.Reason = reason
	return nil
}

func (p *PassState) Skip(reason string) error {
	if p.Status != PassNotStarted && p.Status != PassRunning {
		return fmt.Errorf("pass cannot be skipped from %q", p.Status)
	}
	now := time.Now()
	p.CompletedAt = &now
	p.Status = PassSkipped
	p.Reason = reason
	return nil
}

// Done reports whether the pass no longer needs work on resume.
func (p *PassState) Done() bool {
	return p.Status == PassCompleted || p.Status == PassSkipped
}

// GenerationJob is one pipeline run over a brief.
type GenerationJob struct {
	ID          string                  `json:"id"`
	Brief       Brief                   `json:"brief"`
	SectionKeys []string                `json:"sectionKeys"`
	Status      JobStatus               `json:"status"`
	CurrentPass PassID                  `json:"currentPass,omitempty"`
	Passes      map[PassID]*PassState   `json:"passes"`
	Error       *string                 `json:"error,omitempty"`
	Verdict     *QualityVerdict         `json:"verdict,omitempty"`
	Result      *DocumentResult         `json:"result,omitempty"`
	CreatedAt   time.Time               `json:"createdAt"`
	StartedAt   *time.Time              `json:"startedAt,omitempty"`
	CompletedAt *time.Time              `json:"completedAt,omitempty"`
}

// NewJob builds a queued job with every pass not started.
func NewJob(id string, brief Brief) *GenerationJob {
	passes := make(map[PassID]*PassState, len(PassOrder))
	for _, p := range PassOrder {
		passes[p] = &PassState{Status: PassNotStarted}
	}
	keys := make([]string, 0, len(brief.Outline))
	for _, item := range brief.Outline {
		keys = append(keys, item.Key)
	}
	return &GenerationJob{
		ID:          id,
		Brief:       brief,
		SectionKeys: keys,
		Status:      JobStatusQueued,
		Passes:      passes,
		CreatedAt:   time.Now(),
	}
}

// PassState returns the state record for a pass, creating it if a resumed
// job predates the pass (defensive read of old records).
func (j *GenerationJob) PassState(pass PassID) *PassState {
	if j.Passes == nil {
		j.Passes = make(map[PassID]*PassState)
	}
	st, ok := j.Passes[pass]
	if !ok {
		st = &PassState{Status: PassNotStarted}
		j.Passes[pass] = st
	}
	return st
}

// Terminal reports whether the job reached a final state.
func (j *GenerationJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed || j.Status == JobStatusCanceled
}

// DocumentMeta is the output of the metadata-synthesis pass.
type DocumentMeta struct {
	MetaTitle       string   `json:"metaTitle"`
	MetaDescription string   `json:"metaDescription"`
	Slug            string   `json:"slug"`
	Tags            []string `json:"tags,omitempty"`
}

// DocumentResult is the assembled outcome attached to a completed job.
type DocumentResult struct {
	Document     string       `json:"document"` // assembled markdown
	WordCount    int          `json:"wordCount"`
	SectionCount int          `json:"sectionCount"`
	Meta         DocumentMeta `json:"meta"`
	ArtifactURL  string       `json:"artifactUrl,omitempty"`
	ChangeLogURL string       `json:"changeLogUrl,omitempty"`
}
