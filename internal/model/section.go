package model

import "time"

// StructuralCounts is a census of the load-bearing markdown elements in a
// section body, captured at each pass boundary.
type StructuralCounts struct {
	Headings   int `json:"headings"`
	Paragraphs int `json:"paragraphs"`
	Images     int `json:"images"`
	Lists      int `json:"lists"`
	Tables     int `json:"tables"`
	Words      int `json:"words"`
}

// PassSnapshot is one entry in a section's pass-content history.
type PassSnapshot struct {
	Pass       PassID           `json:"pass"`
	Content    string           `json:"content"`
	Counts     StructuralCounts `json:"counts"`
	Verdict    PassVerdict      `json:"verdict"`
	RecordedAt time.Time        `json:"recordedAt"`
}

// Section is one heading+body unit of the target document.
type Section struct {
	JobID     string         `json:"jobId"`
	Key       string         `json:"key"`
	Order     int            `json:"order"`
	Heading   string         `json:"heading"`
	Content   string         `json:"content"` // currently accepted body, markdown
	Counts    StructuralCounts `json:"counts"`
	History   []PassSnapshot `json:"history"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// SnapshotFor returns the history entry recorded for a pass, if present.
func (s *Section) SnapshotFor(pass PassID) *PassSnapshot {
	for i := range s.History {
		if s.History[i].Pass == pass {
			return &s.History[i]
		}
	}
	return nil
}

// Record appends a pass snapshot and, when accepted, promotes the content to
// the section's current body.
func (s *Section) Record(pass PassID, content string, counts StructuralCounts, verdict PassVerdict) {
	s.History = append(s.History, PassSnapshot{
		Pass:       pass,
		Content:    content,
		Counts:     counts,
		Verdict:    verdict,
		RecordedAt: time.Now(),
	})
	if verdict == VerdictAccepted {
		s.Content = content
		s.Counts = counts
	}
	s.UpdatedAt = time.Now()
}

// PassResult is the ephemeral outcome of applying one pass to one section.
type PassResult struct {
	SectionKey  string      `json:"sectionKey"`
	Pass        PassID      `json:"pass"`
	Verdict     PassVerdict `json:"verdict"`
	Content     string      `json:"content,omitempty"`
	BlockReason string      `json:"blockReason,omitempty"`
	Attempts    int         `json:"attempts"`
}

// ContinuityDigest is the compact carry-over extracted from a completed
// section to seed the next section's instructions.
type ContinuityDigest struct {
	LastSubject string   `json:"lastSubject,omitempty"`
	OpenThreads []string `json:"openThreads,omitempty"`
	Terminology []string `json:"terminology,omitempty"`
}

// Empty reports whether the digest carries nothing forward.
func (d ContinuityDigest) Empty() bool {
	return d.LastSubject == "" && len(d.OpenThreads) == 0 && len(d.Terminology) == 0
}
