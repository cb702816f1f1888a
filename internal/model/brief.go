package model

// Brief is the externally supplied plan driving a generation run. It is
// read-only to the pipeline: deviations are logged to the change tracker,
// never merged back.
type Brief struct {
	ProjectID    string        `json:"projectId" validate:"required"`
	DocumentID   string        `json:"documentId" validate:"required"`
	Title        string        `json:"title" validate:"required,max=200"`
	Language     string        `json:"language,omitempty"`
	Audience     string        `json:"audience,omitempty"`
	Tone         string        `json:"tone,omitempty"`
	Keywords     []string      `json:"keywords,omitempty"`
	Outline      []OutlineItem `json:"outline" validate:"dive"`
	RequiredFacts []Fact       `json:"requiredFacts,omitempty" validate:"dive"`
	ImagePlan    []ImageSlot   `json:"imagePlan,omitempty" validate:"dive"`
}

// OutlineItem describes one planned section.
type OutlineItem struct {
	Key         string       `json:"key" validate:"required,max=80"`
	Heading     string       `json:"heading" validate:"required,max=200"`
	Guidance    string       `json:"guidance,omitempty"`
	TargetWords int          `json:"targetWords,omitempty" validate:"omitempty,min=30,max=2000"`
	Format      AnswerFormat `json:"format,omitempty" validate:"omitempty,oneof=list table"`
	Keywords    []string     `json:"keywords,omitempty"`
}

// Fact is a claim the document must cover.
type Fact struct {
	SectionKey string `json:"sectionKey,omitempty"`
	Statement  string `json:"statement" validate:"required"`
}

// ImageSlot marks a section the visual-placement plan flags for an image.
type ImageSlot struct {
	SectionKey  string `json:"sectionKey" validate:"required"`
	Description string `json:"description,omitempty"`
}

// OutlineItemFor returns the outline entry for a section key, if any.
func (b *Brief) OutlineItemFor(key string) *OutlineItem {
	for i := range b.Outline {
		if b.Outline[i].Key == key {
			return &b.Outline[i]
		}
	}
	return nil
}

// PlannedImage reports whether the visual plan flags the given section.
func (b *Brief) PlannedImage(key string) *ImageSlot {
	for i := range b.ImagePlan {
		if b.ImagePlan[i].SectionKey == key {
			return &b.ImagePlan[i]
		}
	}
	return nil
}

// FactsFor returns the required facts attached to a section, plus any
// document-level facts when key is empty.
func (b *Brief) FactsFor(key string) []Fact {
	var out []Fact
	for _, f := range b.RequiredFacts {
		if f.SectionKey == key {
			out = append(out, f)
		}
	}
	return out
}
