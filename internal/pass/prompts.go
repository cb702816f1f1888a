package pass

import (
	"fmt"
	"strings"

	"github.com/pagecraft/api/internal/chain"
	"github.com/pagecraft/api/internal/model"
)

// SystemPrompt frames every generation call the same way; pass-specific
// behavior lives in the user prompt.
func SystemPrompt(brief *model.Brief) string {
	tone := brief.Tone
	if tone == "" {
		tone = "clear and professional"
	}
	audience := brief.Audience
	if audience == "" {
		audience = "a general readership"
	}
	return fmt.Sprintf(`You are an expert long-form content editor working on the article %q.
Write for %s in a %s tone.
Work in markdown. Follow the instructions exactly and return only the requested output, with no commentary before or after.`,
		brief.Title, audience, tone)
}

// fence embeds the section's current body so the model edits rather than
// reinvents it.
func fence(content string) string {
	return "```markdown\n" + content + "\n```"
}

func sectionHeader(sec *model.Section, jc *JobContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Heading: %s\n", sec.Heading)
	if item := jc.Brief.OutlineItemFor(sec.Key); item != nil {
		if item.Guidance != "" {
			fmt.Fprintf(&b, "Guidance: %s\n", item.Guidance)
		}
		if len(item.Keywords) > 0 {
			fmt.Fprintf(&b, "Keywords to work in naturally: %s\n", strings.Join(item.Keywords, ", "))
		}
	}
	return b.String()
}

func appendCorrective(prompt string, corrective []string) string {
	if len(corrective) == 0 {
		return prompt
	}
	return prompt + "\n" + strings.Join(corrective, "\n")
}

func draftPrompt(sec *model.Section, jc *JobContext, _ model.ContinuityDigest, corrective []string) (string, string) {
	target := 150
	if item := jc.Brief.OutlineItemFor(sec.Key); item != nil && item.TargetWords > 0 {
		target = item.TargetWords
	}
	var b strings.Builder
	b.WriteString("Write the body for one section of the article.\n\n")
	b.WriteString(sectionHeader(sec, jc))
	fmt.Fprintf(&b, "Target length: %d words\n", target)
	if facts := jc.Brief.FactsFor(sec.Key); len(facts) > 0 {
		b.WriteString("Facts that must be covered:\n")
		for _, f := range facts {
			b.WriteString("- " + f.Statement + "\n")
		}
	}
	b.WriteString("\nWrite markdown prose only. Do not repeat the section heading and do not add heading lines of your own.")
	return SystemPrompt(jc.Brief), appendCorrective(b.String(), corrective)
}

func headingPrompt(sec *model.Section, jc *JobContext, _ model.ContinuityDigest, corrective []string) (string, string) {
	excerpt := sec.Content
	if len(excerpt) > 400 {
		excerpt = excerpt[:400]
	}
	user := fmt.Sprintf(`Improve this section heading for clarity and search intent.
Current heading: %q
Section opening: %s

Return only the heading text on a single line, with no markdown markers.`, sec.Heading, excerpt)
	return SystemPrompt(jc.Brief), appendCorrective(user, corrective)
}

func formatPrompt(sec *model.Section, jc *JobContext, _ model.ContinuityDigest, corrective []string) (string, string) {
	structure := "bulleted markdown list"
	if item := jc.Brief.OutlineItemFor(sec.Key); item != nil && item.Format == model.FormatTable {
		structure = "markdown table"
	}
	var b strings.Builder
	b.WriteString(sectionHeader(sec, jc))
	fmt.Fprintf(&b, `
Rework the section body so its enumerable content is presented as a %s.
The structure must be preceded by a full introducing sentence. Keep all existing prose, images and structure.

%s`, structure, fence(sec.Content))
	return SystemPrompt(jc.Brief), appendCorrective(b.String(), corrective)
}

func discoursePrompt(sec *model.Section, jc *JobContext, digest model.ContinuityDigest, corrective []string) (string, string) {
	var b strings.Builder
	b.WriteString(sectionHeader(sec, jc))
	if r := chain.Render(digest); r != "" {
		b.WriteString("\n" + r)
	}
	b.WriteString(`
Rewrite the section body so it flows naturally from the previous section: open with a connective transition, resolve any open threads, and keep terminology consistent. Preserve every image, list and table.

` + fence(sec.Content))
	return SystemPrompt(jc.Brief), appendCorrective(b.String(), corrective)
}

func microPrompt(sec *model.Section, jc *JobContext, _ model.ContinuityDigest, corrective []string) (string, string) {
	var b strings.Builder
	b.WriteString(sectionHeader(sec, jc))
	b.WriteString(`
Tighten the wording of this section: shorten overlong sentences, prefer active voice, remove filler. Do not change meaning, and preserve every image, list and table.

` + fence(sec.Content))
	return SystemPrompt(jc.Brief), appendCorrective(b.String(), corrective)
}

func polishPrompt(sec *model.Section, jc *JobContext, _ model.ContinuityDigest, corrective []string) (string, string) {
	var b strings.Builder
	b.WriteString(sectionHeader(sec, jc))
	b.WriteString(`
Give this section a final editorial polish: fix grammar, smooth phrasing, ensure consistent tense. Change as little as possible and preserve every image, list and table.

` + fence(sec.Content))
	return SystemPrompt(jc.Brief), appendCorrective(b.String(), corrective)
}

// IntroPrompt asks for the article introduction once the body is stable.
func IntroPrompt(brief *model.Brief, headings []string) (string, string) {
	user := fmt.Sprintf(`Write the introduction for the finished article.

Heading: %s
Target length: 150 words
The article covers, in order:
- %s

Write markdown prose only, no heading lines. Hook the reader, state what the article delivers, and preview the structure without listing it mechanically.`,
		brief.Title, strings.Join(headings, "\n- "))
	return SystemPrompt(brief), user
}

// MetadataPrompt asks for the publication metadata as JSON.
func MetadataPrompt(brief *model.Brief, intro string) (string, string) {
	user := fmt.Sprintf(`Produce publication metadata for the finished article.

Heading: %s
Introduction: %s

Output as JSON: {"metaTitle": "...", "metaDescription": "...", "slug": "...", "tags": ["..."]}
metaTitle at most 60 characters, metaDescription at most 155 characters, slug lowercase words joined by hyphens.`,
		brief.Title, firstWords(intro, 60))
	return SystemPrompt(brief), user
}

func firstWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}
