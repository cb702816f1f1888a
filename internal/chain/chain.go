// Package chain extracts compact continuity digests so order-dependent
// passes can keep discourse coherent without resending the full document.
package chain

import (
	"regexp"
	"strings"

	"github.com/pagecraft/api/internal/model"
)

var (
	boldTermRe   = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	sentenceEnd  = regexp.MustCompile(`[.!?]\s+`)
	subjectRe    = regexp.MustCompile(`^((?:[A-Z][\w'-]*\s?)+)`)
	markupLineRe = regexp.MustCompile(`^(#|\||!\[|[-*] |\d+\. )`)
)

var threadCues = []string{"below", "later", "next section", "we will", "more on this", "as follows:"}

const (
	maxThreads = 3
	maxTerms   = 5
)

// ExtractForNext produces the carry-over digest from a section's accepted
// content. Pure function; no state survives the call.
func ExtractForNext(content string) model.ContinuityDigest {
	var d model.ContinuityDigest
	prose := proseOnly(content)
	if prose == "" {
		return d
	}

	sentences := splitSentences(prose)
	if len(sentences) > 0 {
		d.LastSubject = leadingSubject(sentences[len(sentences)-1])
	}

	for _, s := range sentences {
		lower := strings.ToLower(s)
		for _, cue := range threadCues {
			if strings.Contains(lower, cue) {
				d.OpenThreads = append(d.OpenThreads, strings.TrimSpace(s))
				break
			}
		}
		if len(d.OpenThreads) >= maxThreads {
			break
		}
	}

	seen := make(map[string]bool)
	for _, m := range boldTermRe.FindAllStringSubmatch(content, -1) {
		term := strings.TrimSpace(m[1])
		if term == "" || seen[strings.ToLower(term)] {
			continue
		}
		seen[strings.ToLower(term)] = true
		d.Terminology = append(d.Terminology, term)
		if len(d.Terminology) >= maxTerms {
			break
		}
	}

	return d
}

// proseOnly drops structural lines so the digest reflects running text.
func proseOnly(content string) string {
	var b strings.Builder
	for _, line := range strings.Split(content, "\n") {
		t := strings.TrimSpace(line)
		if t == "" || markupLineRe.MatchString(t) {
			continue
		}
		b.WriteString(t)
		b.WriteString(" ")
	}
	return strings.TrimSpace(b.String())
}

func splitSentences(prose string) []string {
	parts := sentenceEnd.Split(prose, -1)
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, strings.TrimSpace(p))
		}
	}
	return out
}

// leadingSubject grabs the capitalized phrase a sentence opens with, the
// cheapest usable stand-in for "last explicit subject".
func leadingSubject(sentence string) string {
	sentence = strings.TrimLeft(sentence, "*_ ")
	m := subjectRe.FindStringSubmatch(sentence)
	if m == nil {
		return ""
	}
	subject := strings.TrimSpace(m[1])
	if len(strings.Fields(subject)) > 5 {
		return ""
	}
	return subject
}

// Render formats a digest as prompt instructions.
func Render(d model.ContinuityDigest) string {
	if d.Empty() {
		return ""
	}
	var b strings.Builder
	b.WriteString("Continuity from the previous section:\n")
	if d.LastSubject != "" {
		b.WriteString("- Last subject discussed: " + d.LastSubject + "\n")
	}
	for _, t := range d.OpenThreads {
		b.WriteString("- Open thread to honor: " + t + "\n")
	}
	if len(d.Terminology) > 0 {
		b.WriteString("- Keep this terminology consistent: " + strings.Join(d.Terminology, ", ") + "\n")
	}
	return b.String()
}
