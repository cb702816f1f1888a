package client

import (
	"fmt"
	"regexp"
	"strings"
)

// Deterministic responses for development and tests when no backend is
// configured, mirroring the mock fallbacks used by the handler services.

var (
	fencedContentRe = regexp.MustCompile("(?s)```markdown\n(.*?)\n```")
	headingLineRe   = regexp.MustCompile(`(?m)^Heading: (.+)$`)
	currentHeadRe   = regexp.MustCompile(`Current heading: "([^"]+)"`)
	targetWordsRe   = regexp.MustCompile(`Target length: (\d+) words`)
)

// MockGenerate produces a plausible, deterministic completion for a prompt.
// Prompts that embed existing content in a ```markdown fence get that
// content back unchanged, which keeps structure-preservation checks green.
func MockGenerate(system, user string) string {
	if m := fencedContentRe.FindStringSubmatch(user); m != nil {
		return m[1]
	}

	if strings.Contains(user, "Return only the heading text") {
		if m := currentHeadRe.FindStringSubmatch(user); m != nil {
			return m[1]
		}
		return "Untitled"
	}

	if strings.Contains(user, `"metaTitle"`) {
		title := "Untitled"
		if m := headingLineRe.FindStringSubmatch(user); m != nil {
			title = m[1]
		}
		slug := strings.ToLower(strings.Join(strings.Fields(title), "-"))
		return fmt.Sprintf(`{"metaTitle": %q, "metaDescription": %q, "slug": %q, "tags": ["generated"]}`,
			title, "An in-depth look at "+title+".", slug)
	}

	heading := "the topic"
	if m := headingLineRe.FindStringSubmatch(user); m != nil {
		heading = m[1]
	}
	words := 120
	if m := targetWordsRe.FindStringSubmatch(user); m != nil {
		fmt.Sscanf(m[1], "%d", &words)
	}
	return mockBody(heading, words)
}

// mockBody writes two paragraphs of filler prose around the heading, long
// enough to satisfy per-section word floors.
func mockBody(heading string, words int) string {
	if words < 60 {
		words = 60
	}
	sentence := fmt.Sprintf("%s matters because it shapes how readers approach the subject in practice.", heading)
	filler := "Each consideration builds on the previous one, and the details reward a closer look."

	var b strings.Builder
	b.WriteString(fmt.Sprintf("**%s** is best understood step by step. ", heading))
	count := len(strings.Fields(b.String()))
	for i := 0; count < words; i++ {
		if i%2 == 0 {
			b.WriteString(sentence + " ")
			count += len(strings.Fields(sentence))
		} else {
			b.WriteString(filler + " ")
			count += len(strings.Fields(filler))
		}
		if i == 3 {
			b.WriteString("\n\n")
		}
	}
	return strings.TrimSpace(b.String())
}
