package markdown

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/pagecraft/api/internal/model"
)

var parser = goldmark.New(goldmark.WithExtensions(extension.Table))

// Census counts the load-bearing structural elements of a markdown body.
// The counts feed the preservation guard's before/after comparison at every
// pass boundary.
func Census(body string) model.StructuralCounts {
	src := []byte(body)
	doc := parser.Parser().Parse(text.NewReader(src))

	var c model.StructuralCounts
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindHeading:
			c.Headings++
		case ast.KindImage:
			c.Images++
		case ast.KindList:
			// nested lists are part of their parent, structurally
			if n.Parent() != nil && n.Parent().Kind() == ast.KindDocument {
				c.Lists++
			}
		case extast.KindTable:
			c.Tables++
		case ast.KindParagraph:
			c.Paragraphs++
		}
		return ast.WalkContinue, nil
	})
	c.Words = len(strings.Fields(body))
	return c
}

// Placeholder renders an image placeholder the design subsystem resolves
// later. Rendering itself is outside this service.
func Placeholder(description string) string {
	if description == "" {
		description = "Illustration"
	}
	return "![" + description + "](placeholder)"
}

var orderedItemRe = regexp.MustCompile(`^\d+\. `)

func isListLine(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "- ") || strings.HasPrefix(t, "* ") || orderedItemRe.MatchString(t)
}

func isTableLine(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "|")
}

// StructuresIntroduced verifies that every list and table in the body is
// preceded by an introducing sentence (a plain-text line, not a heading or
// another structure). This is the structural validation rule shared by the
// format-optimization pass.
func StructuresIntroduced(body string) bool {
	lines := strings.Split(body, "\n")
	prevText := false
	inStructure := false
	for _, line := range lines {
		t := strings.TrimSpace(line)
		structural := isListLine(line) || isTableLine(line)
		if structural && !inStructure {
			if !prevText {
				return false
			}
			inStructure = true
		} else if !structural {
			inStructure = false
		}
		if t == "" {
			continue
		}
		prevText = !structural && !strings.HasPrefix(t, "#") && !strings.HasPrefix(t, "![")
	}
	return true
}

// InsertAfterFirstParagraph places a standalone block after the body's first
// paragraph, keeping placeholders away from the heading/first-paragraph
// boundary. Bodies without a paragraph get the block appended.
func InsertAfterFirstParagraph(body, block string) string {
	blocks := strings.Split(body, "\n\n")
	for i, b := range blocks {
		t := strings.TrimSpace(b)
		if t == "" || strings.HasPrefix(t, "#") || strings.HasPrefix(t, "![") || isListLine(t) || isTableLine(t) {
			continue
		}
		out := make([]string, 0, len(blocks)+1)
		out = append(out, blocks[:i+1]...)
		out = append(out, block)
		out = append(out, blocks[i+1:]...)
		return strings.Join(out, "\n\n")
	}
	return strings.TrimRight(body, "\n") + "\n\n" + block
}

// ImageAfterHeading reports whether any image sits directly between a
// heading and its first paragraph in the assembled document.
func ImageAfterHeading(doc string) bool {
	lines := strings.Split(doc, "\n")
	afterHeading := false
	for _, line := range lines {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		if strings.HasPrefix(t, "#") {
			afterHeading = true
			continue
		}
		if afterHeading && strings.HasPrefix(t, "![") {
			return true
		}
		afterHeading = false
	}
	return false
}
