package digest

import (
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const (
	// DefaultHeadline is used when the markdown has no usable heading.
	DefaultHeadline = "Tech Digest"
	headlineLabel   = "今日头条"
	summaryLimit    = 120
)

var markdown = goldmark.New()

// extractHeadline picks the cover headline and the article summary from the
// markdown report. The headline is the subject of the "今日头条" block, else
// the first heading, else DefaultHeadline. The summary is the first paragraph.
func extractHeadline(report string) (headline, summary string) {
	src := []byte(report)
	doc := markdown.Parser().Parse(text.NewReader(src))

	var first, lead string
	pending := false // saw a bare "今日头条" heading, subject follows
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		kind := n.Kind()
		if kind != ast.KindHeading && kind != ast.KindParagraph && kind != ast.KindTextBlock {
			return ast.WalkContinue, nil
		}
		t := plainText(n, src)
		if t == "" {
			return ast.WalkSkipChildren, nil
		}
		if kind == ast.KindHeading && first == "" {
			first = t
		}
		if kind == ast.KindParagraph && summary == "" {
			summary = truncate(t, summaryLimit)
		}
		if lead == "" {
			switch {
			case strings.HasPrefix(t, headlineLabel) || (kind == ast.KindHeading && strings.Contains(t, headlineLabel)):
				lead = afterLabel(t)
				pending = lead == ""
			case pending:
				lead = t
			}
		}
		return ast.WalkSkipChildren, nil
	})

	switch {
	case lead != "":
		headline = lead
	case first != "":
		headline = first
	default:
		headline = DefaultHeadline
	}
	return headline, summary
}

// afterLabel strips "今日头条：" style prefixes; the label alone yields "".
func afterLabel(s string) string {
	i := strings.Index(s, headlineLabel)
	rest := strings.TrimSpace(s[i+len(headlineLabel):])
	return strings.TrimSpace(strings.TrimLeft(rest, ":："))
}

func plainText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-1]) + "…"
}
