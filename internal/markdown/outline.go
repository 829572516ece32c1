// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Heading is one heading found in a Markdown document.
type Heading struct {
	Level int
	Text  string
}

// Outline parses src and returns its headings in document order.
func Outline(src []byte) []Heading {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var headings []Heading
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		headings = append(headings, Heading{
			Level: h.Level,
			Text:  inlineText(h, src),
		})
		return ast.WalkSkipChildren, nil
	})
	return headings
}

// inlineText concatenates the text segments below n.
func inlineText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
			continue
		}
		buf.WriteString(inlineText(c, src))
	}
	return strings.TrimSpace(buf.String())
}
