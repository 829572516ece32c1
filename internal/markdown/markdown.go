// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package markdown turns extracted page content into Markdown. Rich text
// arrives as HTML and goes through html-to-markdown with ATX headings; plain
// text is escaped by the same converter one line at a time.
package markdown

import (
	"fmt"
	"html"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"golang.org/x/text/unicode/norm"
)

// headingStyle selects "# Title" headings over underlined ones.
const headingStyle = "atx"

var converter = md.NewConverter("", true, &md.Options{
	HeadingStyle: headingStyle,
})

// FromHTML converts an HTML fragment to Markdown.
func FromHTML(src string) (string, error) {
	out, err := converter.ConvertString(src)
	if err != nil {
		return "", fmt.Errorf("converting HTML to Markdown: %w", err)
	}
	return out, nil
}

// hardBreak ends a line inside a paragraph. html-to-markdown renders <br>
// as a paragraph break, so line breaks are joined here instead.
const hardBreak = "  \n"

// FromText converts plain page text to Markdown. Blank lines separate
// paragraphs and single newlines become hard line breaks. Each line goes
// through the HTML converter so it receives the same escaping as rich text.
func FromText(text string) (string, error) {
	var paras []string
	for _, para := range textParagraphs(text) {
		lines := make([]string, 0, len(para))
		for _, line := range para {
			out, err := FromHTML("<p>" + html.EscapeString(line) + "</p>")
			if err != nil {
				return "", err
			}
			if out = strings.TrimSpace(out); out != "" {
				lines = append(lines, out)
			}
		}
		if len(lines) > 0 {
			paras = append(paras, strings.Join(lines, hardBreak))
		}
	}
	return strings.Join(paras, "\n\n"), nil
}

// textParagraphs splits text into paragraphs of trimmed, non-blank lines.
// Form feeds count as paragraph breaks.
func textParagraphs(text string) [][]string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\f", "\n\n")

	var paras [][]string
	for _, para := range splitParagraphs(text) {
		lines := strings.Split(para, "\n")
		for i, line := range lines {
			lines[i] = strings.TrimSpace(line)
		}
		paras = append(paras, lines)
	}
	return paras
}

// splitParagraphs returns the non-blank runs of lines in text.
func splitParagraphs(text string) []string {
	var paras []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			paras = append(paras, strings.Join(cur, "\n"))
			cur = cur[:0]
		}
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return paras
}

// Normalize returns s in Unicode normalisation form C. PDF text extraction
// often yields decomposed accents (e + U+0301) that render fine but compare
// and search badly.
func Normalize(s string) string {
	return norm.NFC.String(s)
}
