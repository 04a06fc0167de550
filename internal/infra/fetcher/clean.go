package fetcher

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractText parses an HTML document, drops script, style and noscript
// elements, and returns the remaining text nodes cleaned by CleanText.
func ExtractText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	var parts []string
	collectText(doc.Selection, &parts)
	return CleanText(strings.Join(parts, "\n")), nil
}

func collectText(s *goquery.Selection, out *[]string) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		switch goquery.NodeName(c) {
		case "#text":
			*out = append(*out, c.Text())
		case "#comment":
		default:
			collectText(c, out)
		}
	})
}

// CleanText trims every line, splits lines on double spaces, and joins the
// non-empty pieces with newlines.
func CleanText(text string) string {
	lines := strings.FieldsFunc(text, isLineBreak)
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		for _, phrase := range strings.Split(strings.TrimSpace(line), "  ") {
			if p := strings.TrimSpace(phrase); p != "" {
				out = append(out, p)
			}
		}
	}
	return strings.Join(out, "\n")
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}
