// Package transcript normalizes pasted call transcripts before they are
// handed to the transcript-parsing agent. Inputs arrive either as plain
// text or as HTML copied out of call tooling.
package transcript

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var htmlTagPattern = regexp.MustCompile(`<[a-zA-Z][^>]*>`)

// Normalize flattens transcript input to trimmed, non-empty text lines.
// HTML is stripped to its text content; plain text passes through.
func Normalize(input string) (string, error) {
	text := input
	if htmlTagPattern.MatchString(input) {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
		if err != nil {
			return "", fmt.Errorf("failed to parse transcript HTML: %w", err)
		}
		var lines []string
		doc.Find("br").ReplaceWithHtml("\n")
		// Only leaf blocks contribute lines; nested containers would
		// otherwise duplicate their children's text.
		doc.Find("p, div, li, td").Each(func(_ int, sel *goquery.Selection) {
			if sel.Children().Filter("p, div, li, td").Length() > 0 {
				return
			}
			if t := strings.TrimSpace(sel.Text()); t != "" {
				lines = append(lines, t)
			}
		})
		if len(lines) > 0 {
			text = strings.Join(lines, "\n")
		} else {
			text = doc.Text()
		}
	}

	var out []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n"), nil
}
