package view

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// previewLen caps the plain-text body preview shown in post listings.
const previewLen = 200

// stripHTML reduces rendered post markup to its text content. Entities are
// decoded by the parser; on unparseable input the raw string comes back.
func stripHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

// preview returns the stripped body truncated to previewLen runes, with an
// ellipsis when anything was cut.
func preview(body string) string {
	text := stripHTML(body)
	r := []rune(text)
	if len(r) <= previewLen {
		return text
	}
	return string(r[:previewLen]) + "..."
}

// splitTags breaks the dump's "|tag1|tag2|" encoding into tag names.
func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(s, "|") {
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
