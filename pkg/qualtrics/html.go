package qualtrics

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// htmlText strips markup, scripts and styles from rich-text survey fields and
// collapses whitespace.
func htmlText(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.ContainsAny(raw, "<&") {
		return strings.Join(strings.Fields(raw), " ")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return strings.Join(strings.Fields(raw), " ")
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
