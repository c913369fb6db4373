// Package htmlclean prepares newsletter HTML for the extraction service.
// Newsletter markup is dominated by inline styling and tracking noise
// that only inflates the prompt, so it gets stripped before the call.
package htmlclean

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// noiseAttributes are removed from every element.
var noiseAttributes = []string{"style", "class", "id", "onclick"}

// Sanitize removes script/style elements and presentation attributes
// from the HTML. On parse failure the input is returned unchanged:
// a noisy prompt beats losing the newsletter.
func Sanitize(html string) string {
	if html == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	doc.Find("script, style, link[rel='stylesheet']").Remove()

	doc.Find("*").Each(func(i int, s *goquery.Selection) {
		for _, attr := range noiseAttributes {
			s.RemoveAttr(attr)
		}
	})

	out, err := doc.Html()
	if err != nil {
		return html
	}
	return out
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// StripText returns the whitespace-normalized plain text of the HTML.
func StripText(html string) (string, error) {
	if html == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style").Remove()

	text := whitespaceRun.ReplaceAllString(doc.Text(), " ")
	return strings.TrimSpace(text), nil
}
