package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"listing_hunter/models"
)

// NoTitle is stored when a post carries no usable text.
const NoTitle = "Bez tytułu"

var (
	textFields      = []string{"title", "text", "message"}
	urlFields       = []string{"postUrl", "url"}
	markupRegex     = regexp.MustCompile(`<[a-zA-Z/][^>]*>`)
	lineBreakRegex  = regexp.MustCompile(`(?i)<br\s*/?>`)
	multiSpaceRegex = regexp.MustCompile(`\s+`)
)

// PostText joins the non-empty title/text/message fields with single
// spaces. Markup is reduced to its text content.
func PostText(raw models.RawRecord) string {
	var parts []string
	for _, field := range textFields {
		if s := textValue(raw[field]); s != "" {
			parts = append(parts, PlainText(s))
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// PlainText strips HTML tags from s. Strings without markup are returned
// unchanged.
func PlainText(s string) string {
	if !markupRegex.MatchString(s) {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(lineBreakRegex.ReplaceAllString(s, " ")))
	if err != nil {
		return s
	}
	return strings.TrimSpace(multiSpaceRegex.ReplaceAllString(doc.Text(), " "))
}

// NormalizePost maps a raw social-media post onto the Listing shape. It
// never fails: missing fields degrade to nil, empty or the NoTitle sentinel.
// Price and location are not extracted on this path.
func NormalizePost(raw models.RawRecord, source string) models.Listing {
	title := PostText(raw)
	if title == "" {
		title = NoTitle
	}
	description := title

	var sourceURL string
	for _, field := range urlFields {
		if s := strings.TrimSpace(raw.String(field)); s != "" {
			sourceURL = s
			break
		}
	}

	return models.Listing{
		Source:      strings.ToLower(source),
		SourceURL:   sourceURL,
		Title:       &title,
		Description: &description,
		Images:      extractImages(raw),
		Status:      models.StatusNew,
	}
}

func extractImages(raw models.RawRecord) []string {
	images := []string{}
	if list, ok := raw["images"].([]any); ok {
		for _, v := range list {
			if s, ok := v.(string); ok {
				images = append(images, s)
			}
		}
	}
	if s, ok := raw["image"].(string); ok {
		images = append(images, s)
	}
	return images
}

// textValue renders a scalar the way it would print, treating empty
// strings, zero and false as absent.
func textValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == 0 {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "true"
		}
	}
	return ""
}
