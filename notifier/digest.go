package notifier

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"listing_hunter/models"
)

const (
	titleRunes  = 60
	priceTBD    = "Do ustalenia"
	missingCity = "—"
)

var plPrinter = message.NewPrinter(language.Polish)

// DigestSubject is the email subject for a digest of n listings.
func DigestSubject(n int) string {
	return fmt.Sprintf("Hunter – %d nowych ofert nieruchomościowych", n)
}

// FormatPLN renders a price held in grosze as whole złoty, e.g. "450 000 zł".
func FormatPLN(grosze *int64) string {
	if grosze == nil {
		return priceTBD
	}
	zloty := int64(math.Round(float64(*grosze) / 100))
	s := plPrinter.Sprintf("%d", zloty)
	// Polish grouping uses no-break spaces; mail clients render them unevenly.
	s = strings.NewReplacer("\u00a0", " ", "\u202f", " ").Replace(s)
	return s + " zł"
}

// ShortTitle cuts the title to 60 runes and always ends it with an ellipsis.
func ShortTitle(title string) string {
	runes := []rune(title)
	if len(runes) > titleRunes {
		runes = runes[:titleRunes]
	}
	return string(runes) + "…"
}

type digestRow struct {
	Source string
	Title  string
	URL    string
	Price  string
	City   string
}

type digestData struct {
	Count int
	Rows  []digestRow
}

var digestTemplate = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Hunter – nowe oferty</title>
</head>
<body style="font-family:sans-serif;max-width:720px;margin:0 auto;padding:20px;">
  <h1>Hunter – nowe okazje nieruchomościowe</h1>
  <p>Liczba nowych ofert: <strong>{{.Count}}</strong></p>
  <table style="width:100%;border-collapse:collapse;">
    <thead>
      <tr>
        <th style="padding:8px;border:1px solid #eee;text-align:left;">Źródło</th>
        <th style="padding:8px;border:1px solid #eee;text-align:left;">Tytuł</th>
        <th style="padding:8px;border:1px solid #eee;text-align:left;">Cena</th>
        <th style="padding:8px;border:1px solid #eee;text-align:left;">Miasto</th>
      </tr>
    </thead>
    <tbody>
{{- range .Rows}}
      <tr class="listing">
        <td style="padding:8px;border:1px solid #eee;">{{.Source}}</td>
        <td style="padding:8px;border:1px solid #eee;"><a href="{{.URL}}">{{.Title}}</a></td>
        <td style="padding:8px;border:1px solid #eee;">{{.Price}}</td>
        <td style="padding:8px;border:1px solid #eee;">{{.City}}</td>
      </tr>
{{- end}}
    </tbody>
  </table>
  <p style="margin-top:24px;color:#666;font-size:14px;">
    Ten mail został wysłany przez Hunter (digest raz dziennie).
  </p>
</body>
</html>
`))

// RenderDigest builds the digest HTML for the given listings.
func RenderDigest(listings []models.Listing) ([]byte, error) {
	data := digestData{Count: len(listings)}
	for _, l := range listings {
		url := l.SourceURL
		if url == "" {
			url = "#"
		}
		city := missingCity
		if l.City != nil {
			city = *l.City
		}
		data.Rows = append(data.Rows, digestRow{
			Source: l.Source,
			Title:  ShortTitle(l.TitleOrEmpty()),
			URL:    url,
			Price:  FormatPLN(l.PricePLN),
			City:   city,
		})
	}

	var buf bytes.Buffer
	if err := digestTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
