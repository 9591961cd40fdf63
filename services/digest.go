package services

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"

	"listing-watch/models"
)

const notSpecified = "Not specified"

var digestTemplate = template.Must(template.New("digest").Parse(`<html>
<head>
<style>
body { font-family: Arial, sans-serif; }
.listing { margin-bottom: 20px; padding: 10px; border: 1px solid #ddd; border-radius: 5px; }
.listing img { max-width: 100%; height: auto; border-radius: 5px; }
.price { font-size: 1.2em; font-weight: bold; color: #2c5282; }
.previous { color: #718096; text-decoration: line-through; }
.location { color: #4a5568; margin: 5px 0; }
</style>
</head>
<body>
<h2>New Listings from {{.Site}}</h2>
<p>Found {{.Count}} new listings.</p>
{{range .Items}}<a href="{{.URL}}" style="text-decoration: none; color: inherit; display: block;">
<div class="listing">
<h3>Listing #{{.Index}}</h3>
<p><strong>{{.Title}}</strong></p>
<p class="price">{{.Price}} {{.Currency}}{{if .Previous}} <span class="previous">was {{.Previous}} {{.Currency}}</span>{{end}}</p>
<p class="location">Location: {{.Location}}</p>
{{if .ImageURL}}<img src="{{.ImageURL}}" alt="Listing image">
{{end}}</div>
</a>
{{end}}</body>
</html>
`))

type digestItem struct {
	Index    int
	URL      string
	Title    string
	Price    string
	Previous string
	Currency models.Currency
	Location string
	ImageURL string
}

// FormatDigest renders the notify-set as an email subject and HTML body.
// It has no side effects.
func FormatDigest(siteName string, items []models.ReconciliationResult) (string, string, error) {
	subject := fmt.Sprintf("New Real Estate Listings from %s - %d Found", siteName, len(items))

	data := struct {
		Site  string
		Count int
		Items []digestItem
	}{Site: siteName, Count: len(items)}

	for i, r := range items {
		c := r.Candidate
		item := digestItem{
			Index:    i + 1,
			URL:      c.URL,
			Title:    c.Title,
			Price:    formatPrice(c.Price),
			Currency: c.Currency,
			Location: c.Location,
			ImageURL: c.ImageURL,
		}
		if item.Location == "" {
			item.Location = notSpecified
		}
		if r.PreviousPrice != nil {
			item.Previous = formatPrice(*r.PreviousPrice)
		}
		data.Items = append(data.Items, item)
	}

	var body bytes.Buffer
	if err := digestTemplate.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("render digest: %w", err)
	}
	return subject, body.String(), nil
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
