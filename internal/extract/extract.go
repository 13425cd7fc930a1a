package extract

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Result is one normalized search result in upstream ranking order.
type Result struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Snippet     string `json:"snippet"`
	PublishedAt string `json:"publishedAt,omitempty"`
}

// DateUnknown marks an absent or unparseable published date.
const DateUnknown = "Unknown"

// Extract parses a search-results page into an ordered result list. Cards
// missing a title or URL are dropped silently.
func Extract(html string, schema Schema) []Result {
	return ExtractAt(html, schema, time.Now())
}

// ExtractAt is Extract with an explicit wall clock for relative dates.
func ExtractAt(html string, schema Schema, now time.Time) []Result {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var results []Result
	doc.Find(schema.Container).Each(func(i int, card *goquery.Selection) {
		title := strings.TrimSpace(card.Find(schema.Title).First().Text())
		url, _ := card.Find(schema.Link).First().Attr("href")
		snippet := strings.TrimSpace(card.Find(schema.Snippet).First().Text())
		date := strings.TrimSpace(card.Find(schema.Date).First().Text())

		if title == "" || url == "" {
			return
		}

		results = append(results, Result{
			Title:       title,
			URL:         url,
			Snippet:     snippet,
			PublishedAt: NormalizeDate(date, now),
		})
	})

	return results
}

const dateLayout = "January 2, 2006"

var absoluteLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"Jan 2, 06",
	"2006-01-02",
	"02.01.2006",
}

// NormalizeDate converts a relative string like "2 hours ago" or a short
// absolute date into "January 2, 2006" against the given wall clock.
// Anything unparseable yields DateUnknown rather than an error.
func NormalizeDate(raw string, now time.Time) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DateUnknown
	}

	if d, ok := parseRelative(strings.ToLower(raw), now); ok {
		return d.Format(dateLayout)
	}

	for _, layout := range absoluteLayouts {
		if d, err := time.Parse(layout, raw); err == nil {
			return d.Format(dateLayout)
		}
	}

	return DateUnknown
}

func parseRelative(raw string, now time.Time) (time.Time, bool) {
	fields := strings.Fields(raw)
	if len(fields) != 3 || fields[2] != "ago" {
		return time.Time{}, false
	}

	n := 0
	for _, r := range fields[0] {
		if r < '0' || r > '9' {
			return time.Time{}, false
		}
		n = n*10 + int(r-'0')
	}

	unit := strings.TrimSuffix(fields[1], "s")
	switch unit {
	case "second", "minute", "hour":
		var d time.Duration
		switch unit {
		case "second":
			d = time.Second
		case "minute":
			d = time.Minute
		case "hour":
			d = time.Hour
		}
		return now.Add(-time.Duration(n) * d), true
	case "day":
		return now.AddDate(0, 0, -n), true
	case "week":
		return now.AddDate(0, 0, -7*n), true
	case "month":
		return now.AddDate(0, -n, 0), true
	case "year":
		return now.AddDate(-n, 0, 0), true
	}
	return time.Time{}, false
}
