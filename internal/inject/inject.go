package inject

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/searchwise/search-gateway/internal/extract"
	"github.com/searchwise/search-gateway/internal/summary"
)

// ModelDisplayName extracts the display segment from a vendor-scoped model id
// ("mistralai/mistral-small" -> "mistral-small"), falling back to "AI".
func ModelDisplayName(modelID string) string {
	if _, name, ok := strings.Cut(modelID, "/"); ok && name != "" {
		return name
	}
	if modelID != "" {
		return modelID
	}
	return "AI"
}

// Render substitutes the widget placeholders into an opaque template string.
// Query and result text originate from untrusted content and are stripped of
// markup before being embedded.
func Render(tmpl, query string, results []extract.Result, modelID, providerName string, manualMode bool) string {
	sanitized := make([]extract.Result, len(results))
	for i, r := range results {
		sanitized[i] = extract.Result{
			Title:       summary.StripTags(r.Title),
			URL:         r.URL,
			Snippet:     summary.StripTags(r.Snippet),
			PublishedAt: r.PublishedAt,
		}
	}

	queryJSON, _ := json.Marshal(summary.StripTags(query))
	resultsJSON, _ := json.Marshal(sanitized)

	isManual := "false"
	if manualMode {
		isManual = "true"
	}

	out := strings.ReplaceAll(tmpl, "{{MODEL_NAME}}", summary.StripTags(ModelDisplayName(modelID)))
	out = strings.ReplaceAll(out, "{{PROVIDER_NAME}}", providerName)
	out = strings.ReplaceAll(out, "{{QUERY_JSON}}", string(queryJSON))
	out = strings.ReplaceAll(out, "{{RESULTS_JSON}}", string(resultsJSON))
	out = strings.ReplaceAll(out, "{{IS_MANUAL_MODE}}", isManual)
	return out
}

// Inject prepends the rendered summary widget into the schema's anchor
// element. The rest of the page is untouched; with no results or no anchor
// the original HTML comes back unchanged.
func Inject(html, tmpl, query string, results []extract.Result, schema extract.Schema, modelID, providerName string, manualMode bool) string {
	if len(results) == 0 {
		return html
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	anchor := doc.Find(schema.Anchor).First()
	if anchor.Length() == 0 {
		return html
	}
	anchor.PrependHtml(Render(tmpl, query, results, modelID, providerName, manualMode))

	out, err := doc.Html()
	if err != nil {
		return html
	}
	return out
}
