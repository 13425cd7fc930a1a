package summary

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/searchwise/search-gateway/internal/extract"
	"github.com/searchwise/search-gateway/internal/provider"
)

var tagPattern = regexp.MustCompile(`<[^>]*>?`)

// StripTags removes embedded markup from untrusted snippet/query text.
func StripTags(s string) string {
	return tagPattern.ReplaceAllString(s, "")
}

const promptDateLayout = "January 2, 2006"

// renderSources renders the top results as numbered source blocks:
// [i] title / snippet / published date, with markup stripped.
func renderSources(results []extract.Result, maxResults int) string {
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}

	blocks := make([]string, 0, len(results))
	for i, r := range results {
		content := StripTags(r.Snippet)
		if content == "" {
			content = r.URL
		}
		date := r.PublishedAt
		if date == "" {
			date = extract.DateUnknown
		}
		blocks = append(blocks, fmt.Sprintf("[%d] %s\n%s\n%s", i+1, StripTags(r.Title), content, date))
	}
	return strings.Join(blocks, "\n\n")
}

// BuildMessages builds the role-tagged prompt for chat-style backends.
func BuildMessages(query string, results []extract.Result, maxResults, maxTokens int, now time.Time) []provider.Message {
	dateToday := now.Format(promptDateLayout)
	system := fmt.Sprintf(`You are a search assistant that summarizes search results based on today's date (%s).

Guidelines:
- Use only information from provided sources
- Be direct and factual; avoid speculation
- Explain concepts clearly when needed
- End definitively without questions or offers of further help
- Keep response under %d tokens`, dateToday, maxTokens)

	user := fmt.Sprintf(`Summarize the search results for "%s".

Format:
- For "what/how/explain" queries: explain concepts first
- For technical queries: prioritize accuracy and definitions
- For current events: summarize key points and viewpoints
- Note agreement/disagreement between sources
- No hyperlinks or follow-up questions

SOURCES:
%s`, query, renderSources(results, maxResults))

	return []provider.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
}

// BuildPrompt builds the flat prompt for generate-style backends.
func BuildPrompt(query string, results []extract.Result, maxResults, maxTokens int, now time.Time) string {
	dateToday := now.Format(promptDateLayout)
	return fmt.Sprintf(`You are a search assistant that answers questions using information from search results (date: %s).

Guidelines:
- Answer the user's question directly using the provided sources
- Extract and present actual content (recipes, code, facts) - don't just describe what sources contain
- Be concise and factual
- Cite sources accurately using [1], [2], etc. when relevant
- End definitively without follow-up questions
- Keep response under %d tokens

Format:
- For recipes: provide actual ingredients and steps
- For code questions: show the actual code examples
- For "what/how/explain" queries: explain the concept directly
- For current events: present key facts and viewpoints prioritized as per article date
- Note agreement/disagreement between sources when relevant
- No hyperlinks

Answer this question: "%s"

SOURCES:
%s`, dateToday, maxTokens, query, renderSources(results, maxResults))
}
