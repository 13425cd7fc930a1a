package summary

import (
	"strings"
	"testing"
	"time"

	"github.com/searchwise/search-gateway/internal/extract"
)

func TestRenderSources(t *testing.T) {
	results := []extract.Result{
		{Title: "First <b>bold</b>", URL: "https://a", Snippet: "Some <i>markup</i> here", PublishedAt: "March 1, 2026"},
		{Title: "Second", URL: "https://b", Snippet: "", PublishedAt: "Unknown"},
	}

	got := renderSources(results, 5)

	if !strings.Contains(got, "[1] First bold\nSome markup here\nMarch 1, 2026") {
		t.Errorf("first source block malformed:\n%s", got)
	}
	// Empty snippet falls back to the URL.
	if !strings.Contains(got, "[2] Second\nhttps://b\nUnknown") {
		t.Errorf("second source block malformed:\n%s", got)
	}
	if strings.Contains(got, "<") {
		t.Error("markup should be stripped from sources")
	}
}

func TestRenderSourcesCapped(t *testing.T) {
	results := make([]extract.Result, 10)
	for i := range results {
		results[i] = extract.Result{Title: "t", URL: "u"}
	}

	got := renderSources(results, 5)
	if strings.Contains(got, "[6]") {
		t.Error("sources beyond the cap should be dropped")
	}
	if !strings.Contains(got, "[5]") {
		t.Error("sources within the cap should be present")
	}
}

func TestBuildMessages(t *testing.T) {
	now := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	results := []extract.Result{{Title: "t", URL: "u", Snippet: "s", PublishedAt: "Unknown"}}

	msgs := BuildMessages("what is go", results, 5, 600, now)
	if len(msgs) != 2 || msgs[0].Role != "system" || msgs[1].Role != "user" {
		t.Fatalf("expected system+user messages, got %+v", msgs)
	}
	if !strings.Contains(msgs[0].Content, "March 15, 2026") {
		t.Error("system message should carry today's date")
	}
	if !strings.Contains(msgs[1].Content, `"what is go"`) {
		t.Error("user message should carry the query")
	}
	if !strings.Contains(msgs[1].Content, "[1] t") {
		t.Error("user message should carry the sources")
	}
}

func TestBuildPrompt(t *testing.T) {
	now := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	results := []extract.Result{{Title: "t", URL: "u", Snippet: "s", PublishedAt: "Unknown"}}

	prompt := BuildPrompt("what is go", results, 5, 600, now)
	for _, want := range []string{"March 15, 2026", `"what is go"`, "[1] t", "600 tokens"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildPromptDeterministic(t *testing.T) {
	now := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	results := []extract.Result{{Title: "t", URL: "u", Snippet: "s"}}

	a := BuildPrompt("q", results, 5, 600, now)
	b := BuildPrompt("q", results, 5, 600, now)
	if a != b {
		t.Error("prompt must be deterministic for identical inputs")
	}
}
