package summary

import (
	"context"
	"strings"
	"testing"

	"github.com/searchwise/search-gateway/config"
	"github.com/searchwise/search-gateway/internal/extract"
)

func testConfig(mode string) *config.Config {
	return &config.Config{
		SummaryMode: mode,
		MinKeywords: 3,
		MinResults:  3,
		ExcludeWords: []string{
			"github", "gitlab", "download", "repository", "repo", "link", "url",
			"tool", "software", "program", "app", "library", "framework",
		},
		OverrideWords: []string{
			"what", "why", "how", "when", "where", "who", "which",
			"can", "will", "would", "could", "should",
			"is", "are", "was", "were", "do", "does", "did",
			"example", "explain", "simplify", "eli5",
		},
	}
}

func makeResults(n int) []extract.Result {
	results := make([]extract.Result, n)
	for i := range results {
		results[i] = extract.Result{Title: "t", URL: "u", Snippet: "s"}
	}
	return results
}

func TestDecideEmptyResultsAllModes(t *testing.T) {
	for _, mode := range []string{config.ModeManual, config.ModeAuto, config.ModeSmart} {
		e := NewEngine(testConfig(mode), nil)
		outcome := e.Decide(context.Background(), "what is the capital of France", nil)
		if outcome.ShouldSummarize {
			t.Errorf("mode %s: empty result set must never summarize", mode)
		}
	}
}

func TestDecideManual(t *testing.T) {
	e := NewEngine(testConfig(config.ModeManual), nil)
	outcome := e.Decide(context.Background(), "go", makeResults(1))
	if !outcome.ShouldSummarize {
		t.Error("manual mode with results should summarize")
	}
}

func TestDecideHeuristicOverrideWins(t *testing.T) {
	e := NewEngine(testConfig(config.ModeAuto), nil)

	// "what" overrides; even an exclude word elsewhere in the query loses.
	outcome := e.Decide(context.Background(), "what is the capital of France", makeResults(3))
	if !outcome.ShouldSummarize {
		t.Errorf("expected summarize, got reason %q", outcome.Reason)
	}

	outcome = e.Decide(context.Background(), "what github repository hosts linux", makeResults(3))
	if !outcome.ShouldSummarize {
		t.Errorf("override word should beat exclude words, got reason %q", outcome.Reason)
	}
}

func TestDecideHeuristicTooFewKeywords(t *testing.T) {
	e := NewEngine(testConfig(config.ModeAuto), nil)

	outcome := e.Decide(context.Background(), "torrent download", makeResults(5))
	if outcome.ShouldSummarize {
		t.Error("two-keyword query should not summarize")
	}
	if !strings.Contains(outcome.Reason, "keywords (2/3)") {
		t.Errorf("reason should cite keyword count, got %q", outcome.Reason)
	}
}

func TestDecideHeuristicTooFewResults(t *testing.T) {
	e := NewEngine(testConfig(config.ModeAuto), nil)

	outcome := e.Decide(context.Background(), "best rust async runtimes compared", makeResults(2))
	if outcome.ShouldSummarize {
		t.Error("too few results should not summarize")
	}
	if !strings.Contains(outcome.Reason, "results (2/3)") {
		t.Errorf("reason should cite result count, got %q", outcome.Reason)
	}
}

func TestDecideHeuristicExcludeWord(t *testing.T) {
	e := NewEngine(testConfig(config.ModeAuto), nil)

	outcome := e.Decide(context.Background(), "best python web framework comparison", makeResults(4))
	if outcome.ShouldSummarize {
		t.Error("exclude word without override should not summarize")
	}
	if !strings.Contains(outcome.Reason, `"framework"`) {
		t.Errorf("reason should name the matched word, got %q", outcome.Reason)
	}
}

func TestDecideHeuristicWholeTokenMatch(t *testing.T) {
	e := NewEngine(testConfig(config.ModeAuto), nil)

	// "appliance" contains "app" but must not match the exclude word.
	outcome := e.Decide(context.Background(), "best kitchen appliance brands ranked", makeResults(4))
	if !outcome.ShouldSummarize {
		t.Errorf("substring of an exclude word should not match, got reason %q", outcome.Reason)
	}
}

func TestDecideHeuristicPlainQuery(t *testing.T) {
	e := NewEngine(testConfig(config.ModeAuto), nil)

	outcome := e.Decide(context.Background(), "golang context cancellation patterns", makeResults(4))
	if !outcome.ShouldSummarize {
		t.Errorf("neutral query should summarize, got reason %q", outcome.Reason)
	}
}

func TestDecideSmartWithoutClassifierFailsOpen(t *testing.T) {
	e := NewEngine(testConfig(config.ModeSmart), nil)

	outcome := e.Decide(context.Background(), "Taylor Swift", makeResults(3))
	if !outcome.ShouldSummarize {
		t.Error("smart mode without a classifier should fail open")
	}
}
