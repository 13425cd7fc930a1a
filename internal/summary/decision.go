package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/searchwise/search-gateway/config"
	"github.com/searchwise/search-gateway/internal/extract"
)

// Outcome is the decision engine's verdict for one query/result set. Reason
// is informational and only set when ShouldSummarize is false.
type Outcome struct {
	ShouldSummarize bool
	Reason          string
}

// Engine decides whether a summary should be synthesized, under one of three
// policies: manual, auto (heuristic) or smart (AI-classified).
type Engine struct {
	mode          string
	minKeywords   int
	minResults    int
	excludeWords  []string
	overrideWords []string
	classifier    *Classifier // nil unless smart mode is usable
}

func NewEngine(cfg *config.Config, classifier *Classifier) *Engine {
	return &Engine{
		mode:          cfg.SummaryMode,
		minKeywords:   cfg.MinKeywords,
		minResults:    cfg.MinResults,
		excludeWords:  cfg.ExcludeWords,
		overrideWords: cfg.OverrideWords,
		classifier:    classifier,
	}
}

// Decide never answers "summarize" for an empty result set, regardless of mode.
func (e *Engine) Decide(ctx context.Context, query string, results []extract.Result) Outcome {
	if len(results) == 0 {
		return Outcome{ShouldSummarize: false, Reason: "no results to summarize"}
	}

	switch e.mode {
	case config.ModeAuto:
		return e.decideHeuristic(query, results)
	case config.ModeSmart:
		return e.decideSmart(ctx, query)
	default:
		// Manual mode: the user triggers generation client-side; the server
		// gate is only "were there results".
		return Outcome{ShouldSummarize: true}
	}
}

func (e *Engine) decideHeuristic(query string, results []extract.Result) Outcome {
	keywords := strings.Fields(strings.TrimSpace(query))
	if len(keywords) < e.minKeywords {
		return Outcome{
			ShouldSummarize: false,
			Reason:          fmt.Sprintf("Not enough keywords (%d/%d)", len(keywords), e.minKeywords),
		}
	}
	if len(results) < e.minResults {
		return Outcome{
			ShouldSummarize: false,
			Reason:          fmt.Sprintf("Not enough results (%d/%d)", len(results), e.minResults),
		}
	}

	queryWords := strings.Fields(strings.ToLower(query))

	// Interrogatives override the exclude list: a question about a tool is
	// still a question. Matching is whole-token, never substring.
	for _, w := range queryWords {
		for _, override := range e.overrideWords {
			if w == override {
				return Outcome{ShouldSummarize: true}
			}
		}
	}

	for _, exclude := range e.excludeWords {
		for _, w := range queryWords {
			if w == exclude {
				return Outcome{
					ShouldSummarize: false,
					Reason:          fmt.Sprintf("Query contains word in the exclude list: %q", exclude),
				}
			}
		}
	}

	return Outcome{ShouldSummarize: true}
}

func (e *Engine) decideSmart(ctx context.Context, query string) Outcome {
	if e.classifier == nil {
		log.Debug().Msg("no classification model configured, defaulting to summarize")
		return Outcome{ShouldSummarize: true}
	}

	needsSummary, err := e.classifier.Classify(ctx, query)
	if err != nil {
		// Fail open: an occasionally unnecessary summary beats silently
		// withholding a useful one.
		log.Warn().Err(err).Msg("classification failed, defaulting to summarize")
		return Outcome{ShouldSummarize: true}
	}
	if !needsSummary {
		return Outcome{ShouldSummarize: false, Reason: "classifier marked query as entity lookup"}
	}
	return Outcome{ShouldSummarize: true}
}
