package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/searchwise/search-gateway/internal/provider"
)

// classificationTimeout is deliberately shorter than the summarization
// timeout; a slow classifier must not stall the page render.
const classificationTimeout = 20 * time.Second

const classifierSystemPrompt = `You are a query classifier. Determine if a search query needs AI summarization.

Queries that DON'T need summarization:
- Just a proper name (person, place, organization, brand, product)
- Single entity without context or questions
- Examples: "Taylor Swift", "Chicago", "iPhone 15", "Manchester United"

Queries that NEED summarization:
- Ask questions or seek specific information
- Have qualifying words (how, what, why, when, best, latest, vs, etc.)
- Request comparison or details
- Examples: "Taylor Swift tour dates", "Chicago weather", "iPhone 15 vs 16"`

var classifyTool = provider.Tool{
	Name:        "classify_query",
	Description: "Classify whether a search query needs AI summarization",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"needs_summary": map[string]any{
				"type":        "boolean",
				"description": "True if the query needs AI summarization, false if it's just a name/entity lookup",
			},
			"reasoning": map[string]any{
				"type":        "string",
				"description": "Brief explanation of the classification decision",
			},
		},
		"required": []string{"needs_summary"},
	},
}

// classifierJSONInstruction replaces the tool call on backends whose wire
// format cannot carry tool definitions.
const classifierJSONInstruction = `

Respond with a single JSON object of the form {"needs_summary": true|false, "reasoning": "..."} and nothing else.`

// Classifier asks a completion backend for a single-shot yes/no decision on
// whether a query needs a summary.
type Classifier struct {
	provider provider.Provider
	model    string
	useTools bool
}

func NewClassifier(p provider.Provider, model string) *Classifier {
	ts, ok := p.(provider.ToolSupport)
	useTools := ok && ts.SupportsTools()
	if !useTools {
		log.Warn().Str("provider", p.Name()).Msg("backend lacks tool calls, classifier falls back to JSON-in-content")
	}
	return &Classifier{provider: p, model: model, useTools: useTools}
}

func (c *Classifier) Classify(ctx context.Context, query string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, classificationTimeout)
	defer cancel()

	system := classifierSystemPrompt
	req := &provider.Request{Model: c.model}
	if c.useTools {
		req.Tools = []provider.Tool{classifyTool}
		req.ToolChoice = classifyTool.Name
	} else {
		system += classifierJSONInstruction
	}
	req.Messages = []provider.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: query},
	}

	resp, err := c.provider.Complete(ctx, req)
	if err != nil {
		return false, err
	}

	if len(resp.ToolCalls) == 0 {
		// Some models answer in content instead of honoring the tool choice.
		return parseArguments(resp.Content)
	}
	return parseArguments(resp.ToolCalls[0].Arguments)
}

// parseArguments tolerates an underspecified upstream contract: needs_summary
// arrives as a boolean or as the string "true"/"false" depending on model.
func parseArguments(raw string) (bool, error) {
	var args struct {
		NeedsSummary json.RawMessage `json:"needs_summary"`
		Reasoning    string          `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return false, fmt.Errorf("parsing classifier arguments: %w", err)
	}
	if len(args.NeedsSummary) == 0 {
		return false, fmt.Errorf("classifier response missing needs_summary")
	}

	var needsSummary bool
	switch {
	case json.Unmarshal(args.NeedsSummary, &needsSummary) == nil:
	default:
		var s string
		if err := json.Unmarshal(args.NeedsSummary, &s); err != nil {
			return false, fmt.Errorf("unexpected needs_summary value %s", args.NeedsSummary)
		}
		needsSummary = strings.EqualFold(s, "true")
	}

	if args.Reasoning != "" {
		log.Debug().Bool("needs_summary", needsSummary).Str("reasoning", args.Reasoning).Msg("query classified")
	}
	return needsSummary, nil
}
