package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/searchwise/search-gateway/internal/provider"
)

// OllamaProvider speaks the line-delimited /api/generate wire format: one JSON
// object per line carrying a "response" fragment, terminated by a line with
// "done": true and token-count metadata instead of a sentinel.
type OllamaProvider struct {
	baseURL string
	client  *http.Client
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Think   bool            `json:"think"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature   float64  `json:"temperature,omitempty"`
	TopP          float64  `json:"top_p,omitempty"`
	TopK          int      `json:"top_k,omitempty"`
	NumPredict    int      `json:"num_predict,omitempty"`
	RepeatPenalty float64  `json:"repeat_penalty,omitempty"`
	Stop          []string `json:"stop,omitempty"`
}

type generateResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func New(baseURL string) provider.Provider {
	return &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.DefaultClient,
	}
}

func (p *OllamaProvider) mapRequest(req *provider.Request, stream bool) (*generateRequest, error) {
	if req.Model == "" {
		return nil, fmt.Errorf("ollama: missing model id: %w", provider.ErrNotConfigured)
	}

	prompt := req.Prompt
	if prompt == "" {
		// Flatten role-tagged messages for the generate endpoint.
		var sb strings.Builder
		for _, m := range req.Messages {
			sb.WriteString(m.Content)
			sb.WriteString("\n\n")
		}
		prompt = strings.TrimSpace(sb.String())
	}
	if prompt == "" {
		return nil, fmt.Errorf("ollama: empty prompt")
	}

	return &generateRequest{
		Model:  req.Model,
		Prompt: prompt,
		Stream: stream,
		Options: generateOptions{
			Temperature:   req.Temperature,
			TopP:          0.9,
			TopK:          40,
			NumPredict:    req.MaxTokens,
			RepeatPenalty: 1.1,
			Stop:          req.Stop,
		},
	}, nil
}

func (p *OllamaProvider) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	genReq, err := p.mapRequest(req, false)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(genReq)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/api/generate", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama api error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, err
	}

	return &provider.Response{
		Content:      genResp.Response,
		InputTokens:  genResp.PromptEvalCount,
		OutputTokens: genResp.EvalCount,
		Model:        req.Model,
		Provider:     p.Name(),
	}, nil
}

func (p *OllamaProvider) CompleteStream(ctx context.Context, req *provider.Request) (<-chan *provider.Chunk, error) {
	genReq, err := p.mapRequest(req, true)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(genReq)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/api/generate", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	ch := make(chan *provider.Chunk)

	go func() {
		defer close(ch)

		resp, err := p.client.Do(httpReq)
		if err != nil {
			select {
			case ch <- &provider.Chunk{Err: err}:
			case <-ctx.Done():
			}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			select {
			case ch <- &provider.Chunk{Err: fmt.Errorf("ollama api error (status %d): %s", resp.StatusCode, string(respBody))}:
			case <-ctx.Done():
			}
			return
		}

		reader := bufio.NewReader(resp.Body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					// Stream ended without done:true; close it out anyway.
					select {
					case ch <- &provider.Chunk{Done: true}:
					case <-ctx.Done():
					}
					return
				}
				select {
				case ch <- &provider.Chunk{Err: err}:
				case <-ctx.Done():
				}
				return
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			var genResp generateResponse
			if err := json.Unmarshal([]byte(line), &genResp); err != nil {
				log.Warn().Err(err).Str("provider", p.Name()).Msg("skipping unparseable stream line")
				continue
			}

			if genResp.Done {
				log.Debug().
					Int("input_tokens", genResp.PromptEvalCount).
					Int("output_tokens", genResp.EvalCount).
					Msg("ollama stream completed")
				select {
				case ch <- &provider.Chunk{Done: true}:
				case <-ctx.Done():
				}
				return
			}

			if genResp.Response != "" {
				select {
				case ch <- &provider.Chunk{Content: genResp.Response}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}
