package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/imkarma/pillars/internal/config"
)

var defaultEndpoints = map[string]string{
	"ollama":    "http://localhost:11434",
	"openai":    "https://api.openai.com/v1",
	"anthropic": "https://api.anthropic.com/v1",
	"google":    "https://generativelanguage.googleapis.com/v1beta",
}

// APIRunner calls a model provider's HTTP API directly.
type APIRunner struct {
	cfg      config.AI
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewAPIRunner creates a runner that calls a model API. Ollama runs locally
// and needs no key; the other providers read theirs from cfg.APIKeyEnv.
func NewAPIRunner(cfg config.AI) (*APIRunner, error) {
	if cfg.Provider == "" {
		cfg.Provider = "ollama"
	}
	endpoint, ok := defaultEndpoints[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unsupported API provider: %s", cfg.Provider)
	}
	if cfg.Endpoint != "" {
		endpoint = cfg.Endpoint
	}

	var apiKey string
	if cfg.Provider != "ollama" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("ai %s: environment variable %q is not set", cfg.Provider, cfg.APIKeyEnv)
		}
	}

	timeout := time.Duration(cfg.DefaultTimeout()) * time.Second

	return &APIRunner{
		cfg:      cfg,
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

func (r *APIRunner) Name() string { return r.cfg.Provider }
func (r *APIRunner) Mode() string { return "api" }

// Run sends the prompt to the configured provider.
func (r *APIRunner) Run(ctx context.Context, req Request) (*Response, error) {
	switch r.cfg.Provider {
	case "ollama":
		return r.runOllama(ctx, req)
	case "openai":
		return r.runOpenAI(ctx, req)
	case "anthropic":
		return r.runAnthropic(ctx, req)
	case "google":
		return r.runGoogle(ctx, req)
	default:
		return nil, fmt.Errorf("unsupported API provider: %s", r.cfg.Provider)
	}
}

// runOllama handles the local Ollama generate API.
func (r *APIRunner) runOllama(ctx context.Context, req Request) (*Response, error) {
	model := r.cfg.Model
	if model == "" {
		model = "llama3.2"
	}
	options := map[string]any{}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if req.TopP > 0 {
		options["top_p"] = req.TopP
	}
	if req.NumPredict > 0 {
		options["num_predict"] = req.NumPredict
	}
	body := map[string]any{
		"model":   model,
		"prompt":  req.Prompt,
		"stream":  false,
		"options": options,
	}

	var result struct {
		Response string `json:"response"`
	}
	resp, err := r.post(ctx, r.endpoint+"/api/generate", body, nil, &result)
	if err != nil || resp.Error != nil {
		return resp, err
	}
	resp.Output = result.Response
	return resp, nil
}

// runOpenAI handles OpenAI-compatible APIs (OpenAI, OpenRouter, local proxies).
func (r *APIRunner) runOpenAI(ctx context.Context, req Request) (*Response, error) {
	body := map[string]any{
		"model": r.cfg.Model,
		"messages": []map[string]string{
			{"role": "user", "content": req.Prompt},
		},
		"max_tokens": maxTokens(req),
	}
	if req.Temperature > 0 {
		body["temperature"] = req.Temperature
	}
	if req.TopP > 0 {
		body["top_p"] = req.TopP
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	headers := map[string]string{"Authorization": "Bearer " + r.apiKey}
	resp, err := r.post(ctx, r.endpoint+"/chat/completions", body, headers, &result)
	if err != nil || resp.Error != nil {
		return resp, err
	}
	if len(result.Choices) > 0 {
		resp.Output = result.Choices[0].Message.Content
	}
	return resp, nil
}

// runAnthropic handles Anthropic's Messages API.
func (r *APIRunner) runAnthropic(ctx context.Context, req Request) (*Response, error) {
	body := map[string]any{
		"model":      r.cfg.Model,
		"max_tokens": maxTokens(req),
		"messages": []map[string]string{
			{"role": "user", "content": req.Prompt},
		},
	}
	if req.Temperature > 0 {
		body["temperature"] = min(req.Temperature, 1)
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	headers := map[string]string{
		"x-api-key":         r.apiKey,
		"anthropic-version": "2023-06-01",
	}
	resp, err := r.post(ctx, r.endpoint+"/messages", body, headers, &result)
	if err != nil || resp.Error != nil {
		return resp, err
	}
	if len(result.Content) > 0 {
		resp.Output = result.Content[0].Text
	}
	return resp, nil
}

// runGoogle handles Google's Generative AI API (Gemini).
func (r *APIRunner) runGoogle(ctx context.Context, req Request) (*Response, error) {
	model := r.cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", r.endpoint, model, r.apiKey)

	generation := map[string]any{"maxOutputTokens": maxTokens(req)}
	if req.Temperature > 0 {
		generation["temperature"] = req.Temperature
	}
	if req.TopP > 0 {
		generation["topP"] = req.TopP
	}
	body := map[string]any{
		"contents": []map[string]any{
			{
				"parts": []map[string]string{
					{"text": req.Prompt},
				},
			},
		},
		"generationConfig": generation,
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	resp, err := r.post(ctx, url, body, nil, &result)
	if err != nil || resp.Error != nil {
		return resp, err
	}
	if len(result.Candidates) > 0 && len(result.Candidates[0].Content.Parts) > 0 {
		resp.Output = result.Candidates[0].Content.Parts[0].Text
	}
	return resp, nil
}

// post sends a JSON body and decodes a 200 reply into out. Transport
// failures and non-200 statuses come back in Response.Error.
func (r *APIRunner) post(ctx context.Context, url string, body any, headers map[string]string, out any) (*Response, error) {
	start := time.Now()

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := r.client.Do(httpReq)
	if err != nil {
		return &Response{
			ExitCode: -1,
			Duration: time.Since(start).Seconds(),
			Error:    fmt.Errorf("API call failed: %w", err),
		}, nil
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return &Response{
			Output:   string(respBody),
			ExitCode: httpResp.StatusCode,
			Duration: time.Since(start).Seconds(),
			Error:    fmt.Errorf("API returned status %d: %s", httpResp.StatusCode, string(respBody)),
		}, nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return &Response{Duration: time.Since(start).Seconds()}, nil
}

func maxTokens(req Request) int {
	if req.NumPredict > 0 {
		return req.NumPredict
	}
	return 512
}
