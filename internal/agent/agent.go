// Package agent talks to the text-generation backend used for coaching.
// Runners exist for HTTP model APIs and for local model CLIs.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/imkarma/pillars/internal/config"
	"github.com/imkarma/pillars/internal/logging"
)

// DefaultTimeoutSec bounds a generation when neither the request nor the
// runner config sets a timeout.
const DefaultTimeoutSec = 20

// Request is one generation.
type Request struct {
	Prompt      string
	Temperature float64
	TopP        float64
	NumPredict  int // max tokens, 0 = backend default
	MaxLen      int // max characters kept, 0 = no limit
	TimeoutSec  int
}

// Response is what we get back from a runner.
type Response struct {
	Output   string  // raw model output
	ExitCode int     // 0 = success; HTTP status or process exit code otherwise
	Duration float64 // seconds
	Error    error
}

// Runner is the interface that all backends implement.
type Runner interface {
	// Run executes one generation.
	Run(ctx context.Context, req Request) (*Response, error)

	// Name returns the backend name, e.g. "ollama" or the CLI command.
	Name() string

	// Mode returns "cli" or "api".
	Mode() string
}

// NewRunner creates the runner for an AI config section.
func NewRunner(cfg config.AI) (Runner, error) {
	switch cfg.Mode {
	case "cli":
		if !CLIAvailable(cfg.Cmd) {
			return nil, fmt.Errorf("ai command %q not found in PATH", cfg.Cmd)
		}
		return NewCLIRunner(cfg), nil
	case "api":
		return NewAPIRunner(cfg)
	default:
		return nil, fmt.Errorf("unknown ai mode: %s", cfg.Mode)
	}
}

// RequestFor fills the sampling fields of a request from config.
func RequestFor(cfg config.AI, prompt string) Request {
	return Request{
		Prompt:      prompt,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		NumPredict:  cfg.NumPredict,
		MaxLen:      cfg.MaxLen,
		TimeoutSec:  cfg.DefaultTimeout(),
	}
}

// Generate runs req and returns the cleaned text. It never fails: any
// error, timeout, non-zero exit or empty reply gives ("", false), and the
// caller falls back to its own text.
func Generate(ctx context.Context, r Runner, req Request) (string, bool) {
	if r == nil {
		return "", false
	}
	timeout := req.TimeoutSec
	if timeout <= 0 {
		timeout = DefaultTimeoutSec
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	log := logging.Logger.With("component", "agent", "runner", r.Name())

	resp, err := r.Run(ctx, req)
	if err != nil {
		log.Warn("generation failed", "error", err)
		return "", false
	}
	if resp == nil {
		return "", false
	}
	if resp.Error != nil || resp.ExitCode != 0 {
		log.Warn("generation failed", "exit_code", resp.ExitCode, "error", resp.Error)
		return "", false
	}

	text := Clean(resp.Output, req.MaxLen)
	if text == "" {
		log.Debug("generation empty", "duration", resp.Duration)
		return "", false
	}
	log.Debug("generation done", "duration", resp.Duration, "chars", len(text))
	return text, true
}
