package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/imkarma/pillars/internal/config"
)

type fakeRunner struct {
	resp  *Response
	err   error
	delay time.Duration
	got   Request
}

func (f *fakeRunner) Name() string { return "fake" }
func (f *fakeRunner) Mode() string { return "api" }

func (f *fakeRunner) Run(ctx context.Context, req Request) (*Response, error) {
	f.got = req
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.resp, f.err
}

// --- Generate tests ---

func TestGenerate_CleansOutput(t *testing.T) {
	r := &fakeRunner{resp: &Response{Output: "Assistant: **Go** for it."}}
	text, ok := Generate(context.Background(), r, Request{Prompt: "p"})
	if !ok || text != "Go for it." {
		t.Fatalf("expected cleaned text, got %q ok=%v", text, ok)
	}
}

func TestGenerate_NilRunner(t *testing.T) {
	if _, ok := Generate(context.Background(), nil, Request{}); ok {
		t.Fatal("expected false for nil runner")
	}
}

func TestGenerate_ErrorIsSwallowed(t *testing.T) {
	r := &fakeRunner{err: errors.New("connection refused")}
	text, ok := Generate(context.Background(), r, Request{Prompt: "p"})
	if ok || text != "" {
		t.Fatalf("expected fallback signal, got %q ok=%v", text, ok)
	}
}

func TestGenerate_NonZeroExit(t *testing.T) {
	r := &fakeRunner{resp: &Response{Output: "partial", ExitCode: 500, Error: errors.New("boom")}}
	if _, ok := Generate(context.Background(), r, Request{Prompt: "p"}); ok {
		t.Fatal("expected false on failed response")
	}
}

func TestGenerate_EmptyOutput(t *testing.T) {
	r := &fakeRunner{resp: &Response{Output: "   \n"}}
	if _, ok := Generate(context.Background(), r, Request{Prompt: "p"}); ok {
		t.Fatal("expected false on empty output")
	}
}

func TestGenerate_Timeout(t *testing.T) {
	r := &fakeRunner{resp: &Response{Output: "late"}, delay: 5 * time.Second}
	start := time.Now()
	_, ok := Generate(context.Background(), r, Request{Prompt: "p", TimeoutSec: 1})
	if ok {
		t.Fatal("expected false after timeout")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("timeout not applied, took %v", elapsed)
	}
}

func TestGenerate_Truncates(t *testing.T) {
	r := &fakeRunner{resp: &Response{Output: "Short one. And then a much longer second sentence follows."}}
	text, ok := Generate(context.Background(), r, Request{Prompt: "p", MaxLen: 15})
	if !ok || text != "Short one." {
		t.Fatalf("expected truncation at sentence, got %q", text)
	}
}

func TestRequestFor(t *testing.T) {
	cfg := config.DefaultConfig().AI
	req := RequestFor(cfg, "hello")
	if req.Prompt != "hello" || req.MaxLen != cfg.MaxLen || req.NumPredict != cfg.NumPredict {
		t.Fatalf("unexpected request %+v", req)
	}
	if req.TimeoutSec != cfg.DefaultTimeout() {
		t.Fatalf("expected timeout %d, got %d", cfg.DefaultTimeout(), req.TimeoutSec)
	}
}

// --- NewRunner tests ---

func TestNewRunner_UnknownMode(t *testing.T) {
	if _, err := NewRunner(config.AI{Mode: "grpc"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestNewRunner_MissingCLI(t *testing.T) {
	if _, err := NewRunner(config.AI{Mode: "cli", Cmd: "pillars-no-such-model-cli"}); err == nil {
		t.Fatal("expected error for missing command")
	}
}

func TestNewRunner_MissingAPIKey(t *testing.T) {
	t.Setenv("PILLARS_TEST_KEY", "")
	_, err := NewRunner(config.AI{Mode: "api", Provider: "openai", APIKeyEnv: "PILLARS_TEST_KEY"})
	if err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestNewRunner_OllamaNeedsNoKey(t *testing.T) {
	r, err := NewRunner(config.AI{Mode: "api", Provider: "ollama"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Name() != "ollama" || r.Mode() != "api" {
		t.Fatalf("unexpected runner %s/%s", r.Name(), r.Mode())
	}
}

// --- APIRunner tests ---

func TestAPIRunner_Ollama(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"response":"Take a five minute start.","done":true}`))
	}))
	defer srv.Close()

	r, err := NewAPIRunner(config.AI{Provider: "ollama", Model: "phi3", Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	resp, err := r.Run(context.Background(), Request{Prompt: "nudge", Temperature: 0.5, NumPredict: 64})
	if err != nil || resp.Error != nil {
		t.Fatalf("run: %v %v", err, resp.Error)
	}
	if resp.Output != "Take a five minute start." {
		t.Fatalf("got output %q", resp.Output)
	}
	if body["model"] != "phi3" || body["prompt"] != "nudge" || body["stream"] != false {
		t.Fatalf("unexpected body %v", body)
	}
	opts, _ := body["options"].(map[string]any)
	if opts["temperature"] != 0.5 || opts["num_predict"] != float64(64) {
		t.Fatalf("unexpected options %v", opts)
	}
}

func TestAPIRunner_OpenAI(t *testing.T) {
	t.Setenv("PILLARS_TEST_KEY", "sk-test")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing auth header")
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"Well done today."}}]}`))
	}))
	defer srv.Close()

	r, err := NewAPIRunner(config.AI{Provider: "openai", Model: "gpt-4o-mini", APIKeyEnv: "PILLARS_TEST_KEY", Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	resp, err := r.Run(context.Background(), Request{Prompt: "summary"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if resp.Output != "Well done today." {
		t.Fatalf("got output %q", resp.Output)
	}
}

func TestAPIRunner_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	r, _ := NewAPIRunner(config.AI{Provider: "ollama", Endpoint: srv.URL})
	resp, err := r.Run(context.Background(), Request{Prompt: "x"})
	if err != nil {
		t.Fatalf("expected error in response, got %v", err)
	}
	if resp.ExitCode != http.StatusNotFound || resp.Error == nil {
		t.Fatalf("expected 404 response error, got %+v", resp)
	}
}

// --- CLIRunner tests ---

func TestCLIRunner_Echo(t *testing.T) {
	if !CLIAvailable("echo") {
		t.Skip("echo not in PATH")
	}
	r := NewCLIRunner(config.AI{Mode: "cli", Cmd: "echo", Args: []string{"coach:"}})
	text, ok := Generate(context.Background(), r, Request{Prompt: "one small step", TimeoutSec: 5})
	if !ok || text != "one small step" {
		t.Fatalf("expected echoed prompt, got %q ok=%v", text, ok)
	}
}

func TestCLIRunner_NonZeroExit(t *testing.T) {
	if !CLIAvailable("false") {
		t.Skip("false not in PATH")
	}
	r := NewCLIRunner(config.AI{Mode: "cli", Cmd: "false"})
	resp, err := r.Run(context.Background(), Request{Prompt: "x", TimeoutSec: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ExitCode == 0 || resp.Error == nil {
		t.Fatalf("expected failure, got %+v", resp)
	}
}
