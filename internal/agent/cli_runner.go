package agent

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/imkarma/pillars/internal/config"
)

// CLIRunner spawns a local model CLI (ollama, llm, claude, etc.) and passes
// the prompt as the last argument.
type CLIRunner struct {
	cfg config.AI
}

// NewCLIRunner creates a runner that spawns CLI processes.
func NewCLIRunner(cfg config.AI) *CLIRunner {
	return &CLIRunner{cfg: cfg}
}

func (r *CLIRunner) Name() string { return r.cfg.Cmd }
func (r *CLIRunner) Mode() string { return "cli" }

// Run spawns the CLI with the prompt.
//
// With cmd="ollama" and model "llama3.2" the full command becomes:
// ollama run llama3.2 "the prompt text"
func (r *CLIRunner) Run(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	args := r.cfg.EffectiveArgs()
	args = append(args, req.Prompt)

	timeout := time.Duration(r.cfg.DefaultTimeout()) * time.Second
	if req.TimeoutSec > 0 {
		timeout = time.Duration(req.TimeoutSec) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.cfg.Cmd, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	resp := &Response{
		Output:   stdout.String(),
		Duration: time.Since(start).Seconds(),
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			resp.Error = fmt.Errorf("%s timed out after %ds", r.cfg.Cmd, int(timeout.Seconds()))
			resp.ExitCode = -1
			return resp, resp.Error
		}

		if exitErr, ok := err.(*exec.ExitError); ok {
			resp.ExitCode = exitErr.ExitCode()
		} else {
			resp.ExitCode = -1
		}

		stderrStr := strings.TrimSpace(stderr.String())
		if stderrStr != "" {
			resp.Error = fmt.Errorf("%s exited with code %d: %s", r.cfg.Cmd, resp.ExitCode, stderrStr)
		} else {
			resp.Error = fmt.Errorf("%s exited with code %d: %w", r.cfg.Cmd, resp.ExitCode, err)
		}
		return resp, nil
	}

	return resp, nil
}

// CLIAvailable checks if the CLI command exists in PATH.
func CLIAvailable(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}
