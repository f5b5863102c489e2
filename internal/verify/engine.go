// Package verify executes a lab's verification procedure and interprets
// its result.
package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/rangelab/labctl/internal/domain"
)

// DefaultTimeout bounds a verification procedure's wall clock.
const DefaultTimeout = 30 * time.Second

// Payload is the structured result a verification executable must emit
// on stdout when it exits 0.
type Payload struct {
	ObjectivesMet    []string `json:"objectives_met"`
	ObjectivesFailed []string `json:"objectives_failed"`
	Score            int      `json:"score"`
	Feedback         []string `json:"feedback"`
}

// Engine runs verification procedures as isolated external processes.
// Failures of any kind degrade to a zero-score result with descriptive
// feedback; the engine never fabricates a passing result and never
// applies the pass threshold, which is the caller's policy.
type Engine struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewEngine returns an engine with the given wall-clock bound.
func NewEngine(timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Engine{Timeout: timeout, Logger: slog.Default()}
}

// Verify runs the lab's verification procedure and returns its result.
// A lab without a procedure yields score 0 with an explicit note.
func (e *Engine) Verify(ctx context.Context, lab *domain.LabDefinition) domain.VerificationResult {
	result := domain.VerificationResult{
		LabID:            lab.ID,
		Timestamp:        time.Now().UTC(),
		ObjectivesMet:    []string{},
		ObjectivesFailed: []string{},
		Feedback:         []string{},
	}

	if !lab.HasVerification() {
		result.Feedback = append(result.Feedback, "No automated verification available")
		return result
	}

	runCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, lab.VerifyCommand)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		e.Logger.Warn("verification timed out", "lab_id", lab.ID, "timeout", e.Timeout)
		result.Feedback = append(result.Feedback,
			fmt.Sprintf("Verification timed out after %s", e.Timeout))
		return result
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			e.Logger.Warn("verification check failed", "lab_id", lab.ID, "exit_code", exitErr.ExitCode())
			result.Feedback = append(result.Feedback,
				fmt.Sprintf("Verification failed: exit status %d: %s", exitErr.ExitCode(), excerpt(stderr.String())))
			return result
		}
		e.Logger.Warn("verification check could not run", "lab_id", lab.ID, "error", err)
		result.Feedback = append(result.Feedback,
			fmt.Sprintf("Verification error: %v", err))
		return result
	}

	payload, err := parsePayload(stdout.Bytes())
	if err != nil {
		e.Logger.Warn("verification produced malformed output", "lab_id", lab.ID, "error", err)
		result.Feedback = append(result.Feedback,
			fmt.Sprintf("Verification produced malformed output: %v", err))
		return result
	}

	result.ObjectivesMet = payload.ObjectivesMet
	result.ObjectivesFailed = payload.ObjectivesFailed
	result.Score = payload.Score
	result.Feedback = append(result.Feedback, payload.Feedback...)
	return result
}

func parsePayload(data []byte) (*Payload, error) {
	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrMalformedResult)
	}
	if payload.Score < 0 || payload.Score > 100 {
		return nil, fmt.Errorf("score %d outside [0,100]: %w", payload.Score, domain.ErrMalformedResult)
	}
	if payload.ObjectivesMet == nil {
		payload.ObjectivesMet = []string{}
	}
	if payload.ObjectivesFailed == nil {
		payload.ObjectivesFailed = []string{}
	}
	if payload.Feedback == nil {
		payload.Feedback = []string{}
	}
	return &payload, nil
}

// excerpt trims stderr to a single readable line for feedback strings.
func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const maxLen = 200
	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	if s == "" {
		return "(no error output)"
	}
	return s
}
