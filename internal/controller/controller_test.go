package controller

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rangelab/labctl/internal/agent"
	"github.com/rangelab/labctl/internal/agentlog"
	"github.com/rangelab/labctl/internal/domain"
	"github.com/rangelab/labctl/internal/lab"
	"github.com/rangelab/labctl/internal/store"
)

// stubVerifier returns canned scores keyed by lab, so tests exercise the
// orchestration without shelling out.
type stubVerifier struct {
	scores map[string]int
	calls  int
}

func (v *stubVerifier) Verify(_ context.Context, def *domain.LabDefinition) domain.VerificationResult {
	v.calls++
	return domain.VerificationResult{
		LabID:    def.ID,
		Score:    v.scores[def.ID],
		Feedback: []string{"stub"},
	}
}

type stubAgents struct {
	sent []string
}

func (a *stubAgents) Send(_ context.Context, role agent.Role, instruction string) string {
	a.sent = append(a.sent, string(role)+": "+instruction)
	return "ok"
}

func (a *stubAgents) Status(context.Context) agent.Status {
	return agent.Status{RedLoaded: true, BlueLoaded: true}
}

type stubRange struct {
	resets []string
	err    error
}

func (r *stubRange) ResetTargets(_ context.Context, studentID string) (int, error) {
	r.resets = append(r.resets, studentID)
	return 2, r.err
}

func writeLab(t *testing.T, root, id, definition string) {
	t.Helper()
	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir lab: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "lab.json"), []byte(definition), 0o644); err != nil {
		t.Fatalf("write lab.json: %v", err)
	}
}

func newTestController(t *testing.T, scores map[string]int, rng RangeResetter) (*Controller, *stubVerifier, *stubAgents) {
	t.Helper()

	labsDir := t.TempDir()
	writeLab(t, labsDir, "lab-01", `{
		"title": "Recon Basics",
		"difficulty": "beginner",
		"objectives": ["scan", "report"],
		"hints": ["try nmap", "look at port 22", "check the banner"]
	}`)
	writeLab(t, labsDir, "lab-02", `{
		"title": "Log Analysis",
		"objectives": ["find the intrusion"]
	}`)

	repo, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	log, err := agentlog.New(t.TempDir())
	if err != nil {
		t.Fatalf("agentlog.New failed: %v", err)
	}

	verifier := &stubVerifier{scores: scores}
	agents := &stubAgents{}
	return New(lab.NewCatalog(labsDir), repo, verifier, agents, log, rng, 70), verifier, agents
}

func TestLabLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	scores := map[string]int{"lab-01": 85}
	ctl, _, _ := newTestController(t, scores, nil)

	// First attempt passes and is folded into the session.
	start, err := ctl.StartLab(ctx, "student-01", "lab-01")
	if err != nil {
		t.Fatalf("StartLab failed: %v", err)
	}
	if start.Attempt != 1 {
		t.Errorf("expected attempt 1, got %d", start.Attempt)
	}
	if start.Lab.Title != "Recon Basics" {
		t.Errorf("unexpected lab %+v", start.Lab)
	}

	outcome, err := ctl.Verify(ctx, "student-01")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !outcome.Passed || outcome.Result.Score != 85 {
		t.Fatalf("expected pass at 85, got %+v", outcome)
	}

	status, err := ctl.Status(ctx, "student-01")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.Progress.CurrentLab != "" {
		t.Errorf("expected idle after pass, still on %q", status.Progress.CurrentLab)
	}
	if status.Progress.TotalScore != 85 || status.Progress.CompletedCount != 1 {
		t.Errorf("unexpected progress %+v", status.Progress)
	}

	// Restarting a completed lab counts a second attempt; a second pass
	// keeps one completion entry but awards the score again.
	scores["lab-01"] = 80
	start, err = ctl.StartLab(ctx, "student-01", "lab-01")
	if err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if start.Attempt != 2 {
		t.Errorf("expected attempt 2, got %d", start.Attempt)
	}

	if _, err := ctl.Verify(ctx, "student-01"); err != nil {
		t.Fatalf("second Verify failed: %v", err)
	}
	status, err = ctl.Status(ctx, "student-01")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.Progress.CompletedCount != 1 {
		t.Errorf("expected one completion entry, got %d", status.Progress.CompletedCount)
	}
	if status.Progress.TotalScore != 165 {
		t.Errorf("expected cumulative score 165, got %d", status.Progress.TotalScore)
	}
}

func TestVerifyBelowThresholdKeepsLabActive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ctl, _, _ := newTestController(t, map[string]int{"lab-01": 40}, nil)

	if _, err := ctl.StartLab(ctx, "student-01", "lab-01"); err != nil {
		t.Fatalf("StartLab failed: %v", err)
	}

	outcome, err := ctl.Verify(ctx, "student-01")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if outcome.Passed {
		t.Fatal("40 must not pass a 70 threshold")
	}

	status, err := ctl.Status(ctx, "student-01")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.Progress.CurrentLab != "lab-01" {
		t.Errorf("failed verification must leave the lab active, got %q", status.Progress.CurrentLab)
	}
	if status.Progress.TotalScore != 0 || status.Progress.CompletedCount != 0 {
		t.Errorf("failed verification must not award anything: %+v", status.Progress)
	}
}

func TestVerifyWithoutActiveLab(t *testing.T) {
	t.Parallel()

	ctl, verifier, _ := newTestController(t, nil, nil)

	_, err := ctl.Verify(context.Background(), "student-01")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if verifier.calls != 0 {
		t.Errorf("verifier must not run without an active lab")
	}
}

func TestStartUnknownLabMutatesNothing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ctl, _, _ := newTestController(t, nil, nil)

	if _, err := ctl.StartLab(ctx, "student-01", "lab-99"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	status, err := ctl.Status(ctx, "student-01")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if len(status.Progress.Attempts) != 0 {
		t.Errorf("unknown lab must not record an attempt: %+v", status.Progress)
	}
}

func TestHintFollowsAttemptCount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ctl, _, _ := newTestController(t, map[string]int{"lab-01": 0}, nil)

	// No active lab yet.
	if _, err := ctl.Hint(ctx, "student-01"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	expected := []struct {
		number int
		text   string
	}{
		{1, "try nmap"},
		{2, "look at port 22"},
		{3, "check the banner"},
		{3, "check the banner"}, // clamped at the last hint
	}
	for i, want := range expected {
		if _, err := ctl.StartLab(ctx, "student-01", "lab-01"); err != nil {
			t.Fatalf("StartLab %d failed: %v", i+1, err)
		}
		hint, err := ctl.Hint(ctx, "student-01")
		if err != nil {
			t.Fatalf("Hint on attempt %d failed: %v", i+1, err)
		}
		if hint.Number != want.number || hint.Text != want.text {
			t.Errorf("attempt %d: expected hint %d %q, got %d %q",
				i+1, want.number, want.text, hint.Number, hint.Text)
		}
	}
}

func TestHintOnLabWithoutHints(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ctl, _, _ := newTestController(t, nil, nil)

	// lab-02 ships no hints; asking is informational, not a failure.
	if _, err := ctl.StartLab(ctx, "student-01", "lab-02"); err != nil {
		t.Fatalf("StartLab failed: %v", err)
	}
	hint, err := ctl.Hint(ctx, "student-01")
	if err != nil {
		t.Fatalf("Hint on a hintless lab must not fail: %v", err)
	}
	if hint.Number != 0 || hint.Text != "" {
		t.Errorf("expected no hint to reveal, got %+v", hint)
	}
}

func TestChatDelegatesToAgents(t *testing.T) {
	t.Parallel()

	ctl, _, agents := newTestController(t, nil, nil)

	if got := ctl.Chat(context.Background(), agent.RoleRed, "probe the target"); got != "ok" {
		t.Fatalf("unexpected chat response %q", got)
	}
	if len(agents.sent) != 1 || agents.sent[0] != "red: probe the target" {
		t.Errorf("unexpected sends %v", agents.sent)
	}
}

func TestStatsAggregatesAcrossStudents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ctl, verifier, _ := newTestController(t, map[string]int{"lab-01": 90}, nil)

	for _, id := range []string{"alpha", "bravo"} {
		if _, err := ctl.StartLab(ctx, id, "lab-01"); err != nil {
			t.Fatalf("StartLab(%s) failed: %v", id, err)
		}
		if _, err := ctl.Verify(ctx, id); err != nil {
			t.Fatalf("Verify(%s) failed: %v", id, err)
		}
	}
	verifier.scores["lab-01"] = 10
	if _, err := ctl.StartLab(ctx, "charlie", "lab-01"); err != nil {
		t.Fatalf("StartLab(charlie) failed: %v", err)
	}
	if _, err := ctl.Verify(ctx, "charlie"); err != nil {
		t.Fatalf("Verify(charlie) failed: %v", err)
	}

	stats, err := ctl.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Students != 3 {
		t.Errorf("expected 3 students, got %d", stats.Students)
	}
	if stats.Completions != 2 {
		t.Errorf("expected 2 completions, got %d", stats.Completions)
	}
	if stats.AverageScore != 60 {
		t.Errorf("expected average 60, got %v", stats.AverageScore)
	}
}

func TestResetClearsSessionAndRestoresTargets(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rng := &stubRange{}
	ctl, _, _ := newTestController(t, map[string]int{"lab-01": 95}, rng)

	if _, err := ctl.StartLab(ctx, "student-01", "lab-01"); err != nil {
		t.Fatalf("StartLab failed: %v", err)
	}
	if _, err := ctl.Verify(ctx, "student-01"); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if err := ctl.Reset(ctx, "student-01"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if len(rng.resets) != 1 || rng.resets[0] != "student-01" {
		t.Errorf("expected one target reset for student-01, got %v", rng.resets)
	}

	grade, err := ctl.Grade(ctx, "student-01")
	if err != nil {
		t.Fatalf("Grade failed: %v", err)
	}
	if grade.Score != 0 || len(grade.CompletedLabs) != 0 {
		t.Errorf("expected zeroed record after reset, got %+v", grade)
	}
}

func TestResetSurvivesRangeFailure(t *testing.T) {
	t.Parallel()

	rng := &stubRange{err: errors.New("docker down")}
	ctl, _, _ := newTestController(t, nil, rng)

	if err := ctl.Reset(context.Background(), "student-01"); err != nil {
		t.Fatalf("Reset must not fail on range errors: %v", err)
	}
}

func TestMonitorIncludesRecentActivity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ctl, _, _ := newTestController(t, nil, nil)

	info, err := ctl.Monitor(ctx, "student-01", 20)
	if err != nil {
		t.Fatalf("Monitor failed: %v", err)
	}
	if info.Progress.StudentID != "student-01" {
		t.Errorf("unexpected progress %+v", info.Progress)
	}
	if len(info.Recent) != 0 {
		t.Errorf("expected no activity yet, got %v", info.Recent)
	}
}
