// Package controller sequences the lab lifecycle: start, verify, hint,
// chat, and the instructor operations, enforcing the state machine and
// persistence invariants over the session store.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rangelab/labctl/internal/agent"
	"github.com/rangelab/labctl/internal/agentlog"
	"github.com/rangelab/labctl/internal/domain"
	"github.com/rangelab/labctl/internal/lab"
	"github.com/rangelab/labctl/internal/store"
)

// Verifier runs a lab's verification procedure.
type Verifier interface {
	Verify(ctx context.Context, lab *domain.LabDefinition) domain.VerificationResult
}

// AgentGateway sends instructions to the lab agents.
type AgentGateway interface {
	Send(ctx context.Context, role agent.Role, instruction string) string
	Status(ctx context.Context) agent.Status
}

// RangeResetter restores lab target machines to a clean state.
type RangeResetter interface {
	ResetTargets(ctx context.Context, studentID string) (int, error)
}

// Controller is the orchestrator facade. All session mutations flow
// through the store's exclusive Update, one fully-persisted step at a
// time.
type Controller struct {
	catalog   *lab.Catalog
	repo      store.Repository
	engine    Verifier
	agents    AgentGateway
	log       *agentlog.Log
	rng       RangeResetter // optional
	passScore int
}

// New wires the orchestrator. rng may be nil when the Docker range is
// disabled.
func New(catalog *lab.Catalog, repo store.Repository, engine Verifier, agents AgentGateway, log *agentlog.Log, rng RangeResetter, passScore int) *Controller {
	return &Controller{
		catalog:   catalog,
		repo:      repo,
		engine:    engine,
		agents:    agents,
		log:       log,
		rng:       rng,
		passScore: passScore,
	}
}

func nowUTC() time.Time { return time.Now().UTC() }

// StartInfo describes a freshly started lab attempt.
type StartInfo struct {
	Lab        *domain.LabDefinition
	Attempt    int
	HasStarter bool
}

// StartLab resolves the lab and records a new attempt. A missing lab
// stops the operation before any session mutation.
func (c *Controller) StartLab(ctx context.Context, studentID, labID string) (*StartInfo, error) {
	def, err := c.catalog.Load(labID)
	if err != nil {
		return nil, err
	}

	var attempt int
	err = c.repo.Update(ctx, studentID, func(s *domain.StudentSession) error {
		s.StartLab(labID, nowUTC())
		attempt = s.AttemptCount(labID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &StartInfo{
		Lab:        def,
		Attempt:    attempt,
		HasStarter: c.catalog.HasStarter(labID),
	}, nil
}

// VerifyOutcome reports one verification run and its effect on the
// session.
type VerifyOutcome struct {
	Lab       *domain.LabDefinition
	Result    domain.VerificationResult
	Passed    bool
	PassScore int
}

// Verify runs the active lab's check. At or above the pass threshold
// the completion and score are folded into the session and the active
// lab is cleared; below it the session stays active so the student can
// retry. Verification failures are never fatal; a failure to persist a
// passing score is.
func (c *Controller) Verify(ctx context.Context, studentID string) (*VerifyOutcome, error) {
	session, err := c.repo.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if !session.HasActiveLab() {
		return nil, fmt.Errorf("no active lab, start one first: %w", domain.ErrValidation)
	}

	def, err := c.catalog.Load(session.CurrentLab)
	if err != nil {
		return nil, err
	}

	result := c.engine.Verify(ctx, def)
	outcome := &VerifyOutcome{
		Lab:       def,
		Result:    result,
		Passed:    result.Passed(c.passScore),
		PassScore: c.passScore,
	}

	if outcome.Passed {
		err := c.repo.Update(ctx, studentID, func(s *domain.StudentSession) error {
			s.CompleteLab(def.ID, result.Score)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("record completion of %s: %w", def.ID, err)
		}
	}
	return outcome, nil
}

// HintInfo is one revealed hint.
type HintInfo struct {
	LabID  string
	Number int
	Text   string
}

// Hint returns the hint for the active lab, selected by the current
// attempt count and clamped at the last hint. A lab without hints
// yields Number 0 rather than an error. It mutates nothing.
func (c *Controller) Hint(ctx context.Context, studentID string) (*HintInfo, error) {
	session, err := c.repo.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if !session.HasActiveLab() {
		return nil, fmt.Errorf("no active lab, start one first: %w", domain.ErrValidation)
	}

	attempt := session.AttemptCount(session.CurrentLab)
	text, number, err := c.catalog.Hint(session.CurrentLab, attempt)
	if err != nil {
		return nil, err
	}
	return &HintInfo{LabID: session.CurrentLab, Number: number, Text: text}, nil
}

// Chat sends an instruction to an agent. It is permitted in any session
// state and touches only the interaction log.
func (c *Controller) Chat(ctx context.Context, role agent.Role, instruction string) string {
	return c.agents.Send(ctx, role, instruction)
}

// StatusInfo combines session progress with agent availability.
type StatusInfo struct {
	Progress domain.Progress
	Agents   agent.Status
}

// Status reports a student's progress and which agents are loaded.
func (c *Controller) Status(ctx context.Context, studentID string) (*StatusInfo, error) {
	session, err := c.repo.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return &StatusInfo{
		Progress: session.Progress(),
		Agents:   c.agents.Status(ctx),
	}, nil
}

// ListLabs returns the catalog with per-lab completion markers for the
// student.
func (c *Controller) ListLabs(ctx context.Context, studentID string) ([]*domain.LabDefinition, *domain.StudentSession, error) {
	labs, err := c.catalog.List()
	if err != nil {
		return nil, nil, err
	}
	session, err := c.repo.Get(ctx, studentID)
	if err != nil {
		return nil, nil, err
	}
	return labs, session, nil
}

// MonitorInfo is an instructor's view of one student.
type MonitorInfo struct {
	Progress domain.Progress
	Recent   []string
}

// Monitor reports a student's progress plus recent agent activity.
func (c *Controller) Monitor(ctx context.Context, studentID string, recentLines int) (*MonitorInfo, error) {
	session, err := c.repo.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}
	recent, err := c.log.Recent(recentLines)
	if err != nil {
		slog.Warn("failed to read recent activity", "error", err)
		recent = nil
	}
	return &MonitorInfo{Progress: session.Progress(), Recent: recent}, nil
}

// Grade returns the full session record for a grade report.
func (c *Controller) Grade(ctx context.Context, studentID string) (*domain.StudentSession, error) {
	return c.repo.Get(ctx, studentID)
}

// Stats aggregates progress across all students.
type Stats struct {
	Students     int     `json:"students"`
	Completions  int     `json:"completions"`
	AverageScore float64 `json:"average_score"`
}

// Stats computes lab-wide totals.
func (c *Controller) Stats(ctx context.Context) (*Stats, error) {
	sessions, err := c.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Students: len(sessions)}
	if len(sessions) == 0 {
		return stats, nil
	}

	total := 0
	for _, s := range sessions {
		stats.Completions += len(s.CompletedLabs)
		total += s.Score
	}
	stats.AverageScore = float64(total) / float64(len(sessions))
	return stats, nil
}

// Reset discards a student's record and, when the range is enabled,
// restores their target machines. Interaction logs are retained for
// audit regardless.
func (c *Controller) Reset(ctx context.Context, studentID string) error {
	if err := c.repo.Delete(ctx, studentID); err != nil {
		return err
	}
	if c.rng != nil {
		n, err := c.rng.ResetTargets(ctx, studentID)
		if err != nil {
			slog.Warn("failed to reset range targets", "student_id", studentID, "error", err)
			return nil
		}
		slog.Info("range targets reset", "student_id", studentID, "targets", n)
	}
	return nil
}
