package domain

import (
	"slices"
	"time"
)

// StudentSession is the durable per-student record of lab progress.
// One record exists per student; the store auto-provisions a zero-state
// record on first access. The on-disk JSON layout is stable and
// human-inspectable, so field tags must not change casually.
type StudentSession struct {
	StudentID     string         `json:"student_id"`
	CurrentLab    string         `json:"current_lab,omitempty"`
	CompletedLabs []string       `json:"completed_labs"`
	Attempts      map[string]int `json:"attempts"`
	Score         int            `json:"score"`
	CreatedAt     time.Time      `json:"created_at"`
	LabStartedAt  *time.Time     `json:"lab_start_time,omitempty"`
}

// NewStudentSession returns a zero-state session for a student.
func NewStudentSession(studentID string, now time.Time) *StudentSession {
	return &StudentSession{
		StudentID:     studentID,
		CompletedLabs: []string{},
		Attempts:      map[string]int{},
		CreatedAt:     now,
	}
}

// StartLab makes labID the active lab, increments its attempt counter
// (first start yields 1) and stamps the start time. Re-starting an
// already-active lab counts as a fresh attempt.
func (s *StudentSession) StartLab(labID string, now time.Time) {
	if s.Attempts == nil {
		s.Attempts = map[string]int{}
	}
	s.CurrentLab = labID
	s.Attempts[labID]++
	s.LabStartedAt = &now
}

// CompleteLab records labID as completed and clears the active lab.
// Membership in the completed set is idempotent, but the score is added
// on every call: a student who re-verifies an already-completed lab is
// awarded its score again. This repeat-award behavior is deliberate and
// covered by tests; do not silently deduplicate.
func (s *StudentSession) CompleteLab(labID string, score int) {
	if !s.Completed(labID) {
		s.CompletedLabs = append(s.CompletedLabs, labID)
	}
	s.Score += score
	s.CurrentLab = ""
}

// Completed reports whether labID is in the completed set.
func (s *StudentSession) Completed(labID string) bool {
	return slices.Contains(s.CompletedLabs, labID)
}

// AttemptCount returns the number of starts recorded for labID.
func (s *StudentSession) AttemptCount(labID string) int {
	return s.Attempts[labID]
}

// HasActiveLab reports whether a lab is currently in progress.
func (s *StudentSession) HasActiveLab() bool {
	return s.CurrentLab != ""
}

// Progress is a read-only summary of a session for status and
// monitoring output.
type Progress struct {
	StudentID       string         `json:"student_id"`
	CurrentLab      string         `json:"current_lab,omitempty"`
	CompletedCount  int            `json:"completed_labs"`
	CompletedLabIDs []string       `json:"completed_lab_ids"`
	TotalScore      int            `json:"total_score"`
	Attempts        map[string]int `json:"attempts"`
}

// Progress returns a summary of the session.
func (s *StudentSession) Progress() Progress {
	return Progress{
		StudentID:       s.StudentID,
		CurrentLab:      s.CurrentLab,
		CompletedCount:  len(s.CompletedLabs),
		CompletedLabIDs: slices.Clone(s.CompletedLabs),
		TotalScore:      s.Score,
		Attempts:        s.Attempts,
	}
}
