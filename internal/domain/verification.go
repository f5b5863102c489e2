package domain

import "time"

// VerificationResult is the outcome of one verification run. It is
// ephemeral: only its score is folded into the student session, and
// only when the caller decides the run passed.
type VerificationResult struct {
	LabID            string    `json:"lab_id"`
	Timestamp        time.Time `json:"timestamp"`
	ObjectivesMet    []string  `json:"objectives_met"`
	ObjectivesFailed []string  `json:"objectives_failed"`
	// Score is in [0,100].
	Score    int      `json:"score"`
	Feedback []string `json:"feedback"`
}

// Passed reports whether the result meets the given threshold. The
// threshold is policy owned by the caller, not by the engine that
// produced the result.
func (r VerificationResult) Passed(threshold int) bool {
	return r.Score >= threshold
}
