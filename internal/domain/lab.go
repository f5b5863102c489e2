// Package domain contains core domain types for the lab controller.
package domain

// Difficulty tags a lab's expected skill level.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Valid reports whether d is a recognized difficulty tag.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return true
	}
	return false
}

// LabDefinition describes one lab exercise. Definitions are immutable:
// they are loaded from the catalog on demand and never mutated.
type LabDefinition struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Difficulty  Difficulty `json:"difficulty"`
	Objectives  []string   `json:"objectives"`
	Hints       []string   `json:"hints"`
	// TimeLimit is an advisory limit in seconds; 0 means none.
	TimeLimit int `json:"time_limit,omitempty"`
	// VerifyCommand is the path to the lab's verification executable,
	// resolved by the catalog relative to the lab directory. Empty when
	// the lab has no automated check.
	VerifyCommand string `json:"verification_script,omitempty"`
}

// Hint returns the hint for the given attempt number along with its
// 1-based hint number. Hints escalate in detail, so repeated attempts
// reveal later hints; the index clamps at the last hint rather than
// running past the end. Returns false when the lab has no hints.
func (l *LabDefinition) Hint(attempt int) (string, int, bool) {
	if len(l.Hints) == 0 {
		return "", 0, false
	}
	if attempt < 1 {
		attempt = 1
	}
	idx := attempt - 1
	if idx > len(l.Hints)-1 {
		idx = len(l.Hints) - 1
	}
	return l.Hints[idx], idx + 1, true
}

// HasVerification reports whether the lab defines an automated check.
func (l *LabDefinition) HasVerification() bool {
	return l.VerifyCommand != ""
}
