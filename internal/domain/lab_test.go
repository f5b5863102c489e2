package domain

import "testing"

func TestHintClampsAtLastHint(t *testing.T) {
	t.Parallel()

	def := &LabDefinition{
		ID:         "lab-01",
		Hints:      []string{"first", "second", "third"},
		Objectives: []string{"obj"},
	}

	cases := []struct {
		attempt    int
		wantHint   string
		wantNumber int
	}{
		{1, "first", 1},
		{2, "second", 2},
		{3, "third", 3},
		{4, "third", 3},  // past the end clamps to the last hint
		{99, "third", 3}, // never out of range
		{0, "first", 1},  // below 1 treated as first attempt
	}

	for _, tc := range cases {
		hint, number, ok := def.Hint(tc.attempt)
		if !ok {
			t.Fatalf("attempt %d: expected a hint", tc.attempt)
		}
		if hint != tc.wantHint || number != tc.wantNumber {
			t.Errorf("attempt %d: got (%q, %d), want (%q, %d)", tc.attempt, hint, number, tc.wantHint, tc.wantNumber)
		}
	}
}

func TestHintWithNoHints(t *testing.T) {
	t.Parallel()

	def := &LabDefinition{ID: "lab-01", Objectives: []string{"obj"}}
	if _, _, ok := def.Hint(1); ok {
		t.Fatal("expected no hint for a lab without hints")
	}
}

func TestVerificationResultPassed(t *testing.T) {
	t.Parallel()

	r := VerificationResult{Score: 70}
	if !r.Passed(70) {
		t.Error("score equal to threshold should pass")
	}
	if r.Passed(71) {
		t.Error("score below threshold should not pass")
	}
}

func TestDifficultyValid(t *testing.T) {
	t.Parallel()

	for _, d := range []Difficulty{DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced} {
		if !d.Valid() {
			t.Errorf("expected %q to be valid", d)
		}
	}
	if Difficulty("impossible").Valid() {
		t.Error("expected unknown difficulty to be invalid")
	}
}
