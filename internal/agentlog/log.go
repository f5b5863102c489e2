// Package agentlog records every instruction sent to and response
// received from the red/blue agents. The log is append-only: entries
// are never mutated or deleted, and reset of a student's session leaves
// it untouched for audit.
package agentlog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rangelab/labctl/internal/domain"
	"github.com/rogpeppe/go-internal/lockedfile"
)

// Direction tags whether an entry was sent to or received from an agent.
type Direction string

const (
	DirectionInstruction Direction = "instruction"
	DirectionResponse    Direction = "response"
)

// Log appends agent interaction entries to one file per calendar day.
// Appends run under an exclusive file lock so lines from concurrent CLI
// processes never interleave mid-record.
type Log struct {
	dir string
	now func() time.Time
}

// New creates the log directory if needed and returns a Log.
func New(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return &Log{dir: dir, now: time.Now}, nil
}

// currentPath returns the current day's log file; days roll over by
// filename.
func (l *Log) currentPath() string {
	return filepath.Join(l.dir, "agent_interactions_"+l.now().Format("20060102")+".log")
}

// Record appends one entry for the given agent and direction. Append is
// the only mutation the log supports.
func (l *Log) Record(agentID string, direction Direction, message string) error {
	tag := strings.ToUpper(agentID)
	switch direction {
	case DirectionInstruction:
	case DirectionResponse:
		tag += "_RESPONSE"
	default:
		return fmt.Errorf("direction %q: %w", direction, domain.ErrValidation)
	}

	line := fmt.Sprintf("[%s] [%s] %s\n",
		l.now().UTC().Format(time.RFC3339), tag, flatten(message))

	f, err := lockedfile.OpenFile(l.currentPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open interaction log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("append interaction log: %w", err)
	}
	return nil
}

// Recent returns the last n lines of the current day's log, oldest
// first. A missing file yields no entries, not an error.
func (l *Log) Recent(n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	lines, err := l.readLines()
	if err != nil {
		return nil, err
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

// After returns the current day's lines past the first n, oldest
// first, along with the day's total line count. Callers tailing the
// log feed the returned total back as the next n. An n beyond the
// total means the day rolled over; the new day's lines are then
// returned from the top.
func (l *Log) After(n int) ([]string, int, error) {
	lines, err := l.readLines()
	if err != nil {
		return nil, 0, err
	}
	total := len(lines)
	if n < 0 || n > total {
		n = 0
	}
	return lines[n:], total, nil
}

func (l *Log) readLines() ([]string, error) {
	data, err := lockedfile.Read(l.currentPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read interaction log: %w", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil, nil
	}
	return lines, nil
}

// flatten keeps one entry per line: embedded newlines in a message
// would otherwise break line-granularity appends.
func flatten(message string) string {
	return strings.ReplaceAll(strings.ReplaceAll(message, "\r\n", " "), "\n", " ")
}
