// Package store provides durable persistence for student sessions.
package store

import (
	"context"
	"regexp"

	"github.com/rangelab/labctl/internal/domain"
)

// Repository is the interface for persisting student session records.
// Implementations must hold an exclusive per-student lock for the whole
// of Update's read-modify-write, so that concurrent CLI invocations on
// the same student never lose updates. Every mutation is fully
// serialized to durable storage before the call returns.
type Repository interface {
	// Get retrieves the session for a student, auto-provisioning a
	// zero-state record if none exists.
	Get(ctx context.Context, studentID string) (*domain.StudentSession, error)

	// Update applies fn to the student's session under an exclusive
	// per-student lock and persists the result before returning. If fn
	// returns an error, nothing is persisted.
	Update(ctx context.Context, studentID string, fn func(*domain.StudentSession) error) error

	// Delete irreversibly discards the student's record. Deleting a
	// missing record is not an error. Interaction logs are untouched.
	Delete(ctx context.Context, studentID string) error

	// List returns every persisted session.
	List(ctx context.Context) ([]*domain.StudentSession, error)

	// Close releases any underlying resources.
	Close() error
}

var studentIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// ValidStudentID reports whether id is safe to use as a record key.
func ValidStudentID(id string) bool {
	return studentIDPattern.MatchString(id)
}
