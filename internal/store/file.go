package store

import (
	"context"
	"encoding/json"
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

// FileStore implements Repository with one pretty-printed JSON file per
// student under the state directory, so records stay human-inspectable.
// A sibling .lock file carries an advisory fcntl lock per student;
// every read and read-modify-write runs under it, which keeps torn
// writes invisible to concurrent CLI processes.
type FileStore struct {
	dir string
}

// NewFileStore creates the state directory if needed and returns a
// file-backed repository.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", domain.ErrPersistence)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) recordPath(studentID string) string {
	return filepath.Join(s.dir, studentID+".json")
}

func (s *FileStore) mutex(studentID string) *lockedfile.Mutex {
	return lockedfile.MutexAt(filepath.Join(s.dir, studentID+".lock"))
}

// Get retrieves the session for a student, auto-provisioning a
// zero-state record if none exists.
func (s *FileStore) Get(ctx context.Context, studentID string) (*domain.StudentSession, error) {
	if err := checkStudentID(ctx, studentID); err != nil {
		return nil, err
	}

	unlock, err := s.mutex(studentID).Lock()
	if err != nil {
		return nil, fmt.Errorf("lock record for %s: %w", studentID, domain.ErrPersistence)
	}
	defer unlock()

	return s.loadOrCreateLocked(studentID)
}

// Update applies fn under the student's exclusive lock and writes the
// full record back before returning.
func (s *FileStore) Update(ctx context.Context, studentID string, fn func(*domain.StudentSession) error) error {
	if err := checkStudentID(ctx, studentID); err != nil {
		return err
	}

	unlock, err := s.mutex(studentID).Lock()
	if err != nil {
		return fmt.Errorf("lock record for %s: %w", studentID, domain.ErrPersistence)
	}
	defer unlock()

	session, err := s.loadOrCreateLocked(studentID)
	if err != nil {
		return err
	}
	if err := fn(session); err != nil {
		return err
	}
	return s.writeLocked(studentID, session)
}

// Delete removes the student's record. The interaction logs live
// elsewhere and are never touched here.
func (s *FileStore) Delete(ctx context.Context, studentID string) error {
	if err := checkStudentID(ctx, studentID); err != nil {
		return err
	}

	unlock, err := s.mutex(studentID).Lock()
	if err != nil {
		return fmt.Errorf("lock record for %s: %w", studentID, domain.ErrPersistence)
	}
	defer unlock()

	if err := os.Remove(s.recordPath(studentID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete record for %s: %v: %w", studentID, err, domain.ErrPersistence)
	}
	return nil
}

// List returns every persisted session, skipping lock files.
func (s *FileStore) List(ctx context.Context) ([]*domain.StudentSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state directory: %v: %w", err, domain.ErrPersistence)
	}

	var sessions []*domain.StudentSession
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		studentID := strings.TrimSuffix(name, ".json")
		if !ValidStudentID(studentID) {
			continue
		}
		session, err := s.Get(ctx, studentID)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) loadOrCreateLocked(studentID string) (*domain.StudentSession, error) {
	data, err := os.ReadFile(s.recordPath(studentID))
	if errors.Is(err, fs.ErrNotExist) {
		session := domain.NewStudentSession(studentID, time.Now().UTC())
		if err := s.writeLocked(studentID, session); err != nil {
			return nil, err
		}
		return session, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read record for %s: %v: %w", studentID, err, domain.ErrPersistence)
	}

	var session domain.StudentSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode record for %s: %v: %w", studentID, err, domain.ErrPersistence)
	}
	if session.Attempts == nil {
		session.Attempts = map[string]int{}
	}
	if session.CompletedLabs == nil {
		session.CompletedLabs = []string{}
	}
	return &session, nil
}

// writeLocked serializes the full record and replaces the file via a
// synced temp file and rename, so a crash mid-write never leaves a torn
// record for the next reader.
func (s *FileStore) writeLocked(studentID string, session *domain.StudentSession) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record for %s: %v: %w", studentID, err, domain.ErrPersistence)
	}
	data = append(data, '\n')

	path := s.recordPath(studentID)
	tmp, err := os.CreateTemp(s.dir, studentID+".json.tmp-")
	if err != nil {
		return fmt.Errorf("create temp record for %s: %v: %w", studentID, err, domain.ErrPersistence)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write record for %s: %v: %w", studentID, err, domain.ErrPersistence)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync record for %s: %v: %w", studentID, err, domain.ErrPersistence)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close record for %s: %v: %w", studentID, err, domain.ErrPersistence)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace record for %s: %v: %w", studentID, err, domain.ErrPersistence)
	}
	return nil
}

func checkStudentID(ctx context.Context, studentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ValidStudentID(studentID) {
		return fmt.Errorf("student id %q: %w", studentID, domain.ErrValidation)
	}
	return nil
}
