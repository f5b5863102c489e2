package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rangelab/labctl/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository on a single SQLite database. The
// per-student exclusive read-modify-write contract is met by wrapping
// each Update in an IMMEDIATE transaction, which takes the write lock
// up front.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", domain.ErrPersistence)
	}

	// WAL mode for better concurrency between short-lived CLI processes.
	// _txlock=immediate makes every transaction take the write lock at
	// BEGIN, which is what gives Update its exclusive RMW contract.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %v: %w", err, domain.ErrPersistence)
	}

	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %v: %w", err, domain.ErrPersistence)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS student_sessions (
		student_id TEXT PRIMARY KEY,
		current_lab TEXT,
		completed_labs TEXT NOT NULL DEFAULT '[]',
		attempts TEXT NOT NULL DEFAULT '{}',
		score INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		lab_started_at INTEGER
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %v: %w", err, domain.ErrPersistence)
	}
	return nil
}

// Get retrieves the session for a student, auto-provisioning a
// zero-state record if none exists.
func (s *SQLiteStore) Get(ctx context.Context, studentID string) (*domain.StudentSession, error) {
	if !ValidStudentID(studentID) {
		return nil, fmt.Errorf("student id %q: %w", studentID, domain.ErrValidation)
	}

	var session *domain.StudentSession
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		session, err = loadOrCreateTx(ctx, tx, studentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Update applies fn inside an IMMEDIATE transaction and commits the
// full record before returning.
func (s *SQLiteStore) Update(ctx context.Context, studentID string, fn func(*domain.StudentSession) error) error {
	if !ValidStudentID(studentID) {
		return fmt.Errorf("student id %q: %w", studentID, domain.ErrValidation)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		session, err := loadOrCreateTx(ctx, tx, studentID)
		if err != nil {
			return err
		}
		if err := fn(session); err != nil {
			return err
		}
		return saveTx(ctx, tx, session)
	})
}

// Delete removes the student's record; deleting a missing record is
// not an error.
func (s *SQLiteStore) Delete(ctx context.Context, studentID string) error {
	if !ValidStudentID(studentID) {
		return fmt.Errorf("student id %q: %w", studentID, domain.ErrValidation)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM student_sessions WHERE student_id = ?`, studentID); err != nil {
		return fmt.Errorf("delete record for %s: %v: %w", studentID, err, domain.ErrPersistence)
	}
	return nil
}

// List returns every persisted session.
func (s *SQLiteStore) List(ctx context.Context) ([]*domain.StudentSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT student_id, current_lab, completed_labs, attempts, score, created_at, lab_started_at
		FROM student_sessions ORDER BY student_id`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %v: %w", err, domain.ErrPersistence)
	}
	defer rows.Close()

	var sessions []*domain.StudentSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %v: %w", err, domain.ErrPersistence)
	}
	return sessions, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %v: %w", err, domain.ErrPersistence)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %v: %w", err, domain.ErrPersistence)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.StudentSession, error) {
	var (
		session      domain.StudentSession
		currentLab   sql.NullString
		completed    string
		attempts     string
		createdAt    int64
		labStartedAt sql.NullInt64
	)
	if err := row.Scan(&session.StudentID, &currentLab, &completed, &attempts, &session.Score, &createdAt, &labStartedAt); err != nil {
		return nil, err
	}

	session.CurrentLab = currentLab.String
	session.CreatedAt = time.Unix(createdAt, 0).UTC()
	if labStartedAt.Valid {
		t := time.Unix(labStartedAt.Int64, 0).UTC()
		session.LabStartedAt = &t
	}
	if err := json.Unmarshal([]byte(completed), &session.CompletedLabs); err != nil {
		return nil, fmt.Errorf("decode completed labs for %s: %v: %w", session.StudentID, err, domain.ErrPersistence)
	}
	if err := json.Unmarshal([]byte(attempts), &session.Attempts); err != nil {
		return nil, fmt.Errorf("decode attempts for %s: %v: %w", session.StudentID, err, domain.ErrPersistence)
	}
	return &session, nil
}

func loadOrCreateTx(ctx context.Context, tx *sql.Tx, studentID string) (*domain.StudentSession, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT student_id, current_lab, completed_labs, attempts, score, created_at, lab_started_at
		FROM student_sessions WHERE student_id = ?`, studentID)

	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		session = domain.NewStudentSession(studentID, time.Now().UTC())
		if err := saveTx(ctx, tx, session); err != nil {
			return nil, err
		}
		return session, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan record for %s: %v: %w", studentID, err, domain.ErrPersistence)
	}
	return session, nil
}

func saveTx(ctx context.Context, tx *sql.Tx, session *domain.StudentSession) error {
	completed, err := json.Marshal(session.CompletedLabs)
	if err != nil {
		return fmt.Errorf("encode completed labs for %s: %v: %w", session.StudentID, err, domain.ErrPersistence)
	}
	attempts, err := json.Marshal(session.Attempts)
	if err != nil {
		return fmt.Errorf("encode attempts for %s: %v: %w", session.StudentID, err, domain.ErrPersistence)
	}

	var currentLab sql.NullString
	if session.CurrentLab != "" {
		currentLab = sql.NullString{String: session.CurrentLab, Valid: true}
	}
	var labStartedAt sql.NullInt64
	if session.LabStartedAt != nil {
		labStartedAt = sql.NullInt64{Int64: session.LabStartedAt.Unix(), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO student_sessions (student_id, current_lab, completed_labs, attempts, score, created_at, lab_started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(student_id) DO UPDATE SET
			current_lab = excluded.current_lab,
			completed_labs = excluded.completed_labs,
			attempts = excluded.attempts,
			score = excluded.score,
			lab_started_at = excluded.lab_started_at`,
		session.StudentID, currentLab, string(completed), string(attempts),
		session.Score, session.CreatedAt.Unix(), labStartedAt)
	if err != nil {
		return fmt.Errorf("save record for %s: %v: %w", session.StudentID, err, domain.ErrPersistence)
	}
	return nil
}
