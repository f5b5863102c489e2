package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rangelab/labctl/internal/domain"
)

// testRepository exercises the Repository contract against any backend.
func testRepository(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetAutoProvisionsZeroRecord", func(t *testing.T) {
		session, err := repo.Get(ctx, "fresh-student")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if session.StudentID != "fresh-student" {
			t.Errorf("expected student id fresh-student, got %q", session.StudentID)
		}
		if session.Score != 0 || session.HasActiveLab() || len(session.CompletedLabs) != 0 {
			t.Errorf("expected zero-state record, got %+v", session)
		}
		if session.CreatedAt.IsZero() {
			t.Error("expected creation timestamp to be set")
		}
	})

	t.Run("RoundTripLossless", func(t *testing.T) {
		err := repo.Update(ctx, "rt-student", func(s *domain.StudentSession) error {
			s.StartLab("lab-01", s.CreatedAt)
			s.CompleteLab("lab-01", 85)
			s.StartLab("lab-02", s.CreatedAt)
			return nil
		})
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		got, err := repo.Get(ctx, "rt-student")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Score != 85 {
			t.Errorf("expected score 85, got %d", got.Score)
		}
		if got.CurrentLab != "lab-02" {
			t.Errorf("expected current lab lab-02, got %q", got.CurrentLab)
		}
		if !got.Completed("lab-01") {
			t.Error("expected lab-01 completed")
		}
		if got.AttemptCount("lab-01") != 1 || got.AttemptCount("lab-02") != 1 {
			t.Errorf("unexpected attempts %v", got.Attempts)
		}
		if got.LabStartedAt == nil {
			t.Error("expected lab start time to survive the round trip")
		}
	})

	t.Run("UpdateErrorPersistsNothing", func(t *testing.T) {
		boom := errors.New("boom")
		err := repo.Update(ctx, "abort-student", func(s *domain.StudentSession) error {
			s.StartLab("lab-01", s.CreatedAt)
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected fn error surfaced, got %v", err)
		}

		got, err := repo.Get(ctx, "abort-student")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.HasActiveLab() {
			t.Error("expected aborted update to leave the record untouched")
		}
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		if err := repo.Update(ctx, "del-student", func(s *domain.StudentSession) error {
			s.StartLab("lab-01", s.CreatedAt)
			return nil
		}); err != nil {
			t.Fatalf("Update failed: %v", err)
		}

		if err := repo.Delete(ctx, "del-student"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if err := repo.Delete(ctx, "del-student"); err != nil {
			t.Fatalf("second Delete failed: %v", err)
		}

		// A reset student starts from zero again.
		got, err := repo.Get(ctx, "del-student")
		if err != nil {
			t.Fatalf("Get after delete failed: %v", err)
		}
		if got.Score != 0 || got.HasActiveLab() {
			t.Errorf("expected zero-state record after reset, got %+v", got)
		}
	})

	t.Run("RejectsInvalidStudentID", func(t *testing.T) {
		for _, id := range []string{"", "../../etc/passwd", "has space", "a/b"} {
			if _, err := repo.Get(ctx, id); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("Get(%q): expected ErrValidation, got %v", id, err)
			}
			if err := repo.Update(ctx, id, func(*domain.StudentSession) error { return nil }); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("Update(%q): expected ErrValidation, got %v", id, err)
			}
		}
	})

	t.Run("ConcurrentUpdatesNeverLost", func(t *testing.T) {
		const workers = 8
		const perWorker = 5

		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < perWorker; j++ {
					err := repo.Update(ctx, "busy-student", func(s *domain.StudentSession) error {
						s.StartLab("lab-01", s.CreatedAt)
						return nil
					})
					if err != nil {
						errs <- err
						return
					}
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("concurrent Update failed: %v", err)
		}

		got, err := repo.Get(ctx, "busy-student")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.AttemptCount("lab-01") != workers*perWorker {
			t.Fatalf("lost updates: expected %d attempts, got %d", workers*perWorker, got.AttemptCount("lab-01"))
		}
	})

	t.Run("ListReturnsAllSessions", func(t *testing.T) {
		sessions, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(sessions) < 3 {
			t.Errorf("expected at least 3 sessions from earlier subtests, got %d", len(sessions))
		}
	})
}
