package settings

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"log/slog"

	"github.com/Harsha29-kns/hackforge-backend/internal/domain"
	"github.com/Harsha29-kns/hackforge-backend/internal/repository"
)

type memRepo struct {
	mu      sync.Mutex
	current *domain.ServerSettings
	saves   int
	failing bool
}

func (s *memRepo) GetSettings(context.Context) (*domain.ServerSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, repository.ErrNotFound
	}
	copied := *s.current
	return &copied, nil
}

func (s *memRepo) SaveSettings(_ context.Context, settings *domain.ServerSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("store unavailable")
	}
	copied := *settings
	s.current = &copied
	s.saves++
	return nil
}

func newService(t *testing.T, repo *memRepo) *Service {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := New(repo, log)
	if err := svc.Load(context.Background(), 60); err != nil {
		t.Fatalf("load: %v", err)
	}
	return svc
}

func TestLoadCreatesDefaultsOnce(t *testing.T) {
	repo := &memRepo{}
	svc := newService(t, repo)

	current := svc.Current()
	if current.RegistrationLimit != 60 {
		t.Fatalf("expected default limit 60, got %d", current.RegistrationLimit)
	}
	if repo.saves != 1 {
		t.Fatalf("expected one initial save, got %d", repo.saves)
	}

	// A second Load against an existing record keeps the stored values.
	if _, err := svc.SetRegistrationLimit(context.Background(), 80); err != nil {
		t.Fatalf("set limit: %v", err)
	}
	again := New(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := again.Load(context.Background(), 60); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Current().RegistrationLimit != 80 {
		t.Fatalf("reload lost stored limit: %d", again.Current().RegistrationLimit)
	}
}

func TestMutatorsPersistAndSnapshot(t *testing.T) {
	repo := &memRepo{}
	svc := newService(t, repo)

	open := time.Now().Add(time.Hour).UTC()
	updated, err := svc.SetRegistrationOpenTime(context.Background(), &open)
	if err != nil {
		t.Fatalf("set open time: %v", err)
	}
	if updated.RegistrationOpenTime == nil || !updated.RegistrationOpenTime.Equal(open) {
		t.Fatalf("open time not applied: %+v", updated.RegistrationOpenTime)
	}

	if _, err := svc.ForceCloseRegistration(context.Background()); err != nil {
		t.Fatalf("force close: %v", err)
	}
	current := svc.Current()
	if !current.ForceClosed || current.RegistrationOpenTime != nil {
		t.Fatalf("force close did not clear schedule: %+v", current)
	}

	// Scheduling again lifts the forced closure.
	if _, err := svc.SetRegistrationOpenTime(context.Background(), &open); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if svc.Current().ForceClosed {
		t.Fatal("schedule change left registration force-closed")
	}

	stored, err := repo.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("get stored: %v", err)
	}
	if stored.ForceClosed || stored.RegistrationOpenTime == nil {
		t.Fatalf("store out of sync: %+v", stored)
	}
}

func TestUpdateRollsBackOnSaveFailure(t *testing.T) {
	repo := &memRepo{}
	svc := newService(t, repo)

	repo.failing = true
	if _, err := svc.SetRegistrationLimit(context.Background(), 99); err == nil {
		t.Fatal("expected save failure")
	}
	if got := svc.Current().RegistrationLimit; got != 60 {
		t.Fatalf("in-memory state not rolled back: %d", got)
	}
}

func TestCurrentReturnsCopy(t *testing.T) {
	svc := newService(t, &memRepo{})

	snapshot := svc.Current()
	snapshot.RegistrationLimit = 999
	if svc.Current().RegistrationLimit == 999 {
		t.Fatal("Current leaked internal state")
	}
}
