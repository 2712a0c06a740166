package settings

import (
	"context"
	"errors"
	"sync"
	"time"

	"log/slog"

	"github.com/Harsha29-kns/hackforge-backend/internal/domain"
	"github.com/Harsha29-kns/hackforge-backend/internal/repository"
)

// Service owns the server-settings singleton: one record loaded at boot,
// mutated only through administrative actions, read by every gating decision.
// The in-memory copy is the source of truth between saves.
type Service struct {
	mu      sync.RWMutex
	repo    repository.SettingsRepository
	current domain.ServerSettings
	logger  *slog.Logger
}

// New constructs an unloaded Service.
func New(repo repository.SettingsRepository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Load fetches the singleton record, creating the default when absent.
func (s *Service) Load(ctx context.Context, defaultLimit int) error {
	record, err := s.repo.GetSettings(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		created := domain.DefaultServerSettings(defaultLimit)
		if err := s.repo.SaveSettings(ctx, &created); err != nil {
			return err
		}
		s.logger.Info("default server settings created", "registration_limit", defaultLimit)
		record = &created
	}
	s.mu.Lock()
	s.current = *record
	s.mu.Unlock()
	return nil
}

// Current returns a copy of the settings snapshot.
func (s *Service) Current() domain.ServerSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// update applies mutate under the lock and persists the result. On a store
// failure the in-memory copy is rolled back so gating never reflects an
// unsaved change.
func (s *Service) update(ctx context.Context, mutate func(*domain.ServerSettings)) (domain.ServerSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous := s.current
	mutate(&s.current)
	snapshot := s.current
	if err := s.repo.SaveSettings(ctx, &snapshot); err != nil {
		s.current = previous
		return domain.ServerSettings{}, err
	}
	return snapshot, nil
}

// SetRegistrationLimit changes the admission limit.
func (s *Service) SetRegistrationLimit(ctx context.Context, limit int) (domain.ServerSettings, error) {
	return s.update(ctx, func(cur *domain.ServerSettings) {
		cur.RegistrationLimit = limit
	})
}

// SetRegistrationOpenTime schedules the admission window and clears any
// forced closure.
func (s *Service) SetRegistrationOpenTime(ctx context.Context, openTime *time.Time) (domain.ServerSettings, error) {
	return s.update(ctx, func(cur *domain.ServerSettings) {
		cur.RegistrationOpenTime = openTime
		cur.ForceClosed = false
	})
}

// ForceCloseRegistration closes admission regardless of time or count.
func (s *Service) ForceCloseRegistration(ctx context.Context) (domain.ServerSettings, error) {
	return s.update(ctx, func(cur *domain.ServerSettings) {
		cur.RegistrationOpenTime = nil
		cur.ForceClosed = true
	})
}

// ForceOpenRegistration reopens admission immediately.
func (s *Service) ForceOpenRegistration(ctx context.Context) (domain.ServerSettings, error) {
	return s.update(ctx, func(cur *domain.ServerSettings) {
		cur.RegistrationOpenTime = nil
		cur.ForceClosed = false
	})
}

// SetDomainWindow opens or closes the topic-selection window.
func (s *Service) SetDomainWindow(ctx context.Context, open bool) (domain.ServerSettings, error) {
	return s.update(ctx, func(cur *domain.ServerSettings) {
		cur.DomainWindowOpen = open
	})
}

// SetGameOpenTime schedules the memory game.
func (s *Service) SetGameOpenTime(ctx context.Context, t *time.Time) (domain.ServerSettings, error) {
	return s.update(ctx, func(cur *domain.ServerSettings) {
		cur.GameOpenTime = t
	})
}

// SetPuzzleOpenTime schedules the number puzzle.
func (s *Service) SetPuzzleOpenTime(ctx context.Context, t *time.Time) (domain.ServerSettings, error) {
	return s.update(ctx, func(cur *domain.ServerSettings) {
		cur.PuzzleOpenTime = t
	})
}

// SetStopTheBarOpenTime schedules the stop-the-bar game.
func (s *Service) SetStopTheBarOpenTime(ctx context.Context, t *time.Time) (domain.ServerSettings, error) {
	return s.update(ctx, func(cur *domain.ServerSettings) {
		cur.StopTheBarOpenTime = t
	})
}

// SetFirstReviewOpen toggles the first judged round.
func (s *Service) SetFirstReviewOpen(ctx context.Context, open bool) (domain.ServerSettings, error) {
	return s.update(ctx, func(cur *domain.ServerSettings) {
		cur.FirstReviewOpen = open
	})
}

// SetSecondReviewOpen toggles the second judged round.
func (s *Service) SetSecondReviewOpen(ctx context.Context, open bool) (domain.ServerSettings, error) {
	return s.update(ctx, func(cur *domain.ServerSettings) {
		cur.SecondReviewOpen = open
	})
}

// SetLatestEventUpdate stores the banner text shown to teams.
func (s *Service) SetLatestEventUpdate(ctx context.Context, text string) (domain.ServerSettings, error) {
	return s.update(ctx, func(cur *domain.ServerSettings) {
		cur.LatestEventUpdate = text
	})
}
