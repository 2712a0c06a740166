package allocator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"log/slog"

	"github.com/Harsha29-kns/hackforge-backend/internal/domain"
	"github.com/Harsha29-kns/hackforge-backend/internal/repository"
	"github.com/Harsha29-kns/hackforge-backend/internal/service/settings"
)

// Allocation error kinds. Each maps to a distinct fail-fast outcome for the
// requesting connection; none of them is retried server-side.
var (
	ErrInvalidID    = errors.New("invalid team or domain id")
	ErrWindowClosed = errors.New("domain selection is currently closed")
	ErrDomainFull   = errors.New("this domain is full, please select another one")
)

// AlreadyAssignedError reports that a team already holds a slot. It carries
// the existing assignment so the client can display it.
type AlreadyAssignedError struct {
	Existing string
}

func (e *AlreadyAssignedError) Error() string {
	return fmt.Sprintf("you already selected domain: %s", e.Existing)
}

// Announcer receives slot-map updates after successful state changes.
type Announcer interface {
	DomainData(views []domain.DomainView)
	DomainsUpdated()
}

// Service assigns each team at most one topic slot without oversubscribing
// any domain, under concurrent contention. The capacity decrement relies on
// the store's conditional update, not on in-process locking, so it stays
// correct across multiple server processes.
type Service struct {
	domains  repository.DomainRepository
	teams    repository.TeamRepository
	settings *settings.Service
	announce Announcer
	logger   *slog.Logger
}

// New constructs a Service.
func New(domains repository.DomainRepository, teams repository.TeamRepository, settingsSvc *settings.Service, announce Announcer, logger *slog.Logger) *Service {
	return &Service{domains: domains, teams: teams, settings: settingsSvc, announce: announce, logger: logger}
}

// Seed installs the default pool when the store holds no domains yet.
func (s *Service) Seed(ctx context.Context) error {
	count, err := s.domains.CountDomains(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	pool := domain.DefaultDomainPool()
	if err := s.domains.SeedDomains(ctx, pool); err != nil {
		return err
	}
	s.logger.Info("domain pool seeded", "domains", len(pool))
	return nil
}

// SelectDomain claims one slot of the named domain for the team.
//
// Preconditions are checked in order, each a distinct outcome: window open,
// team exists, team unassigned, capacity remaining. The capacity check and
// decrement happen in a single conditional update at the store; whichever
// concurrent request lands first wins the last slot and every other request
// gets ErrDomainFull.
func (s *Service) SelectDomain(ctx context.Context, teamID, code string) (*domain.Domain, error) {
	if strings.TrimSpace(teamID) == "" || strings.TrimSpace(code) == "" {
		return nil, ErrInvalidID
	}
	if !s.settings.Current().DomainWindowOpen {
		return nil, ErrWindowClosed
	}
	team, err := s.teams.GetTeamByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if team.Domain != nil {
		return nil, &AlreadyAssignedError{Existing: *team.Domain}
	}
	allocated, err := s.domains.AllocateSlot(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDomainFull
		}
		return nil, err
	}
	if err := s.teams.AssignDomain(ctx, teamID, allocated.Name); err != nil {
		// The slot is consumed but unassigned. There is no compensating
		// action here; the administrative pool reset is the recovery path.
		s.logger.Error("slot consumed but team assignment failed",
			"team_id", teamID, "domain", allocated.Name, "error", err)
		return nil, err
	}
	s.logger.Info("domain slot allocated", "team_id", teamID, "domain", allocated.Name, "remaining", allocated.Slots)
	s.announceState(ctx)
	return allocated, nil
}

// ListViews returns the slot map with fullness flags for clients.
func (s *Service) ListViews(ctx context.Context) ([]domain.DomainView, error) {
	pool, err := s.domains.ListDomains(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]domain.DomainView, 0, len(pool))
	for _, d := range pool {
		views = append(views, domain.ViewOf(d))
	}
	return views, nil
}

// ResetAll reinstalls the default pool and clears every team assignment as
// one atomic unit. Running it twice leaves the same state as running it once.
func (s *Service) ResetAll(ctx context.Context) error {
	if err := s.domains.ResetDomains(ctx, domain.DefaultDomainPool()); err != nil {
		return err
	}
	s.logger.Info("domain pool reset to defaults")
	s.announceState(ctx)
	return nil
}

func (s *Service) announceState(ctx context.Context) {
	if s.announce == nil {
		return
	}
	views, err := s.ListViews(ctx)
	if err != nil {
		s.logger.Warn("failed to load slot map for broadcast", "error", err)
		return
	}
	s.announce.DomainData(views)
	s.announce.DomainsUpdated()
}
