package registration

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/Harsha29-kns/hackforge-backend/internal/domain"
	"github.com/Harsha29-kns/hackforge-backend/internal/repository"
	"github.com/Harsha29-kns/hackforge-backend/internal/service/notify"
	"github.com/Harsha29-kns/hackforge-backend/internal/service/settings"
)

// Admission error kinds.
var (
	ErrClosed        = errors.New("registration is currently closed")
	ErrFull          = errors.New("registration is full, cannot accept new teams")
	ErrDuplicateName = errors.New("this team name is already taken")
	ErrInvalidInput  = errors.New("missing or invalid required fields")
)

const teamSize = 4

// Announcer receives the derived admission state after every recompute.
type Announcer interface {
	RegistrationStatus(status domain.RegistrationStatus)
}

// Service decides whether a new team may be created right now and performs
// the creation. The gate is re-evaluated on every attempt with the count
// observed immediately before it; two near-simultaneous creates can both
// pass, a bounded overshoot this system accepts.
type Service struct {
	teams    repository.TeamRepository
	settings *settings.Service
	announce Announcer
	mailer   notify.Mailer
	logger   *slog.Logger
}

// New constructs a Service.
func New(teams repository.TeamRepository, settingsSvc *settings.Service, announce Announcer, mailer notify.Mailer, logger *slog.Logger) *Service {
	return &Service{teams: teams, settings: settingsSvc, announce: announce, mailer: mailer, logger: logger}
}

// IsClosed is the admission predicate: closed when the limit is reached, a
// forced closure is active, or the configured open time has not arrived. No
// close time ends an open window.
func IsClosed(s domain.ServerSettings, now time.Time, count int) bool {
	if count >= s.RegistrationLimit {
		return true
	}
	if s.ForceClosed {
		return true
	}
	if s.RegistrationOpenTime != nil && now.Before(*s.RegistrationOpenTime) {
		return true
	}
	return false
}

// Status computes the current admission state.
func (s *Service) Status(ctx context.Context) (domain.RegistrationStatus, error) {
	count, err := s.teams.CountTeams(ctx)
	if err != nil {
		return domain.RegistrationStatus{}, err
	}
	current := s.settings.Current()
	return domain.RegistrationStatus{
		IsClosed: IsClosed(current, time.Now(), count),
		Count:    count,
		Limit:    current.RegistrationLimit,
		OpenTime: current.RegistrationOpenTime,
	}, nil
}

// Recheck recomputes the admission state and broadcasts it.
func (s *Service) Recheck(ctx context.Context) {
	status, err := s.Status(ctx)
	if err != nil {
		s.logger.Warn("registration status check failed", "error", err)
		return
	}
	if s.announce != nil {
		s.announce.RegistrationStatus(status)
	}
}

// Run re-evaluates the gate periodically until ctx is done.
func (s *Service) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Recheck(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RegisterInput carries a create-team request.
type RegisterInput struct {
	TeamName           string              `json:"teamname"`
	Email              string              `json:"email"`
	LeadName           string              `json:"name"`
	RegistrationNumber string              `json:"registrationNumber"`
	Room               string              `json:"room"`
	Year               string              `json:"year"`
	Department         string              `json:"department"`
	Section            string              `json:"section"`
	Members            []domain.TeamMember `json:"teamMembers"`
}

// Register admits a new team when the gate allows it.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*domain.Team, error) {
	count, err := s.teams.CountTeams(ctx)
	if err != nil {
		return nil, err
	}
	current := s.settings.Current()
	if count >= current.RegistrationLimit {
		return nil, ErrFull
	}
	if IsClosed(current, time.Now(), count) {
		return nil, ErrClosed
	}
	if strings.TrimSpace(input.TeamName) == "" || strings.TrimSpace(input.Email) == "" ||
		strings.TrimSpace(input.LeadName) == "" || len(input.Members) != teamSize {
		return nil, ErrInvalidInput
	}

	team := buildTeam(input)
	if err := s.teams.CreateTeam(ctx, team); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateName
		}
		return nil, err
	}
	s.logger.Info("team registered", "team_id", team.ID, "teamname", team.TeamName)

	msg := notify.RegistrationPending(team.LeadName, team.TeamName)
	msg.To = team.Email
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Warn("registration mail failed", "team_id", team.ID, "error", err)
	}

	s.Recheck(ctx)
	return team, nil
}

func buildTeam(input RegisterInput) *domain.Team {
	now := time.Now().UTC()
	team := &domain.Team{
		ID:                 uuid.NewString(),
		TeamName:           input.TeamName,
		Email:              input.Email,
		LeadName:           input.LeadName,
		RegistrationNumber: input.RegistrationNumber,
		CreatedAt:          now,
	}
	lead := domain.TeamMember{
		Name:               input.LeadName,
		RegistrationNumber: input.RegistrationNumber,
		Room:               input.Room,
		Year:               input.Year,
		Department:         input.Department,
		Section:            input.Section,
		IsLead:             true,
	}
	team.Members = append(team.Members, lead)
	for _, m := range input.Members {
		m.IsLead = false
		team.Members = append(team.Members, m)
	}
	return team
}
