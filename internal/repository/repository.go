package repository

import (
	"context"

	"github.com/Harsha29-kns/hackforge-backend/internal/domain"
)

// TeamRepository persists teams, members, scores and issues.
type TeamRepository interface {
	CreateTeam(ctx context.Context, team *domain.Team) error
	GetTeamByID(ctx context.Context, id string) (*domain.Team, error)
	GetTeamByCredential(ctx context.Context, credential string) (*domain.Team, error)
	CountTeams(ctx context.Context) (int, error)
	CountVerifiedTeams(ctx context.Context) (int, error)
	ListTeams(ctx context.Context, limit, offset int) ([]domain.Team, error)
	ListTeamsBySector(ctx context.Context, sector string) ([]domain.Team, error)
	ListTeamsWithIssues(ctx context.Context) ([]domain.Team, error)

	MarkVerified(ctx context.Context, id, credential string) error
	AssignDomain(ctx context.Context, id, domainName string) error
	SetSector(ctx context.Context, id, sector string) error

	SaveReviewScores(ctx context.Context, team *domain.Team) error
	SaveMemoryGame(ctx context.Context, id string, score int) error
	SaveNumberPuzzle(ctx context.Context, id string, score int) error
	SaveStopTheBar(ctx context.Context, id string, score int) error
	SaveInternalScore(ctx context.Context, id string, score int) error
	SaveAttendance(ctx context.Context, teamID string, members []domain.TeamMember) error

	AddIssue(ctx context.Context, issue *domain.Issue) error
	ResolveIssue(ctx context.Context, teamID, issueID string) error
}

// DomainRepository manages the topic slot pool.
//
// AllocateSlot must be the store's atomic conditional decrement: it succeeds
// only when the domain still has capacity, evaluated and applied in one
// statement, and returns ErrNotFound otherwise.
type DomainRepository interface {
	ListDomains(ctx context.Context) ([]domain.Domain, error)
	GetDomain(ctx context.Context, code string) (*domain.Domain, error)
	CountDomains(ctx context.Context) (int, error)
	SeedDomains(ctx context.Context, pool []domain.Domain) error
	AllocateSlot(ctx context.Context, code string) (*domain.Domain, error)
	ResetDomains(ctx context.Context, pool []domain.Domain) error
}

// SettingsRepository persists the singleton server-settings record.
type SettingsRepository interface {
	GetSettings(ctx context.Context) (*domain.ServerSettings, error)
	SaveSettings(ctx context.Context, settings *domain.ServerSettings) error
}

// NoticeRepository stores reminders and slide-deck uploads.
type NoticeRepository interface {
	InsertReminder(ctx context.Context, reminder *domain.Reminder) error
	ListReminders(ctx context.Context, limit int) ([]domain.Reminder, error)
	InsertSlideDeck(ctx context.Context, deck *domain.SlideDeck) error
	LatestSlideDeck(ctx context.Context) (*domain.SlideDeck, error)
}
