package team

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/Harsha29-kns/hackforge-backend/internal/domain"
	"github.com/Harsha29-kns/hackforge-backend/internal/repository"
	"github.com/Harsha29-kns/hackforge-backend/internal/service/notify"
	"github.com/Harsha29-kns/hackforge-backend/internal/service/settings"
)

var (
	ErrReviewClosed  = errors.New("this review round is currently closed")
	ErrGameClosed    = errors.New("this game is not open yet")
	ErrAlreadyPlayed = errors.New("this game has already been played by the team")
	ErrInvalidScore  = errors.New("invalid score provided")
	ErrInvalidInput  = errors.New("missing required fields")
)

// Announcer receives team-related broadcast signals.
type Announcer interface {
	VerifiedCount(count int)
	TeamUpdated(team *domain.Team)
}

// Service covers verification, judged scoring, mini games, attendance,
// sectors and issue tracking.
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

// GetByID loads one team.
func (s *Service) GetByID(ctx context.Context, id string) (*domain.Team, error) {
	return s.teams.GetTeamByID(ctx, id)
}

// LoginByCredential resolves a verified team from its login credential.
func (s *Service) LoginByCredential(ctx context.Context, credential string) (*domain.Team, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, repository.ErrNotFound
	}
	return s.teams.GetTeamByCredential(ctx, credential)
}

// Page is one page of the team roster.
type Page struct {
	Teams       []domain.Team `json:"teams"`
	TotalPages  int           `json:"totalPages"`
	CurrentPage int           `json:"currentPage"`
}

// List returns a paginated roster; limit <= 0 returns everything.
func (s *Service) List(ctx context.Context, page, limit int) (Page, error) {
	if page < 1 {
		page = 1
	}
	offset := 0
	if limit > 0 {
		offset = (page - 1) * limit
	}
	teams, err := s.teams.ListTeams(ctx, limit, offset)
	if err != nil {
		return Page{}, err
	}
	total, err := s.teams.CountTeams(ctx)
	if err != nil {
		return Page{}, err
	}
	totalPages := 1
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Page{Teams: teams, TotalPages: totalPages, CurrentPage: page}, nil
}

// Verify marks a team verified, generates its login credential and notifies
// the lead. Verification unlocks domain eligibility and team login.
func (s *Service) Verify(ctx context.Context, id string) (string, error) {
	team, err := s.teams.GetTeamByID(ctx, id)
	if err != nil {
		return "", err
	}
	credential, err := generateCredential()
	if err != nil {
		return "", err
	}
	if err := s.teams.MarkVerified(ctx, team.ID, credential); err != nil {
		return "", err
	}
	s.logger.Info("team verified", "team_id", team.ID, "teamname", team.TeamName)

	if count, err := s.teams.CountVerifiedTeams(ctx); err == nil {
		s.announce.VerifiedCount(count)
	} else {
		s.logger.Warn("verified count unavailable", "error", err)
	}

	msg := notify.TeamVerified(team.LeadName, team.TeamName, credential)
	msg.To = team.Email
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Warn("verification mail failed", "team_id", team.ID, "error", err)
	}
	return credential, nil
}

// SubmitFirstReview records the first judged round, gated by its open flag.
func (s *Service) SubmitFirstReview(ctx context.Context, id, notes string, score int) (*domain.Team, error) {
	if !s.settings.Current().FirstReviewOpen {
		return nil, ErrReviewClosed
	}
	team, err := s.teams.GetTeamByID(ctx, id)
	if err != nil {
		return nil, err
	}
	team.FirstReviewNotes = notes
	team.FirstReviewScore = score
	team.FinalScore = team.FirstReviewScore + team.SecondReviewScore
	if err := s.teams.SaveReviewScores(ctx, team); err != nil {
		return nil, err
	}
	return team, nil
}

// SubmitSecondReview records the second judged round and the final total.
func (s *Service) SubmitSecondReview(ctx context.Context, id, notes string, score int) (*domain.Team, error) {
	if !s.settings.Current().SecondReviewOpen {
		return nil, ErrReviewClosed
	}
	team, err := s.teams.GetTeamByID(ctx, id)
	if err != nil {
		return nil, err
	}
	team.SecondReviewNotes = notes
	team.SecondReviewScore = score
	team.FinalScore = team.FirstReviewScore + team.SecondReviewScore
	if err := s.teams.SaveReviewScores(ctx, team); err != nil {
		return nil, err
	}
	return team, nil
}

// SubmitMemoryGame records a play-once memory game score.
func (s *Service) SubmitMemoryGame(ctx context.Context, id string, score int) (*domain.Team, error) {
	current := s.settings.Current()
	return s.submitGame(ctx, id, score, current.GameOpenTime,
		func(t *domain.Team) bool { return t.MemoryGamePlayed },
		s.teams.SaveMemoryGame,
		func(t *domain.Team) { t.MemoryGameScore = &score; t.MemoryGamePlayed = true })
}

// SubmitNumberPuzzle records a play-once number puzzle score.
func (s *Service) SubmitNumberPuzzle(ctx context.Context, id string, score int) (*domain.Team, error) {
	current := s.settings.Current()
	return s.submitGame(ctx, id, score, current.PuzzleOpenTime,
		func(t *domain.Team) bool { return t.NumberPuzzlePlayed },
		s.teams.SaveNumberPuzzle,
		func(t *domain.Team) { t.NumberPuzzleScore = &score; t.NumberPuzzlePlayed = true })
}

// SubmitStopTheBar records a play-once stop-the-bar score.
func (s *Service) SubmitStopTheBar(ctx context.Context, id string, score int) (*domain.Team, error) {
	current := s.settings.Current()
	return s.submitGame(ctx, id, score, current.StopTheBarOpenTime,
		func(t *domain.Team) bool { return t.StopTheBarPlayed },
		s.teams.SaveStopTheBar,
		func(t *domain.Team) { t.StopTheBarScore = &score; t.StopTheBarPlayed = true })
}

func (s *Service) submitGame(ctx context.Context, id string, score int, openTime *time.Time,
	played func(*domain.Team) bool, save func(context.Context, string, int) error, apply func(*domain.Team)) (*domain.Team, error) {
	if openTime == nil || time.Now().Before(*openTime) {
		return nil, ErrGameClosed
	}
	team, err := s.teams.GetTeamByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if played(team) {
		return nil, ErrAlreadyPlayed
	}
	if err := save(ctx, id, score); err != nil {
		return nil, err
	}
	apply(team)
	return team, nil
}

// SubmitInternalScore records the organizer-run game score; no window gates
// it and it may be overwritten.
func (s *Service) SubmitInternalScore(ctx context.Context, id string, score int) (*domain.Team, error) {
	team, err := s.teams.GetTeamByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.teams.SaveInternalScore(ctx, id, score); err != nil {
		return nil, err
	}
	team.InternalGameScore = score
	s.announce.TeamUpdated(team)
	return team, nil
}

// SubmitAttendance records presence for one round, keyed by registration
// number. Unknown registration numbers in the payload are ignored.
func (s *Service) SubmitAttendance(ctx context.Context, teamID string, round int, statuses map[string]string) (*domain.Team, error) {
	if teamID == "" || round <= 0 || len(statuses) == 0 {
		return nil, ErrInvalidInput
	}
	team, err := s.teams.GetTeamByID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	var updated []domain.TeamMember
	for i := range team.Members {
		member := &team.Members[i]
		status, ok := statuses[member.RegistrationNumber]
		if !ok {
			continue
		}
		applyAttendance(member, round, status)
		updated = append(updated, *member)
	}
	if len(updated) == 0 {
		return team, nil
	}
	if err := s.teams.SaveAttendance(ctx, teamID, updated); err != nil {
		return nil, err
	}
	return team, nil
}

func applyAttendance(member *domain.TeamMember, round int, status string) {
	for i := range member.Attendance {
		if member.Attendance[i].Round == round {
			member.Attendance[i].Status = status
			return
		}
	}
	member.Attendance = append(member.Attendance, domain.Attendance{Round: round, Status: status})
}

// SetSector moves a team into a judging sector.
func (s *Service) SetSector(ctx context.Context, id, sector string) (*domain.Team, error) {
	if err := s.teams.SetSector(ctx, id, sector); err != nil {
		return nil, err
	}
	return s.teams.GetTeamByID(ctx, id)
}

// UpdateDomain sets a team's topic directly, bypassing the allocator. Admin
// corrections only; slot counts are not touched.
func (s *Service) UpdateDomain(ctx context.Context, teamID, domainName string) (*domain.Team, error) {
	if strings.TrimSpace(teamID) == "" || strings.TrimSpace(domainName) == "" {
		return nil, ErrInvalidInput
	}
	if err := s.teams.AssignDomain(ctx, teamID, domainName); err != nil {
		return nil, err
	}
	return s.teams.GetTeamByID(ctx, teamID)
}

// Judge sector split: judge1 covers the first sector plus the first half of
// the shared one, judge2 the rest.
const judgeSharedSplit = 10

// TeamsForJudge partitions sectors across the two judges.
func (s *Service) TeamsForJudge(ctx context.Context, judgeID string) ([]domain.Team, error) {
	shared, err := s.teams.ListTeamsBySector(ctx, "Sasuke")
	if err != nil {
		return nil, err
	}
	switch judgeID {
	case "judge1":
		own, err := s.teams.ListTeamsBySector(ctx, "Naruto")
		if err != nil {
			return nil, err
		}
		return append(own, firstN(shared, judgeSharedSplit)...), nil
	case "judge2":
		own, err := s.teams.ListTeamsBySector(ctx, "Itachi")
		if err != nil {
			return nil, err
		}
		return append(own, afterN(shared, judgeSharedSplit)...), nil
	default:
		return nil, fmt.Errorf("%w: unknown judge %q", ErrInvalidInput, judgeID)
	}
}

// BySector returns the teams assigned to one sector.
func (s *Service) BySector(ctx context.Context, sector string) ([]domain.Team, error) {
	if strings.TrimSpace(sector) == "" {
		return nil, ErrInvalidInput
	}
	return s.teams.ListTeamsBySector(ctx, sector)
}

func firstN(teams []domain.Team, n int) []domain.Team {
	if len(teams) <= n {
		return teams
	}
	return teams[:n]
}

func afterN(teams []domain.Team, n int) []domain.Team {
	if len(teams) <= n {
		return nil
	}
	return teams[n:]
}

// AddIssue files a problem report for a team.
func (s *Service) AddIssue(ctx context.Context, teamID, text string) (*domain.Team, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrInvalidInput
	}
	if _, err := s.teams.GetTeamByID(ctx, teamID); err != nil {
		return nil, err
	}
	issue := &domain.Issue{
		ID:        uuid.NewString(),
		TeamID:    teamID,
		Text:      text,
		Status:    domain.IssuePending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.teams.AddIssue(ctx, issue); err != nil {
		return nil, err
	}
	return s.teams.GetTeamByID(ctx, teamID)
}

// ResolveIssue closes one issue.
func (s *Service) ResolveIssue(ctx context.Context, teamID, issueID string) (*domain.Team, error) {
	if err := s.teams.ResolveIssue(ctx, teamID, issueID); err != nil {
		return nil, err
	}
	return s.teams.GetTeamByID(ctx, teamID)
}

// ListIssues returns every team with at least one reported issue.
func (s *Service) ListIssues(ctx context.Context) ([]domain.Team, error) {
	return s.teams.ListTeamsWithIssues(ctx)
}

// generateCredential produces the 6-digit login token issued at verification.
func generateCredential() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
