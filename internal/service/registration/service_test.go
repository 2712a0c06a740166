package registration

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
	"github.com/Harsha29-kns/hackforge-backend/internal/service/notify"
	"github.com/Harsha29-kns/hackforge-backend/internal/service/settings"
)

type memTeams struct {
	mu    sync.Mutex
	byID  map[string]*domain.Team
	names map[string]bool
}

func newMemTeams() *memTeams {
	return &memTeams{byID: make(map[string]*domain.Team), names: make(map[string]bool)}
}

func (s *memTeams) CreateTeam(_ context.Context, team *domain.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.names[team.TeamName] {
		return repository.ErrDuplicate
	}
	s.byID[team.ID] = team
	s.names[team.TeamName] = true
	return nil
}

func (s *memTeams) GetTeamByID(_ context.Context, id string) (*domain.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if team, ok := s.byID[id]; ok {
		copied := *team
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (s *memTeams) GetTeamByCredential(context.Context, string) (*domain.Team, error) {
	return nil, repository.ErrNotFound
}

func (s *memTeams) CountTeams(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID), nil
}

func (s *memTeams) CountVerifiedTeams(context.Context) (int, error)            { return 0, nil }
func (s *memTeams) ListTeams(context.Context, int, int) ([]domain.Team, error) { return nil, nil }
func (s *memTeams) ListTeamsBySector(context.Context, string) ([]domain.Team, error) {
	return nil, nil
}
func (s *memTeams) ListTeamsWithIssues(context.Context) ([]domain.Team, error) { return nil, nil }
func (s *memTeams) MarkVerified(context.Context, string, string) error         { return nil }
func (s *memTeams) AssignDomain(context.Context, string, string) error         { return nil }
func (s *memTeams) SetSector(context.Context, string, string) error            { return nil }
func (s *memTeams) SaveReviewScores(context.Context, *domain.Team) error       { return nil }
func (s *memTeams) SaveMemoryGame(context.Context, string, int) error          { return nil }
func (s *memTeams) SaveNumberPuzzle(context.Context, string, int) error        { return nil }
func (s *memTeams) SaveStopTheBar(context.Context, string, int) error          { return nil }
func (s *memTeams) SaveInternalScore(context.Context, string, int) error       { return nil }
func (s *memTeams) SaveAttendance(context.Context, string, []domain.TeamMember) error {
	return nil
}
func (s *memTeams) AddIssue(context.Context, *domain.Issue) error      { return nil }
func (s *memTeams) ResolveIssue(context.Context, string, string) error { return nil }

type memSettingsRepo struct {
	mu      sync.Mutex
	current *domain.ServerSettings
}

func (s *memSettingsRepo) GetSettings(context.Context) (*domain.ServerSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, repository.ErrNotFound
	}
	copied := *s.current
	return &copied, nil
}

func (s *memSettingsRepo) SaveSettings(_ context.Context, settings *domain.ServerSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *settings
	s.current = &copied
	return nil
}

type statusRecorder struct {
	mu   sync.Mutex
	last *domain.RegistrationStatus
}

func (a *statusRecorder) RegistrationStatus(status domain.RegistrationStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.last = &status
}

func (a *statusRecorder) snapshot() *domain.RegistrationStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

func newGateFixture(t *testing.T, limit int) (*Service, *memTeams, *settings.Service, *statusRecorder) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	settingsSvc := settings.New(&memSettingsRepo{}, log)
	if err := settingsSvc.Load(context.Background(), limit); err != nil {
		t.Fatalf("load settings: %v", err)
	}
	teams := newMemTeams()
	announce := &statusRecorder{}
	mailer := notify.LogMailer{From: "test@hackforge.local", Logger: log}
	return New(teams, settingsSvc, announce, mailer, log), teams, settingsSvc, announce
}

func validInput(name string) RegisterInput {
	members := make([]domain.TeamMember, 0, 4)
	for _, regno := range []string{"r1", "r2", "r3", "r4"} {
		members = append(members, domain.TeamMember{Name: "member " + regno, RegistrationNumber: name + "-" + regno})
	}
	return RegisterInput{
		TeamName:           name,
		Email:              name + "@example.edu",
		LeadName:           "lead of " + name,
		RegistrationNumber: name + "-r1",
		Members:            members,
	}
}

func TestIsClosedGate(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name     string
		settings domain.ServerSettings
		count    int
		closed   bool
	}{
		{"open with no schedule or closure", domain.ServerSettings{RegistrationLimit: 60}, 0, false},
		{"forced closure wins", domain.ServerSettings{RegistrationLimit: 60, RegistrationOpenTime: &past, ForceClosed: true}, 0, true},
		{"open after schedule", domain.ServerSettings{RegistrationLimit: 60, RegistrationOpenTime: &past}, 0, false},
		{"closed before schedule", domain.ServerSettings{RegistrationLimit: 60, RegistrationOpenTime: &future}, 0, true},
		{"closed at capacity", domain.ServerSettings{RegistrationLimit: 2, RegistrationOpenTime: &past}, 2, true},
		{"open below capacity", domain.ServerSettings{RegistrationLimit: 2, RegistrationOpenTime: &past}, 1, false},
	}
	for _, tc := range cases {
		if got := IsClosed(tc.settings, now, tc.count); got != tc.closed {
			t.Errorf("%s: IsClosed = %v, want %v", tc.name, got, tc.closed)
		}
	}
}

func TestRegisterAdmitsAndAnnounces(t *testing.T) {
	svc, teams, settingsSvc, announce := newGateFixture(t, 60)
	past := time.Now().Add(-time.Hour)
	if _, err := settingsSvc.SetRegistrationOpenTime(context.Background(), &past); err != nil {
		t.Fatalf("open registration: %v", err)
	}

	created, err := svc.Register(context.Background(), validInput("Nova"))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if created.ID == "" || created.TeamName != "Nova" {
		t.Fatalf("unexpected team: %+v", created)
	}
	if len(created.Members) != 5 {
		t.Fatalf("expected lead plus 4 members, got %d", len(created.Members))
	}
	if !created.Members[0].IsLead {
		t.Fatal("first member is not the lead")
	}
	if count, _ := teams.CountTeams(context.Background()); count != 1 {
		t.Fatalf("expected 1 stored team, got %d", count)
	}
	status := announce.snapshot()
	if status == nil || status.Count != 1 {
		t.Fatalf("expected announced count 1, got %+v", status)
	}
}

func TestRegisterClosedBeforeSchedule(t *testing.T) {
	svc, _, settingsSvc, _ := newGateFixture(t, 60)
	future := time.Now().Add(time.Hour)
	if _, err := settingsSvc.SetRegistrationOpenTime(context.Background(), &future); err != nil {
		t.Fatalf("schedule registration: %v", err)
	}

	if _, err := svc.Register(context.Background(), validInput("Nova")); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestRegisterFullAtLimit(t *testing.T) {
	svc, _, settingsSvc, _ := newGateFixture(t, 2)
	past := time.Now().Add(-time.Hour)
	if _, err := settingsSvc.SetRegistrationOpenTime(context.Background(), &past); err != nil {
		t.Fatalf("open registration: %v", err)
	}

	for _, name := range []string{"Nova", "Orbit"} {
		if _, err := svc.Register(context.Background(), validInput(name)); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	if _, err := svc.Register(context.Background(), validInput("Quasar")); !errors.Is(err, ErrFull) {
		t.Fatalf("expected ErrFull at capacity, got %v", err)
	}
}

func TestRegisterDuplicateName(t *testing.T) {
	svc, _, settingsSvc, _ := newGateFixture(t, 60)
	past := time.Now().Add(-time.Hour)
	if _, err := settingsSvc.SetRegistrationOpenTime(context.Background(), &past); err != nil {
		t.Fatalf("open registration: %v", err)
	}

	if _, err := svc.Register(context.Background(), validInput("Nova")); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(context.Background(), validInput("Nova")); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _, settingsSvc, _ := newGateFixture(t, 60)
	past := time.Now().Add(-time.Hour)
	if _, err := settingsSvc.SetRegistrationOpenTime(context.Background(), &past); err != nil {
		t.Fatalf("open registration: %v", err)
	}

	noName := validInput("Nova")
	noName.TeamName = "  "
	if _, err := svc.Register(context.Background(), noName); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank name, got %v", err)
	}

	shortRoster := validInput("Orbit")
	shortRoster.Members = shortRoster.Members[:2]
	if _, err := svc.Register(context.Background(), shortRoster); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for short roster, got %v", err)
	}
}

func TestForceOpenOverridesSchedule(t *testing.T) {
	svc, _, settingsSvc, _ := newGateFixture(t, 60)
	if _, err := settingsSvc.ForceOpenRegistration(context.Background()); err != nil {
		t.Fatalf("force open: %v", err)
	}
	if _, err := svc.Register(context.Background(), validInput("Nova")); err != nil {
		t.Fatalf("register under forced-open gate: %v", err)
	}
}

func TestStatusReflectsState(t *testing.T) {
	svc, _, settingsSvc, _ := newGateFixture(t, 60)
	past := time.Now().Add(-time.Hour)
	if _, err := settingsSvc.SetRegistrationOpenTime(context.Background(), &past); err != nil {
		t.Fatalf("open registration: %v", err)
	}

	status, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.IsClosed || status.Limit != 60 || status.Count != 0 {
		t.Fatalf("unexpected status: %+v", status)
	}
}
