package realtime

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"log/slog"

	"github.com/Harsha29-kns/hackforge-backend/internal/domain"
	"github.com/Harsha29-kns/hackforge-backend/internal/repository"
	"github.com/Harsha29-kns/hackforge-backend/internal/service/allocator"
	"github.com/Harsha29-kns/hackforge-backend/internal/service/notify"
	"github.com/Harsha29-kns/hackforge-backend/internal/service/registration"
	"github.com/Harsha29-kns/hackforge-backend/internal/service/settings"
	"github.com/Harsha29-kns/hackforge-backend/internal/ws"
)

// scriptConn feeds frames into a coordinator read loop from the test.
type scriptConn struct {
	fakeConn
	frames chan []byte
}

func newScriptConn() *scriptConn {
	return &scriptConn{frames: make(chan []byte, 8)}
}

func (c *scriptConn) Read() ([]byte, error) {
	payload, ok := <-c.frames
	if !ok {
		return nil, io.EOF
	}
	return payload, nil
}

func (c *scriptConn) push(t *testing.T, event string, data any) {
	t.Helper()
	payload, err := Encode(event, data)
	if err != nil {
		t.Fatalf("encode %s: %v", event, err)
	}
	c.frames <- payload
}

func (c *scriptConn) end() { close(c.frames) }

// waitForEvent polls the connection's outbox until a frame with the event
// name arrives.
func (c *scriptConn) waitForEvent(t *testing.T, event string) Envelope {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	seen := 0
	for time.Now().Before(deadline) {
		payloads := c.payloads()
		for ; seen < len(payloads); seen++ {
			var env Envelope
			if err := json.Unmarshal(payloads[seen], &env); err != nil {
				t.Fatalf("bad frame: %v", err)
			}
			if env.Event == event {
				return env
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("event %q never arrived", event)
	return Envelope{}
}

type stubTeams struct {
	mu    sync.Mutex
	byID  map[string]*domain.Team
	order []string
}

func newStubTeams(teams ...*domain.Team) *stubTeams {
	s := &stubTeams{byID: make(map[string]*domain.Team)}
	for _, team := range teams {
		s.byID[team.ID] = team
		s.order = append(s.order, team.ID)
	}
	return s
}

func (s *stubTeams) CreateTeam(_ context.Context, team *domain.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[team.ID] = team
	s.order = append(s.order, team.ID)
	return nil
}

func (s *stubTeams) GetTeamByID(_ context.Context, id string) (*domain.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if team, ok := s.byID[id]; ok {
		copied := *team
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubTeams) GetTeamByCredential(_ context.Context, credential string) (*domain.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, team := range s.byID {
		if team.Credential == credential && team.Verified {
			copied := *team
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubTeams) CountTeams(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID), nil
}

func (s *stubTeams) CountVerifiedTeams(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, team := range s.byID {
		if team.Verified {
			count++
		}
	}
	return count, nil
}

func (s *stubTeams) ListTeams(context.Context, int, int) ([]domain.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	teams := make([]domain.Team, 0, len(s.order))
	for _, id := range s.order {
		teams = append(teams, *s.byID[id])
	}
	return teams, nil
}

func (s *stubTeams) ListTeamsBySector(_ context.Context, sector string) ([]domain.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var teams []domain.Team
	for _, id := range s.order {
		if s.byID[id].Sector == sector {
			teams = append(teams, *s.byID[id])
		}
	}
	return teams, nil
}

func (s *stubTeams) ListTeamsWithIssues(context.Context) ([]domain.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var teams []domain.Team
	for _, id := range s.order {
		if len(s.byID[id].Issues) > 0 {
			teams = append(teams, *s.byID[id])
		}
	}
	return teams, nil
}

func (s *stubTeams) MarkVerified(_ context.Context, id, credential string) error {
	return s.mutate(id, func(team *domain.Team) {
		team.Verified = true
		team.Credential = credential
	})
}

func (s *stubTeams) AssignDomain(_ context.Context, id, domainName string) error {
	return s.mutate(id, func(team *domain.Team) { team.Domain = &domainName })
}

func (s *stubTeams) SetSector(_ context.Context, id, sector string) error {
	return s.mutate(id, func(team *domain.Team) { team.Sector = sector })
}

func (s *stubTeams) SaveReviewScores(_ context.Context, team *domain.Team) error {
	return s.mutate(team.ID, func(stored *domain.Team) { *stored = *team })
}

func (s *stubTeams) SaveMemoryGame(_ context.Context, id string, score int) error {
	return s.mutate(id, func(team *domain.Team) {
		team.MemoryGameScore = &score
		team.MemoryGamePlayed = true
	})
}

func (s *stubTeams) SaveNumberPuzzle(_ context.Context, id string, score int) error {
	return s.mutate(id, func(team *domain.Team) {
		team.NumberPuzzleScore = &score
		team.NumberPuzzlePlayed = true
	})
}

func (s *stubTeams) SaveStopTheBar(_ context.Context, id string, score int) error {
	return s.mutate(id, func(team *domain.Team) {
		team.StopTheBarScore = &score
		team.StopTheBarPlayed = true
	})
}

func (s *stubTeams) SaveInternalScore(_ context.Context, id string, score int) error {
	return s.mutate(id, func(team *domain.Team) { team.InternalGameScore = score })
}

func (s *stubTeams) SaveAttendance(_ context.Context, teamID string, members []domain.TeamMember) error {
	return s.mutate(teamID, func(team *domain.Team) { team.Members = members })
}

func (s *stubTeams) AddIssue(_ context.Context, issue *domain.Issue) error {
	return s.mutate(issue.TeamID, func(team *domain.Team) {
		team.Issues = append(team.Issues, *issue)
	})
}

func (s *stubTeams) ResolveIssue(_ context.Context, teamID, issueID string) error {
	return s.mutate(teamID, func(team *domain.Team) {
		for i := range team.Issues {
			if team.Issues[i].ID == issueID {
				team.Issues[i].Status = domain.IssueResolved
			}
		}
	})
}

func (s *stubTeams) mutate(id string, apply func(*domain.Team)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	team, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	apply(team)
	return nil
}

type stubDomains struct {
	mu   sync.Mutex
	pool map[string]*domain.Domain
}

func newStubDomains(pool ...domain.Domain) *stubDomains {
	s := &stubDomains{pool: make(map[string]*domain.Domain)}
	for i := range pool {
		d := pool[i]
		s.pool[d.Code] = &d
	}
	return s
}

func (s *stubDomains) ListDomains(context.Context) ([]domain.Domain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	domains := make([]domain.Domain, 0, len(s.pool))
	for _, d := range s.pool {
		domains = append(domains, *d)
	}
	return domains, nil
}

func (s *stubDomains) GetDomain(_ context.Context, code string) (*domain.Domain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.pool[code]; ok {
		copied := *d
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubDomains) CountDomains(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pool), nil
}

func (s *stubDomains) SeedDomains(_ context.Context, pool []domain.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range pool {
		d := pool[i]
		s.pool[d.Code] = &d
	}
	return nil
}

// AllocateSlot mirrors the store's conditional decrement: the check and the
// decrement share one critical section.
func (s *stubDomains) AllocateSlot(_ context.Context, code string) (*domain.Domain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.pool[code]
	if !ok || d.Slots <= 0 {
		return nil, repository.ErrNotFound
	}
	d.Slots--
	copied := *d
	return &copied, nil
}

func (s *stubDomains) ResetDomains(_ context.Context, pool []domain.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pool = make(map[string]*domain.Domain)
	for i := range pool {
		d := pool[i]
		s.pool[d.Code] = &d
	}
	return nil
}

type stubSettingsRepo struct {
	mu      sync.Mutex
	current *domain.ServerSettings
}

func (s *stubSettingsRepo) GetSettings(context.Context) (*domain.ServerSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, repository.ErrNotFound
	}
	copied := *s.current
	return &copied, nil
}

func (s *stubSettingsRepo) SaveSettings(_ context.Context, settings *domain.ServerSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *settings
	s.current = &copied
	return nil
}

type stubNotices struct {
	mu        sync.Mutex
	reminders []domain.Reminder
	decks     []domain.SlideDeck
}

func (s *stubNotices) InsertReminder(_ context.Context, reminder *domain.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders = append(s.reminders, *reminder)
	return nil
}

func (s *stubNotices) ListReminders(_ context.Context, limit int) ([]domain.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]domain.Reminder(nil), s.reminders...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *stubNotices) InsertSlideDeck(_ context.Context, deck *domain.SlideDeck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decks = append(s.decks, *deck)
	return nil
}

func (s *stubNotices) LatestSlideDeck(context.Context) (*domain.SlideDeck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.decks) == 0 {
		return nil, repository.ErrNotFound
	}
	copied := s.decks[len(s.decks)-1]
	return &copied, nil
}

type coordinatorFixture struct {
	coord    *Coordinator
	hub      *ws.Hub
	registry *Registry
	teams    *stubTeams
	domains  *stubDomains
	notices  *stubNotices
	settings *settings.Service
}

func newCoordinatorFixture(t *testing.T, teams *stubTeams, domains *stubDomains, window bool) *coordinatorFixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	settingsRepo := &stubSettingsRepo{}
	settingsSvc := settings.New(settingsRepo, log)
	if err := settingsSvc.Load(context.Background(), 60); err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if window {
		if _, err := settingsSvc.SetDomainWindow(context.Background(), true); err != nil {
			t.Fatalf("open domain window: %v", err)
		}
	}

	hub := ws.NewHub()
	t.Cleanup(hub.Close)
	bcast := NewBroadcaster(hub, log)
	registry := NewRegistry()
	notices := &stubNotices{}
	mailer := notify.LogMailer{From: "test@hackforge.local", Logger: log}

	allocSvc := allocator.New(domains, teams, settingsSvc, bcast, log)
	regSvc := registration.New(teams, settingsSvc, bcast, mailer, log)

	coord := NewCoordinator(registry, hub, bcast, allocSvc, settingsSvc, regSvc,
		teams, notices, log, time.Second)
	return &coordinatorFixture{
		coord:    coord,
		hub:      hub,
		registry: registry,
		teams:    teams,
		domains:  domains,
		notices:  notices,
		settings: settingsSvc,
	}
}

func TestCoordinatorLoginGrantsSingleSession(t *testing.T) {
	fix := newCoordinatorFixture(t, newStubTeams(&domain.Team{ID: "team-1", TeamName: "Nova"}), newStubDomains(), false)

	first := newScriptConn()
	second := newScriptConn()
	go fix.coord.HandleConnection(first)
	go fix.coord.HandleConnection(second)

	first.push(t, EvTeamLogin, TeamRef{TeamID: "team-1"})
	first.waitForEvent(t, EvLoginSuccess)

	second.push(t, EvTeamLogin, TeamRef{TeamID: "team-1"})
	env := second.waitForEvent(t, EvLoginError)
	var reply ErrorReply
	if err := json.Unmarshal(env.Data, &reply); err != nil {
		t.Fatalf("decode error reply: %v", err)
	}
	if reply.Message == "" {
		t.Fatal("login error carried no message")
	}

	// Dropping the holder releases the lock and lets the other connection in.
	first.end()
	deadline := time.Now().Add(2 * time.Second)
	for fix.registry.Holds("team-1") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	second.push(t, EvTeamLogin, TeamRef{TeamID: "team-1"})
	second.waitForEvent(t, EvLoginSuccess)
	second.end()
}

func TestCoordinatorUnknownTeamLogin(t *testing.T) {
	fix := newCoordinatorFixture(t, newStubTeams(), newStubDomains(), false)

	conn := newScriptConn()
	go fix.coord.HandleConnection(conn)
	defer conn.end()

	conn.push(t, EvTeamLogin, TeamRef{TeamID: "ghost"})
	conn.waitForEvent(t, EvLoginError)
}

func TestCoordinatorForceLogoutSignalsHolder(t *testing.T) {
	fix := newCoordinatorFixture(t, newStubTeams(&domain.Team{ID: "team-1", TeamName: "Nova"}), newStubDomains(), false)

	holder := newScriptConn()
	admin := newScriptConn()
	go fix.coord.HandleConnection(holder)
	go fix.coord.HandleConnection(admin)
	defer holder.end()
	defer admin.end()

	holder.push(t, EvTeamLogin, TeamRef{TeamID: "team-1"})
	holder.waitForEvent(t, EvLoginSuccess)

	admin.push(t, EvAdminForceLogout, TeamRef{TeamID: "team-1"})
	env := holder.waitForEvent(t, EvForceLogout)
	// The evicted client needs something to display.
	var reply ErrorReply
	if err := json.Unmarshal(env.Data, &reply); err != nil {
		t.Fatalf("decode force logout payload: %v", err)
	}
	if reply.Message == "" {
		t.Fatal("force logout carried no message")
	}

	deadline := time.Now().Add(2 * time.Second)
	for fix.registry.Holds("team-1") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if fix.registry.Holds("team-1") {
		t.Fatal("session still held after force logout")
	}
}

// A connection switching from one team to another must not leave the first
// team's lock held until an organizer force-logout.
func TestCoordinatorReloginReleasesPriorLock(t *testing.T) {
	fix := newCoordinatorFixture(t, newStubTeams(
		&domain.Team{ID: "team-1", TeamName: "Nova"},
		&domain.Team{ID: "team-2", TeamName: "Orion"},
	), newStubDomains(), false)

	conn := newScriptConn()
	go fix.coord.HandleConnection(conn)
	defer conn.end()

	conn.push(t, EvTeamLogin, TeamRef{TeamID: "team-1"})
	conn.waitForEvent(t, EvLoginSuccess)

	conn.push(t, EvTeamLogin, TeamRef{TeamID: "team-2"})
	deadline := time.Now().Add(2 * time.Second)
	for !fix.registry.Holds("team-2") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !fix.registry.Holds("team-2") {
		t.Fatal("second login never took effect")
	}
	if fix.registry.Holds("team-1") {
		t.Fatal("prior team lock survived the relogin")
	}

	// A fresh connection can now claim the released team.
	other := newScriptConn()
	go fix.coord.HandleConnection(other)
	defer other.end()
	other.push(t, EvTeamLogin, TeamRef{TeamID: "team-1"})
	other.waitForEvent(t, EvLoginSuccess)
}

// The admin console opens the selection window with the bare "domainOpen"
// event name; the closing counterpart is namespaced.
func TestCoordinatorDomainWindowEventNames(t *testing.T) {
	fix := newCoordinatorFixture(t, newStubTeams(), newStubDomains(), false)

	admin := newScriptConn()
	observer := newScriptConn()
	go fix.coord.HandleConnection(admin)
	go fix.coord.HandleConnection(observer)
	defer admin.end()
	defer observer.end()

	admin.push(t, "domainOpen", nil)
	deadline := time.Now().Add(2 * time.Second)
	for !fix.settings.Current().DomainWindowOpen && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !fix.settings.Current().DomainWindowOpen {
		t.Fatal("domainOpen event did not open the window")
	}

	// The connect snapshot already carried a closed-window frame; the
	// broadcast is the one announcing the open state.
	sawOpen := func() bool {
		for _, raw := range observer.payloads() {
			var env Envelope
			if json.Unmarshal(raw, &env) == nil && env.Event == EvDomainStat && string(env.Data) == "true" {
				return true
			}
		}
		return false
	}
	deadline = time.Now().Add(2 * time.Second)
	for !sawOpen() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !sawOpen() {
		t.Fatal("window-open broadcast never reached observers")
	}

	admin.push(t, "admin:closeDomains", nil)
	deadline = time.Now().Add(2 * time.Second)
	for fix.settings.Current().DomainWindowOpen && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if fix.settings.Current().DomainWindowOpen {
		t.Fatal("admin:closeDomains event did not close the window")
	}
}

func TestCoordinatorDomainSelection(t *testing.T) {
	teams := newStubTeams(&domain.Team{ID: "team-1", TeamName: "Nova"})
	domains := newStubDomains(domain.Domain{Code: "1", Name: "Cybersecurity", Slots: 1})
	fix := newCoordinatorFixture(t, teams, domains, true)

	conn := newScriptConn()
	go fix.coord.HandleConnection(conn)
	defer conn.end()

	conn.push(t, EvDomainSelected, DomainSelect{TeamID: "team-1", Domain: "1"})
	env := conn.waitForEvent(t, EvDomainSelected)
	var reply DomainSelectReply
	if err := json.Unmarshal(env.Data, &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if !reply.Success || reply.Domain == nil || reply.Domain.Name != "Cybersecurity" {
		t.Fatalf("unexpected selection reply: %+v", reply)
	}
	// A successful claim fans the refreshed slot map out to everyone.
	conn.waitForEvent(t, EvDomainData)

	stored, err := teams.GetTeamByID(context.Background(), "team-1")
	if err != nil {
		t.Fatalf("get team: %v", err)
	}
	if stored.Domain == nil || *stored.Domain != "Cybersecurity" {
		t.Fatalf("assignment not persisted: %+v", stored.Domain)
	}
}

func TestCoordinatorDomainSelectionClosedWindow(t *testing.T) {
	teams := newStubTeams(&domain.Team{ID: "team-1", TeamName: "Nova"})
	domains := newStubDomains(domain.Domain{Code: "1", Name: "Cybersecurity", Slots: 1})
	fix := newCoordinatorFixture(t, teams, domains, false)

	conn := newScriptConn()
	go fix.coord.HandleConnection(conn)
	defer conn.end()

	conn.push(t, EvDomainSelected, DomainSelect{TeamID: "team-1", Domain: "1"})
	env := conn.waitForEvent(t, EvDomainSelected)
	var reply DomainSelectReply
	if err := json.Unmarshal(env.Data, &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.Success || reply.Error == "" {
		t.Fatalf("expected closed-window rejection, got %+v", reply)
	}
}

func TestCoordinatorSnapshotsOnConnect(t *testing.T) {
	fix := newCoordinatorFixture(t, newStubTeams(), newStubDomains(), false)

	conn := newScriptConn()
	go fix.coord.HandleConnection(conn)
	defer conn.end()

	conn.waitForEvent(t, EvGameStatus)
	conn.waitForEvent(t, EvPuzzleStatus)
	conn.waitForEvent(t, EvBarStatus)
	conn.waitForEvent(t, EvDomainStat)
}

func TestCoordinatorReminderStoredAndBroadcast(t *testing.T) {
	fix := newCoordinatorFixture(t, newStubTeams(), newStubDomains(), false)

	admin := newScriptConn()
	observer := newScriptConn()
	go fix.coord.HandleConnection(admin)
	go fix.coord.HandleConnection(observer)
	defer admin.end()
	defer observer.end()

	admin.push(t, EvAdminSendReminder, ReminderInput{Message: "lunch at noon"})
	env := observer.waitForEvent(t, EvReminder)

	var reminder domain.Reminder
	if err := json.Unmarshal(env.Data, &reminder); err != nil {
		t.Fatalf("decode reminder: %v", err)
	}
	if reminder.Message != "lunch at noon" || reminder.ID == "" {
		t.Fatalf("unexpected reminder: %+v", reminder)
	}

	stored, err := fix.notices.ListReminders(context.Background(), 10)
	if err != nil {
		t.Fatalf("list reminders: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored reminder, got %d", len(stored))
	}
}

func TestCoordinatorLoadDataSnapshot(t *testing.T) {
	fix := newCoordinatorFixture(t, newStubTeams(), newStubDomains(), false)
	fix.notices.reminders = []domain.Reminder{{ID: "r1", Message: "hello"}}
	fix.notices.decks = []domain.SlideDeck{{ID: "d1", FileName: "pitch.pptx", FileURL: "https://files/pitch.pptx"}}

	conn := newScriptConn()
	go fix.coord.HandleConnection(conn)
	defer conn.end()

	conn.push(t, EvGetData, nil)
	env := conn.waitForEvent(t, EvLoadData)

	var data LoadData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode load data: %v", err)
	}
	if len(data.Reminders) != 1 || data.Deck == nil || data.Deck.ID != "d1" {
		t.Fatalf("unexpected snapshot: %+v", data)
	}
}

func TestCoordinatorReviewToggleBroadcast(t *testing.T) {
	fix := newCoordinatorFixture(t, newStubTeams(), newStubDomains(), false)

	admin := newScriptConn()
	observer := newScriptConn()
	go fix.coord.HandleConnection(admin)
	go fix.coord.HandleConnection(observer)
	defer admin.end()
	defer observer.end()

	admin.push(t, EvAdminFirstReview, FlagChange{Open: true})
	env := observer.waitForEvent(t, EvReviewStatus)

	var status ReviewStatus
	if err := json.Unmarshal(env.Data, &status); err != nil {
		t.Fatalf("decode review status: %v", err)
	}
	if !status.FirstReviewOpen || status.SecondReviewOpen {
		t.Fatalf("unexpected review status: %+v", status)
	}
	if !fix.settings.Current().FirstReviewOpen {
		t.Fatal("toggle not persisted in settings")
	}
}
