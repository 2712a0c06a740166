package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/Harsha29-kns/hackforge-backend/internal/domain"
	"github.com/Harsha29-kns/hackforge-backend/internal/repository"
	"github.com/Harsha29-kns/hackforge-backend/internal/service/allocator"
	"github.com/Harsha29-kns/hackforge-backend/internal/service/registration"
	"github.com/Harsha29-kns/hackforge-backend/internal/service/settings"
	"github.com/Harsha29-kns/hackforge-backend/internal/ws"
)

const reminderHistory = 20

// Conn is a full-duplex observer: a Subscriber that can also be read from.
type Conn interface {
	ws.Subscriber
	Read() ([]byte, error)
}

// Coordinator owns the lifecycle of one realtime connection: registration
// with the hub, the read loop, event dispatch, and the cleanup that releases
// a held session lock when the connection drops.
type Coordinator struct {
	registry  *Registry
	hub       *ws.Hub
	bcast     *Broadcaster
	alloc     *allocator.Service
	settings  *settings.Service
	reg       *registration.Service
	teams     repository.TeamRepository
	notices   repository.NoticeRepository
	logger    *slog.Logger
	storeWait time.Duration
}

// NewCoordinator wires a Coordinator.
func NewCoordinator(registry *Registry, hub *ws.Hub, bcast *Broadcaster,
	alloc *allocator.Service, settingsSvc *settings.Service, reg *registration.Service,
	teams repository.TeamRepository, notices repository.NoticeRepository,
	logger *slog.Logger, storeWait time.Duration) *Coordinator {
	return &Coordinator{
		registry:  registry,
		hub:       hub,
		bcast:     bcast,
		alloc:     alloc,
		settings:  settingsSvc,
		reg:       reg,
		teams:     teams,
		notices:   notices,
		logger:    logger,
		storeWait: storeWait,
	}
}

// session is per-connection state. It lives on the handler goroutine's stack
// and is never shared, so it needs no locking.
type session struct {
	teamID string
}

// HandleConnection serves one connection until its read loop ends. It blocks,
// so callers run it on the connection's goroutine.
func (c *Coordinator) HandleConnection(conn Conn) {
	c.hub.Register(conn)
	sess := &session{}
	defer c.drop(conn, sess)

	c.sendSnapshots(conn)

	for {
		payload, err := conn.Read()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			c.logger.Warn("unreadable frame dropped", "error", err)
			continue
		}
		c.dispatch(conn, sess, env)
	}
}

// drop runs when the read loop ends for any reason. A session lock is
// released only through the registry's holder guard, so a connection that
// lost its lock to a force-logout cannot evict the new holder.
func (c *Coordinator) drop(conn Conn, sess *session) {
	c.hub.Unregister(conn)
	conn.Close()
	if sess.teamID != "" && c.registry.Logout(sess.teamID, conn) {
		c.logger.Info("session released on disconnect", "team_id", sess.teamID)
		c.announcePresence()
	}
}

// sendSnapshots pushes the state a freshly connected client renders
// immediately, before it asks for anything.
func (c *Coordinator) sendSnapshots(conn Conn) {
	current := c.settings.Current()
	c.bcast.SendTo(conn, EvGameStatus, current.GameOpenTime)
	c.bcast.SendTo(conn, EvPuzzleStatus, current.PuzzleOpenTime)
	c.bcast.SendTo(conn, EvBarStatus, current.StopTheBarOpenTime)
	c.bcast.SendTo(conn, EvDomainStat, current.DomainWindowOpen)
}

func (c *Coordinator) dispatch(conn Conn, sess *session, env Envelope) {
	switch env.Event {
	case EvTeamLogin:
		c.handleLogin(conn, sess, env.Data)
	case EvTeamLogout:
		c.handleLogout(conn, sess)
	case EvDomainSelected:
		c.handleDomainSelect(conn, env.Data)
	case EvGetDomains:
		c.handleGetDomains(conn)
	case EvGetData:
		c.handleGetData(conn)
	case EvGetGameStatus, EvDomainStatQuery:
		c.sendSnapshots(conn)
	case EvCheckRegistration:
		c.handleRegistrationCheck(conn)
	case EvJudgeReviewStatus:
		current := c.settings.Current()
		c.bcast.SendTo(conn, EvReviewStatus, ReviewStatus{
			FirstReviewOpen:  current.FirstReviewOpen,
			SecondReviewOpen: current.SecondReviewOpen,
		})
	case EvAdminSessions:
		c.bcast.SendTo(conn, EvSessionsUpdate, SessionCount{Count: c.registry.Count()})
		c.bcast.SendTo(conn, EvLoginStatusList, c.loginStatusList())
	case EvAdminForceLogout:
		c.handleForceLogout(env.Data)
	case EvAdminSetRegLimit:
		c.handleSetRegLimit(env.Data)
	case EvAdminSetRegOpen:
		c.handleSetRegOpenTime(env.Data)
	case EvAdminForceClose:
		c.handleRegistrationToggle(false)
	case EvAdminForceOpen:
		c.handleRegistrationToggle(true)
	case EvAdminOpenDomains:
		c.handleDomainWindow(true)
	case EvAdminCloseDomains:
		c.handleDomainWindow(false)
	case EvAdminSetGameTime:
		c.handleOpenTime(env.Data, c.settings.SetGameOpenTime, c.bcast.GameOpenTime)
	case EvAdminSetPuzzleTime:
		c.handleOpenTime(env.Data, c.settings.SetPuzzleOpenTime, c.bcast.PuzzleOpenTime)
	case EvAdminSetBarTime:
		c.handleOpenTime(env.Data, c.settings.SetStopTheBarOpenTime, c.bcast.StopTheBarOpenTime)
	case EvAdminFirstReview:
		c.handleReviewToggle(env.Data, c.settings.SetFirstReviewOpen)
	case EvAdminSecondReview:
		c.handleReviewToggle(env.Data, c.settings.SetSecondReviewOpen)
	case EvAdminSendReminder:
		c.handleReminder(env.Data)
	case EvAdminSendDeck:
		c.handleDeck(env.Data)
	default:
		c.logger.Warn("unknown event dropped", "event", env.Event)
	}
}

func (c *Coordinator) storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.storeWait)
}

func (c *Coordinator) handleLogin(conn Conn, sess *session, data json.RawMessage) {
	var ref TeamRef
	if err := json.Unmarshal(data, &ref); err != nil || strings.TrimSpace(ref.TeamID) == "" {
		c.bcast.SendTo(conn, EvLoginError, ErrorReply{Message: "a team id is required to log in"})
		return
	}
	ctx, cancel := c.storeCtx()
	defer cancel()
	team, err := c.teams.GetTeamByID(ctx, ref.TeamID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.bcast.SendTo(conn, EvLoginError, ErrorReply{Message: "team not found"})
			return
		}
		c.logger.Error("login lookup failed", "team_id", ref.TeamID, "error", err)
		c.bcast.SendTo(conn, EvLoginError, ErrorReply{Message: "login is unavailable right now"})
		return
	}
	if err := c.registry.Login(team.ID, conn); err != nil {
		c.bcast.SendTo(conn, EvLoginError, ErrorReply{Message: err.Error()})
		return
	}
	// A connection switching teams releases its previous lock, so the old
	// team does not stay locked out until a force-logout. The old lock is
	// only dropped once the new login has succeeded.
	if sess.teamID != "" && sess.teamID != team.ID && c.registry.Logout(sess.teamID, conn) {
		c.logger.Info("session released on relogin", "team_id", sess.teamID)
	}
	sess.teamID = team.ID
	c.logger.Info("team session opened", "team_id", team.ID, "team", team.TeamName)
	c.bcast.SendTo(conn, EvLoginSuccess, team)
	c.announcePresence()
}

func (c *Coordinator) handleLogout(conn Conn, sess *session) {
	if sess.teamID == "" {
		return
	}
	if c.registry.Logout(sess.teamID, conn) {
		c.logger.Info("team session closed", "team_id", sess.teamID)
		c.announcePresence()
	}
	sess.teamID = ""
}

func (c *Coordinator) handleForceLogout(data json.RawMessage) {
	var ref TeamRef
	if err := json.Unmarshal(data, &ref); err != nil || ref.TeamID == "" {
		return
	}
	holder, ok := c.registry.ForceLogout(ref.TeamID)
	if !ok {
		return
	}
	c.logger.Info("team session evicted", "team_id", ref.TeamID)
	c.bcast.SendTo(holder, EvForceLogout, ErrorReply{Message: "your session was ended by an organizer"})
	c.announcePresence()
}

func (c *Coordinator) handleDomainSelect(conn Conn, data json.RawMessage) {
	var req DomainSelect
	if err := json.Unmarshal(data, &req); err != nil {
		c.bcast.SendTo(conn, EvDomainSelected, DomainSelectReply{Error: "invalid selection request"})
		return
	}
	ctx, cancel := c.storeCtx()
	defer cancel()
	allocated, err := c.alloc.SelectDomain(ctx, req.TeamID, req.Domain)
	if err != nil {
		c.bcast.SendTo(conn, EvDomainSelected, DomainSelectReply{Error: selectionMessage(err)})
		return
	}
	view := domain.ViewOf(*allocated)
	c.bcast.SendTo(conn, EvDomainSelected, DomainSelectReply{Success: true, Domain: &view})
}

// selectionMessage keeps store internals out of client-facing errors while
// passing the allocator's own outcomes through verbatim.
func selectionMessage(err error) string {
	var assigned *allocator.AlreadyAssignedError
	switch {
	case errors.Is(err, allocator.ErrInvalidID),
		errors.Is(err, allocator.ErrWindowClosed),
		errors.Is(err, allocator.ErrDomainFull):
		return err.Error()
	case errors.As(err, &assigned):
		return assigned.Error()
	case errors.Is(err, repository.ErrNotFound):
		return "team not found"
	default:
		return "domain selection failed, please try again"
	}
}

func (c *Coordinator) handleGetDomains(conn Conn) {
	ctx, cancel := c.storeCtx()
	defer cancel()
	views, err := c.alloc.ListViews(ctx)
	if err != nil {
		c.logger.Error("domain list failed", "error", err)
		return
	}
	c.bcast.SendTo(conn, EvDomainData, views)
}

func (c *Coordinator) handleGetData(conn Conn) {
	ctx, cancel := c.storeCtx()
	defer cancel()
	reminders, err := c.notices.ListReminders(ctx, reminderHistory)
	if err != nil {
		c.logger.Error("reminder history failed", "error", err)
		return
	}
	deck, err := c.notices.LatestSlideDeck(ctx)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		c.logger.Error("slide deck lookup failed", "error", err)
		return
	}
	c.bcast.SendTo(conn, EvLoadData, LoadData{Reminders: reminders, Deck: deck})
}

func (c *Coordinator) handleRegistrationCheck(conn Conn) {
	ctx, cancel := c.storeCtx()
	defer cancel()
	status, err := c.reg.Status(ctx)
	if err != nil {
		c.logger.Error("registration status failed", "error", err)
		return
	}
	c.bcast.SendTo(conn, EvRegStatus, status)
}

func (c *Coordinator) handleSetRegLimit(data json.RawMessage) {
	var change LimitChange
	if err := json.Unmarshal(data, &change); err != nil || change.Limit <= 0 {
		c.logger.Warn("registration limit change rejected", "error", err)
		return
	}
	ctx, cancel := c.storeCtx()
	defer cancel()
	if _, err := c.settings.SetRegistrationLimit(ctx, change.Limit); err != nil {
		c.logger.Error("registration limit change failed", "error", err)
		return
	}
	c.reg.Recheck(ctx)
}

func (c *Coordinator) handleSetRegOpenTime(data json.RawMessage) {
	var change OpenTime
	if err := json.Unmarshal(data, &change); err != nil {
		c.logger.Warn("registration open time rejected", "error", err)
		return
	}
	ctx, cancel := c.storeCtx()
	defer cancel()
	if _, err := c.settings.SetRegistrationOpenTime(ctx, change.Time); err != nil {
		c.logger.Error("registration open time change failed", "error", err)
		return
	}
	c.reg.Recheck(ctx)
}

func (c *Coordinator) handleRegistrationToggle(open bool) {
	ctx, cancel := c.storeCtx()
	defer cancel()
	var err error
	if open {
		_, err = c.settings.ForceOpenRegistration(ctx)
	} else {
		_, err = c.settings.ForceCloseRegistration(ctx)
	}
	if err != nil {
		c.logger.Error("registration toggle failed", "open", open, "error", err)
		return
	}
	c.reg.Recheck(ctx)
}

func (c *Coordinator) handleDomainWindow(open bool) {
	ctx, cancel := c.storeCtx()
	defer cancel()
	if _, err := c.settings.SetDomainWindow(ctx, open); err != nil {
		c.logger.Error("domain window toggle failed", "open", open, "error", err)
		return
	}
	c.logger.Info("domain selection window changed", "open", open)
	c.bcast.DomainWindow(open)
}

func (c *Coordinator) handleOpenTime(data json.RawMessage,
	set func(context.Context, *time.Time) (domain.ServerSettings, error),
	announce func(*time.Time)) {
	var change OpenTime
	if err := json.Unmarshal(data, &change); err != nil {
		c.logger.Warn("open time change rejected", "error", err)
		return
	}
	ctx, cancel := c.storeCtx()
	defer cancel()
	if _, err := set(ctx, change.Time); err != nil {
		c.logger.Error("open time change failed", "error", err)
		return
	}
	announce(change.Time)
}

func (c *Coordinator) handleReviewToggle(data json.RawMessage,
	set func(context.Context, bool) (domain.ServerSettings, error)) {
	var change FlagChange
	if err := json.Unmarshal(data, &change); err != nil {
		c.logger.Warn("review toggle rejected", "error", err)
		return
	}
	ctx, cancel := c.storeCtx()
	defer cancel()
	updated, err := set(ctx, change.Open)
	if err != nil {
		c.logger.Error("review toggle failed", "error", err)
		return
	}
	c.bcast.ReviewStatus(updated.FirstReviewOpen, updated.SecondReviewOpen)
}

func (c *Coordinator) handleReminder(data json.RawMessage) {
	var input ReminderInput
	if err := json.Unmarshal(data, &input); err != nil || strings.TrimSpace(input.Message) == "" {
		c.logger.Warn("reminder rejected", "error", err)
		return
	}
	reminder := &domain.Reminder{
		ID:        uuid.NewString(),
		Message:   strings.TrimSpace(input.Message),
		CreatedAt: time.Now().UTC(),
	}
	ctx, cancel := c.storeCtx()
	defer cancel()
	if err := c.notices.InsertReminder(ctx, reminder); err != nil {
		c.logger.Error("reminder save failed", "error", err)
		return
	}
	// The newest reminder doubles as the banner shown on reconnect.
	if _, err := c.settings.SetLatestEventUpdate(ctx, reminder.Message); err != nil {
		c.logger.Warn("banner update failed", "error", err)
	}
	c.bcast.Reminder(reminder)
}

func (c *Coordinator) handleDeck(data json.RawMessage) {
	var input DeckInput
	if err := json.Unmarshal(data, &input); err != nil || input.FileURL == "" {
		c.logger.Warn("slide deck rejected", "error", err)
		return
	}
	deck := &domain.SlideDeck{
		ID:         uuid.NewString(),
		FileName:   input.FileName,
		FileURL:    input.FileURL,
		UploadedAt: time.Now().UTC(),
	}
	ctx, cancel := c.storeCtx()
	defer cancel()
	if err := c.notices.InsertSlideDeck(ctx, deck); err != nil {
		c.logger.Error("slide deck save failed", "error", err)
		return
	}
	c.bcast.SlideDeck(deck)
}

// AnnouncePresence pushes the session count and the per-team login list, for
// session changes made outside the connection loop such as the admin bulk
// clear.
func (c *Coordinator) AnnouncePresence() {
	c.announcePresence()
}

// announcePresence pushes the session count and the per-team login list to
// everyone after any session change.
func (c *Coordinator) announcePresence() {
	c.bcast.SessionCount(c.registry.Count())
	c.bcast.LoginStatus(c.loginStatusList())
}

func (c *Coordinator) loginStatusList() []TeamLoginStatus {
	ctx, cancel := c.storeCtx()
	defer cancel()
	teams, err := c.teams.ListTeams(ctx, 0, 0)
	if err != nil {
		c.logger.Error("login status list failed", "error", err)
		return nil
	}
	list := make([]TeamLoginStatus, 0, len(teams))
	for _, t := range teams {
		list = append(list, TeamLoginStatus{
			TeamID:   t.ID,
			TeamName: t.TeamName,
			LoggedIn: c.registry.Holds(t.ID),
		})
	}
	return list
}
