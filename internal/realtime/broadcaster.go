package realtime

import (
	"time"

	"log/slog"

	"github.com/Harsha29-kns/hackforge-backend/internal/domain"
	"github.com/Harsha29-kns/hackforge-backend/internal/ws"
)

// Broadcaster pushes derived state to every connected observer whenever an
// underlying fact changes. It is a dumb fan-out: no per-observer filtering,
// no delivery guarantee.
type Broadcaster struct {
	hub    *ws.Hub
	logger *slog.Logger
}

// NewBroadcaster constructs a Broadcaster over the hub.
func NewBroadcaster(hub *ws.Hub, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{hub: hub, logger: logger}
}

func (b *Broadcaster) emit(event string, data any) {
	payload, err := Encode(event, data)
	if err != nil {
		b.logger.Warn("broadcast encode failed", "event", event, "error", err)
		return
	}
	b.hub.Broadcast(payload)
}

// SendTo delivers one framed event to a single observer.
func (b *Broadcaster) SendTo(sub ws.Subscriber, event string, data any) {
	payload, err := Encode(event, data)
	if err != nil {
		b.logger.Warn("reply encode failed", "event", event, "error", err)
		return
	}
	if err := sub.Send(payload); err != nil {
		b.logger.Warn("reply send failed", "event", event, "error", err)
	}
}

// SessionCount announces the number of active team sessions.
func (b *Broadcaster) SessionCount(count int) {
	b.emit(EvSessionsUpdate, SessionCount{Count: count})
}

// RegistrationStatus announces the derived admission state.
func (b *Broadcaster) RegistrationStatus(status domain.RegistrationStatus) {
	b.emit(EvRegStatus, status)
}

// DomainData announces the full slot map.
func (b *Broadcaster) DomainData(views []domain.DomainView) {
	b.emit(EvDomainData, views)
}

// DomainsUpdated announces a generic slots-changed signal.
func (b *Broadcaster) DomainsUpdated() {
	b.emit(EvDomainsUpdated, nil)
}

// DomainWindow announces the topic-selection window state.
func (b *Broadcaster) DomainWindow(open bool) {
	b.emit(EvDomainStat, open)
}

// ReviewStatus announces the review-round flags.
func (b *Broadcaster) ReviewStatus(first, second bool) {
	b.emit(EvReviewStatus, ReviewStatus{FirstReviewOpen: first, SecondReviewOpen: second})
}

// GameOpenTime announces the memory game schedule.
func (b *Broadcaster) GameOpenTime(t *time.Time) {
	b.emit(EvGameStatus, t)
}

// PuzzleOpenTime announces the number puzzle schedule.
func (b *Broadcaster) PuzzleOpenTime(t *time.Time) {
	b.emit(EvPuzzleStatus, t)
}

// StopTheBarOpenTime announces the stop-the-bar schedule.
func (b *Broadcaster) StopTheBarOpenTime(t *time.Time) {
	b.emit(EvBarStatus, t)
}

// VerifiedCount announces how many teams passed verification.
func (b *Broadcaster) VerifiedCount(count int) {
	b.emit(EvVerifiedCount, count)
}

// TeamUpdated announces a changed team record.
func (b *Broadcaster) TeamUpdated(team *domain.Team) {
	b.emit(EvTeamUpdated, team)
}

// LoginStatus announces the per-team login status list.
func (b *Broadcaster) LoginStatus(list []TeamLoginStatus) {
	b.emit(EvLoginStatusList, list)
}

// Reminder announces a new admin notice.
func (b *Broadcaster) Reminder(reminder *domain.Reminder) {
	b.emit(EvReminder, reminder)
}

// SlideDeck announces a new presentation template.
func (b *Broadcaster) SlideDeck(deck *domain.SlideDeck) {
	b.emit(EvReceiveDeck, deck)
}
