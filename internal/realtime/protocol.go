package realtime

import (
	"encoding/json"
	"time"

	"github.com/Harsha29-kns/hackforge-backend/internal/domain"
)

// Inbound event kinds.
const (
	EvTeamLogin          = "team:login"
	EvTeamLogout         = "team:logout"
	EvDomainSelected     = "domainSelected"
	EvGetDomains         = "client:getDomains"
	EvGetData            = "client:getData"
	EvGetGameStatus      = "getGameStatus"
	EvDomainStatQuery    = "domainStat"
	EvCheckRegistration  = "check"
	EvJudgeReviewStatus  = "judge:getReviewStatus"
	EvAdminSessions      = "admin:getActiveSessions"
	EvAdminForceLogout   = "admin:forceLogout"
	EvAdminSetRegLimit   = "admin:setRegLimit"
	EvAdminSetRegOpen    = "admin:setRegOpenTime"
	EvAdminForceClose    = "admin:forceCloseReg"
	EvAdminForceOpen     = "admin:forceOpenReg"
	EvAdminOpenDomains   = "domainOpen"
	EvAdminCloseDomains  = "admin:closeDomains"
	EvAdminSetGameTime   = "admin:setGameOpenTime"
	EvAdminSetPuzzleTime = "admin:setPuzzleOpenTime"
	EvAdminSetBarTime    = "admin:setStopTheBarTime"
	EvAdminFirstReview   = "admin:setFirstReviewState"
	EvAdminSecondReview  = "admin:setSecondReviewState"
	EvAdminSendReminder  = "admin:sendReminder"
	EvAdminSendDeck      = "admin:sendPPT"
)

// Outbound event kinds.
const (
	EvLoginSuccess    = "login:success"
	EvLoginError      = "login:error"
	EvForceLogout     = "forceLogout"
	EvDomainData      = "domaindata"
	EvDomainsUpdated  = "domains:updated"
	EvDomainStat      = "domainStat"
	EvRegStatus       = "registrationStatus"
	EvReviewStatus    = "reviewStatusUpdate"
	EvSessionsUpdate  = "admin:activeSessionsUpdate"
	EvLoginStatusList = "admin:teamLoginStatus"
	EvGameStatus      = "gameStatusUpdate"
	EvPuzzleStatus    = "puzzleStatusUpdate"
	EvBarStatus       = "stopTheBarStatusUpdate"
	EvVerifiedCount   = "updateTeamCount"
	EvTeamUpdated     = "team"
	EvReminder        = "admin:sendReminder"
	EvReceiveDeck     = "client:receivePPT"
	EvLoadData        = "server:loadData"
)

// Envelope is the wire frame: an event kind plus its typed payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode frames an event with its payload.
func Encode(event string, data any) ([]byte, error) {
	env := Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

// TeamRef addresses a team in login, logout and force-logout requests.
type TeamRef struct {
	TeamID string `json:"teamId"`
}

// DomainSelect is a slot claim request.
type DomainSelect struct {
	TeamID string `json:"teamId"`
	Domain string `json:"domain"`
}

// ErrorReply is the structured error payload for a failed request.
type ErrorReply struct {
	Message string `json:"message"`
}

// DomainSelectReply answers a slot claim.
type DomainSelectReply struct {
	Success bool               `json:"success,omitempty"`
	Domain  *domain.DomainView `json:"domain,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// SessionCount reports the number of active team sessions.
type SessionCount struct {
	Count int `json:"count"`
}

// TeamLoginStatus is one row of the per-team login status list.
type TeamLoginStatus struct {
	TeamID   string `json:"teamId"`
	TeamName string `json:"teamname"`
	LoggedIn bool   `json:"loggedIn"`
}

// ReviewStatus mirrors the review-round open flags.
type ReviewStatus struct {
	FirstReviewOpen  bool `json:"isFirstReviewOpen"`
	SecondReviewOpen bool `json:"isSecondReviewOpen"`
}

// OpenTime carries a schedule change for a mini game.
type OpenTime struct {
	Time *time.Time `json:"time"`
}

// LimitChange carries a registration-limit change.
type LimitChange struct {
	Limit int `json:"limit"`
}

// FlagChange carries a boolean toggle.
type FlagChange struct {
	Open bool `json:"open"`
}

// ReminderInput carries an admin notice.
type ReminderInput struct {
	Message string `json:"message"`
}

// DeckInput carries a slide-deck upload notification.
type DeckInput struct {
	FileName string `json:"fileName"`
	FileURL  string `json:"fileUrl"`
}

// LoadData is the reconnect snapshot: recent notices plus the latest deck.
type LoadData struct {
	Reminders []domain.Reminder `json:"reminders"`
	Deck      *domain.SlideDeck `json:"ppt"`
}
