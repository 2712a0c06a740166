package domain

import "time"

// ServerSettings is the singleton configuration record read by every gating
// decision and mutated only through administrative actions.
type ServerSettings struct {
	RegistrationLimit    int        `json:"registrationLimit"`
	RegistrationOpenTime *time.Time `json:"registrationOpenTime"`
	ForceClosed          bool       `json:"isForcedClosed"`
	DomainWindowOpen     bool       `json:"domainStat"`
	GameOpenTime         *time.Time `json:"gameOpenTime"`
	PuzzleOpenTime       *time.Time `json:"puzzleOpenTime"`
	StopTheBarOpenTime   *time.Time `json:"stopTheBarOpenTime"`
	FirstReviewOpen      bool       `json:"isFirstReviewOpen"`
	SecondReviewOpen     bool       `json:"isSecondReviewOpen"`
	LatestEventUpdate    string     `json:"latestEventUpdate"`
}

// DefaultServerSettings returns the record created on first boot.
func DefaultServerSettings(registrationLimit int) ServerSettings {
	return ServerSettings{RegistrationLimit: registrationLimit}
}

// RegistrationStatus is the derived admission state broadcast to observers.
type RegistrationStatus struct {
	IsClosed bool       `json:"isClosed"`
	Count    int        `json:"count"`
	Limit    int        `json:"limit"`
	OpenTime *time.Time `json:"openTime"`
}
