package domain

import "time"

// Attendance records presence for one event round.
type Attendance struct {
	Round  int    `json:"round"`
	Status string `json:"status"`
}

// Attendance status values.
const (
	AttendancePresent = "Present"
	AttendanceAbsent  = "Absent"
)

// TeamMember is one participant on a team. The lead is stored as a member
// row flagged with IsLead.
type TeamMember struct {
	TeamID             string       `json:"-"`
	Name               string       `json:"name"`
	RegistrationNumber string       `json:"registrationNumber"`
	Room               string       `json:"room"`
	Year               string       `json:"year"`
	Department         string       `json:"department"`
	Section            string       `json:"section"`
	IsLead             bool         `json:"isLead"`
	Attendance         []Attendance `json:"attendance"`
}

// Issue is a problem report raised by a team during the event.
type Issue struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"-"`
	Text      string    `json:"text"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"timestamp"`
}

// Issue status values.
const (
	IssuePending  = "Pending"
	IssueResolved = "Resolved"
)

// Team is a registered hackathon team.
//
// Domain is nil until the team claims a topic slot and is set exactly once;
// Credential is empty until an admin verifies the team.
type Team struct {
	ID                 string       `json:"id"`
	TeamName           string       `json:"teamname"`
	Email              string       `json:"email"`
	LeadName           string       `json:"name"`
	RegistrationNumber string       `json:"registrationNumber"`
	Verified           bool         `json:"verified"`
	Credential         string       `json:"-"`
	Domain             *string      `json:"domain"`
	Sector             string       `json:"sector"`
	Members            []TeamMember `json:"teamMembers"`
	Issues             []Issue      `json:"issues,omitempty"`

	FirstReviewNotes   string `json:"firstReview,omitempty"`
	SecondReviewNotes  string `json:"secondReview,omitempty"`
	FirstReviewScore   int    `json:"firstReviewScore"`
	SecondReviewScore  int    `json:"secondReviewScore"`
	FinalScore         int    `json:"finalScore"`
	InternalGameScore  int    `json:"internalGameScore"`
	MemoryGameScore    *int   `json:"memoryGameScore"`
	MemoryGamePlayed   bool   `json:"memoryGamePlayed"`
	NumberPuzzleScore  *int   `json:"numberPuzzleScore"`
	NumberPuzzlePlayed bool   `json:"numberPuzzlePlayed"`
	StopTheBarScore    *int   `json:"stopTheBarScore"`
	StopTheBarPlayed   bool   `json:"stopTheBarPlayed"`

	CreatedAt time.Time `json:"createdAt"`
}
