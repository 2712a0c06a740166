package domain

import "time"

// Reminder is an admin broadcast notice shown to all teams.
type Reminder struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"time"`
}

// SlideDeck is a presentation template pushed to teams by the admin console.
type SlideDeck struct {
	ID         string    `json:"id"`
	FileName   string    `json:"fileName"`
	FileURL    string    `json:"fileUrl"`
	UploadedAt time.Time `json:"uploadedAt"`
}
