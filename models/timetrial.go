package models

import "time"

type TimeTrialMap struct {
	ID        int       `json:"id"`
	EventID   int       `json:"event_id"`
	Name      string    `json:"name"`
	Processed bool      `json:"processed"`
	CreatedAt time.Time `json:"created_at"`
}

type TimeTrialRecord struct {
	ID         int       `json:"id"`
	MapID      int       `json:"map_id"`
	UserID     int       `json:"user_id"`
	RecordedAt time.Time `json:"recorded_at"`
	Millis     int       `json:"millis"`
}

type SubmitOutcome string

const (
	RecordAdded         SubmitOutcome = "added"
	RecordImproved      SubmitOutcome = "improved"
	RecordNoImprovement SubmitOutcome = "no_improvement"
)
