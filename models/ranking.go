package models

import "time"

// Ranking is the point total of one user in one event.
type Ranking struct {
	EventID   int       `json:"event_id"`
	UserID    int       `json:"user_id"`
	Points    int       `json:"points"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SnapshotEntry struct {
	UserID int `json:"user_id"`
	Points int `json:"points"`
	Rank   int `json:"rank"`
}

type Snapshot struct {
	ID      int             `json:"id"`
	EventID int             `json:"event_id"`
	TakenAt time.Time       `json:"taken_at"`
	Entries []SnapshotEntry `json:"entries"`
}

// RankOf returns the rank stored for userID, 0 when absent.
func (s *Snapshot) RankOf(userID int) int {
	for _, e := range s.Entries {
		if e.UserID == userID {
			return e.Rank
		}
	}
	return 0
}

// Award is a fixed amount of points granted outside of a match.
type Award struct {
	ID          int       `json:"id"`
	EventID     int       `json:"event_id"`
	UserID      int       `json:"user_id"`
	Description string    `json:"description"`
	Points      int       `json:"points"`
	CreatedAt   time.Time `json:"created_at"`
}

type LeaderboardEntry struct {
	UserID   int    `json:"user_id"`
	Name     string `json:"name,omitempty"`
	Points   int    `json:"points"`
	Rank     int    `json:"rank"`
	Movement int    `json:"movement"`
}
