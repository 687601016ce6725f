package models

import "time"

type Game struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	PoolEnabled bool      `json:"pool_enabled"`
	GroupMode   bool      `json:"group_mode"`
	MassMode    bool      `json:"mass_mode"`
	GroupSize   int       `json:"group_size"`
	PointsWin   int       `json:"points_win"`
	PointsLoss  int       `json:"points_loss"`
	CreatedAt   time.Time `json:"created_at"`
}

// ParticipantKind is the only kind of participant the game accepts.
func (g *Game) ParticipantKind() ParticipantKind {
	if g.GroupMode {
		return KindGroup
	}
	return KindUser
}

type Registration struct {
	ID          int         `json:"id"`
	EventID     int         `json:"event_id"`
	GameID      int         `json:"game_id"`
	Participant Participant `json:"participant"`
	SortKey     int64       `json:"-"`
	CreatedAt   time.Time   `json:"created_at"`
}
