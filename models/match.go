package models

import "time"

type MatchState string

const (
	MatchOpen                 MatchState = "open"
	MatchAccepted             MatchState = "accepted"
	MatchAwaitingConfirmation MatchState = "awaiting_confirmation"
	MatchFinished             MatchState = "finished"
)

// MatchSide identifies one side of a match. SideNone is used for
// "nobody reported yet" and for participants outside the match.
type MatchSide int

const (
	SideNone MatchSide = 0
	Side1    MatchSide = 1
	Side2    MatchSide = 2
)

func (s MatchSide) Other() MatchSide {
	switch s {
	case Side1:
		return Side2
	case Side2:
		return Side1
	default:
		return SideNone
	}
}

// Match is a challenge between two users or two groups of one game.
// Side 1 is always the challenger.
type Match struct {
	ID         int             `json:"id"`
	EventID    int             `json:"event_id"`
	GameID     int             `json:"game_id"`
	Kind       ParticipantKind `json:"kind"`
	Side1ID    int             `json:"side1_id"`
	Side2ID    int             `json:"side2_id"`
	Roster1    []int           `json:"roster1,omitempty"`
	Roster2    []int           `json:"roster2,omitempty"`
	Score1     int             `json:"score1"`
	Score2     int             `json:"score2"`
	State      MatchState      `json:"state"`
	ReportedBy MatchSide       `json:"reported_by"`
	Compute1   int             `json:"compute1"`
	Compute2   int             `json:"compute2"`
	CreatedAt  time.Time       `json:"created_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

func (m *Match) Participant1() Participant {
	return Participant{Kind: m.Kind, ID: m.Side1ID}
}

func (m *Match) Participant2() Participant {
	return Participant{Kind: m.Kind, ID: m.Side2ID}
}

// SideOf returns the side p plays on, or SideNone.
func (m *Match) SideOf(p Participant) MatchSide {
	if p.Kind != m.Kind {
		return SideNone
	}
	switch p.ID {
	case m.Side1ID:
		return Side1
	case m.Side2ID:
		return Side2
	default:
		return SideNone
	}
}

func (m *Match) Roster(side MatchSide) []int {
	if side == Side1 {
		return m.Roster1
	}
	return m.Roster2
}

func (m *Match) SetRoster(side MatchSide, userIDs []int) {
	roster := make([]int, len(userIDs))
	copy(roster, userIDs)
	if side == Side1 {
		m.Roster1 = roster
	} else {
		m.Roster2 = roster
	}
}

func (m *Match) Accepted() bool {
	return m.State != MatchOpen
}

func (m *Match) Finished() bool {
	return m.State == MatchFinished
}

func (m *Match) Confirmed1() bool {
	return m.State == MatchFinished || (m.State == MatchAwaitingConfirmation && m.ReportedBy == Side1)
}

func (m *Match) Confirmed2() bool {
	return m.State == MatchFinished || (m.State == MatchAwaitingConfirmation && m.ReportedBy == Side2)
}

// ApplyReport runs one step of the report/confirm protocol for a match
// that is accepted or awaiting confirmation. It returns true when both
// sides agree on the stored scores; the caller settles and finishes the
// match in that case.
func (m *Match) ApplyReport(reporter MatchSide, score1, score2 int) bool {
	switch {
	case m.State == MatchAccepted:
		m.Score1, m.Score2 = score1, score2
		m.State = MatchAwaitingConfirmation
		m.ReportedBy = reporter
		return false
	case m.State == MatchAwaitingConfirmation && m.ReportedBy != reporter:
		if m.Score1 == score1 && m.Score2 == score2 {
			return true
		}
		m.Score1, m.Score2 = score1, score2
		m.ReportedBy = reporter
		return false
	default:
		m.Score1, m.Score2 = score1, score2
		return false
	}
}

// ResetReport drops a disputed report and returns the match to accepted.
func (m *Match) ResetReport() {
	m.Score1, m.Score2 = 0, 0
	m.State = MatchAccepted
	m.ReportedBy = SideNone
}
