package models

type BracketState string

const (
	BracketNoPools       BracketState = "no_pools"
	BracketPoolsOpen     BracketState = "pools_open"
	BracketFinalPoolOpen BracketState = "final_pool_open"
	BracketClosed        BracketState = "closed"
)

type GameBracket struct {
	Game  *Game        `json:"game"`
	State BracketState `json:"state"`
	Pools []*Pool      `json:"pools"`
}

type EventOverview struct {
	EventID     int                `json:"event_id"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	Brackets    []GameBracket      `json:"brackets"`
	OpenMatches []*Match           `json:"open_matches"`
}
