package models

import "time"

type PoolMember struct {
	Participant Participant `json:"participant"`
	Rank        int         `json:"rank"`
}

// Pool is one group of participants in one round of a mass game.
// ParentIDs and ChildIDs form the round DAG and are only changed
// through LinkPools.
type Pool struct {
	ID        int          `json:"id"`
	EventID   int          `json:"event_id"`
	GameID    int          `json:"game_id"`
	Name      string       `json:"name"`
	Played    bool         `json:"played"`
	Host      *Participant `json:"host,omitempty"`
	Capacity  int          `json:"capacity"`
	Members   []PoolMember `json:"members"`
	ParentIDs []int        `json:"parent_ids,omitempty"`
	ChildIDs  []int        `json:"child_ids,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

func (p *Pool) Member(participant Participant) (*PoolMember, bool) {
	for i := range p.Members {
		if p.Members[i].Participant.Same(participant) {
			return &p.Members[i], true
		}
	}
	return nil, false
}

// AddMember appends a participant; the first one becomes the host.
func (p *Pool) AddMember(participant Participant) {
	p.Members = append(p.Members, PoolMember{Participant: participant})
	if p.Host == nil {
		host := participant
		p.Host = &host
	}
}

// SetRank returns false if participant is not a member of the pool.
func (p *Pool) SetRank(participant Participant, rank int) bool {
	m, ok := p.Member(participant)
	if !ok {
		return false
	}
	m.Rank = rank
	return true
}

// LinkPools records that parent fed child, on both pools.
func LinkPools(parent, child *Pool) {
	if !containsInt(parent.ChildIDs, child.ID) {
		parent.ChildIDs = append(parent.ChildIDs, child.ID)
	}
	if !containsInt(child.ParentIDs, parent.ID) {
		child.ParentIDs = append(child.ParentIDs, parent.ID)
	}
}

func containsInt(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
