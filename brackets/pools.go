package brackets

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Dosada05/lan-tournament/models"
)

// ConsolationPoints go to every participant eliminated in a pool round.
const ConsolationPoints = 3

var (
	finalPoolPayout = map[int]int{1: 15, 2: 12, 3: 10, 4: 8, 5: 7, 6: 6, 7: 5, 8: 4}
	timeTrialPayout = map[int]int{1: 25, 2: 18, 3: 15, 4: 12, 5: 10, 6: 8, 7: 6, 8: 4, 9: 3, 10: 2}
)

const (
	finalPoolDefault = 3
	timeTrialDefault = 1
)

var (
	ErrInvalidPoolCount  = errors.New("pool count must be at least 1")
	ErrNotEnoughForPools = errors.New("not enough participants for the requested pool count")
)

// FinalPoolPoints is the payout for a final in-pool rank. Unplaced (0) and
// ranks below 8 get the default.
func FinalPoolPoints(rank int) int {
	if p, ok := finalPoolPayout[rank]; ok {
		return p
	}
	return finalPoolDefault
}

// TimeTrialPoints is the payout for a placement on a time trial map.
func TimeTrialPoints(rank int) int {
	if p, ok := timeTrialPayout[rank]; ok {
		return p
	}
	return timeTrialDefault
}

type PoolSeed struct {
	Name     string
	Capacity int
	Members  []models.Participant
}

// FillPools deals participants round-robin into count pools named
// "Pool 1".."Pool count". The first participant dealt to a pool hosts it.
func FillPools(participants []models.Participant, count int) ([]PoolSeed, error) {
	if count < 1 {
		return nil, ErrInvalidPoolCount
	}
	if len(participants) < count {
		return nil, fmt.Errorf("%w: %d participants, %d pools", ErrNotEnoughForPools, len(participants), count)
	}

	capacity := (len(participants) + count - 1) / count
	seeds := make([]PoolSeed, count)
	for i := range seeds {
		seeds[i] = PoolSeed{
			Name:     fmt.Sprintf("Pool %d", i+1),
			Capacity: capacity,
			Members:  make([]models.Participant, 0, capacity),
		}
	}
	for i, p := range participants {
		seed := &seeds[i%count]
		seed.Members = append(seed.Members, p)
	}
	return seeds, nil
}

// ShuffledParticipants orders registrations by their random sort key and
// returns their participants.
func ShuffledParticipants(regs []*models.Registration) []models.Participant {
	sorted := make([]*models.Registration, len(regs))
	copy(sorted, regs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SortKey != sorted[j].SortKey {
			return sorted[i].SortKey < sorted[j].SortKey
		}
		return sorted[i].ID < sorted[j].ID
	})

	participants := make([]models.Participant, len(sorted))
	for i, reg := range sorted {
		participants[i] = reg.Participant
	}
	return participants
}

// Advancing splits the members of a round into those whose in-pool rank
// is set and within threshold, and everyone else. Order follows pools and
// then membership order.
func Advancing(pools []*models.Pool, threshold int) (advance, eliminated []models.Participant) {
	for _, pool := range pools {
		for _, m := range pool.Members {
			if m.Rank != 0 && m.Rank <= threshold {
				advance = append(advance, m.Participant)
			} else {
				eliminated = append(eliminated, m.Participant)
			}
		}
	}
	return advance, eliminated
}

// State derives the bracket state of a game from all of its pools.
func State(pools []*models.Pool) models.BracketState {
	if len(pools) == 0 {
		return models.BracketNoPools
	}
	open := 0
	for _, p := range pools {
		if !p.Played {
			open++
		}
	}
	switch open {
	case 0:
		return models.BracketClosed
	case 1:
		return models.BracketFinalPoolOpen
	default:
		return models.BracketPoolsOpen
	}
}
