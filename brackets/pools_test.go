package brackets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/lan-tournament/models"
)

func users(ids ...int) []models.Participant {
	out := make([]models.Participant, len(ids))
	for i, id := range ids {
		out[i] = models.UserParticipant(id)
	}
	return out
}

func TestFillPools(t *testing.T) {
	seeds, err := FillPools(users(1, 2, 3, 4, 5, 6, 7), 3)
	require.NoError(t, err)
	require.Len(t, seeds, 3)

	assert.Equal(t, "Pool 1", seeds[0].Name)
	assert.Equal(t, "Pool 3", seeds[2].Name)
	for _, s := range seeds {
		assert.Equal(t, 3, s.Capacity)
	}
	assert.Equal(t, users(1, 4, 7), seeds[0].Members)
	assert.Equal(t, users(2, 5), seeds[1].Members)
	assert.Equal(t, users(3, 6), seeds[2].Members)
}

func TestFillPoolsErrors(t *testing.T) {
	_, err := FillPools(users(1, 2), 0)
	assert.ErrorIs(t, err, ErrInvalidPoolCount)

	_, err = FillPools(users(1, 2), 3)
	assert.ErrorIs(t, err, ErrNotEnoughForPools)
}

func TestPayouts(t *testing.T) {
	final := map[int]int{0: 3, 1: 15, 2: 12, 3: 10, 4: 8, 5: 7, 6: 6, 7: 5, 8: 4, 9: 3, 20: 3}
	for rank, want := range final {
		assert.Equal(t, want, FinalPoolPoints(rank), "final rank %d", rank)
	}

	trial := map[int]int{1: 25, 2: 18, 3: 15, 4: 12, 5: 10, 6: 8, 7: 6, 8: 4, 9: 3, 10: 2, 11: 1, 50: 1}
	for rank, want := range trial {
		assert.Equal(t, want, TimeTrialPoints(rank), "time trial rank %d", rank)
	}
}

func TestShuffledParticipants(t *testing.T) {
	regs := []*models.Registration{
		{ID: 1, Participant: models.UserParticipant(10), SortKey: 900},
		{ID: 2, Participant: models.UserParticipant(20), SortKey: 100},
		{ID: 3, Participant: models.UserParticipant(30), SortKey: 500},
		{ID: 4, Participant: models.UserParticipant(40), SortKey: 500},
	}
	assert.Equal(t, users(20, 30, 40, 10), ShuffledParticipants(regs))
	assert.Equal(t, 1, regs[0].ID, "input order must be preserved")
}

func TestAdvancing(t *testing.T) {
	pools := []*models.Pool{
		{Members: []models.PoolMember{
			{Participant: models.UserParticipant(1), Rank: 1},
			{Participant: models.UserParticipant(2), Rank: 3},
			{Participant: models.UserParticipant(3), Rank: 0},
		}},
		{Members: []models.PoolMember{
			{Participant: models.UserParticipant(4), Rank: 2},
		}},
	}
	advance, eliminated := Advancing(pools, 2)
	assert.Equal(t, users(1, 4), advance)
	assert.Equal(t, users(2, 3), eliminated)
}

func TestState(t *testing.T) {
	assert.Equal(t, models.BracketNoPools, State(nil))
	assert.Equal(t, models.BracketPoolsOpen, State([]*models.Pool{{}, {}, {Played: true}}))
	assert.Equal(t, models.BracketFinalPoolOpen, State([]*models.Pool{{Played: true}, {}}))
	assert.Equal(t, models.BracketClosed, State([]*models.Pool{{Played: true}}))
}
