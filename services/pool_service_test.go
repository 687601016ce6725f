package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/lan-tournament/models"
)

func (f *fixture) massGame(t *testing.T) *models.Game {
	return f.createGame(t, CreateGameInput{Name: "Trackmania", PoolEnabled: true, MassMode: true})
}

func TestCreatePools(t *testing.T) {
	f := newFixture(t)
	game := f.massGame(t)
	for id := 1; id <= 7; id++ {
		f.register(t, game.ID, models.UserParticipant(id))
	}

	pools, err := f.pools.CreatePools(f.ctx, testEvent, game.ID, 3)
	require.NoError(t, err)
	require.Len(t, pools, 3)

	seen := map[int]bool{}
	for _, p := range pools {
		assert.Equal(t, 3, p.Capacity)
		require.NotNil(t, p.Host)
		assert.True(t, p.Host.Same(p.Members[0].Participant))
		for _, m := range p.Members {
			assert.False(t, seen[m.Participant.ID], "user %d dealt twice", m.Participant.ID)
			seen[m.Participant.ID] = true
		}
	}
	assert.Len(t, seen, 7)

	regs, err := f.regs.ListRegistrations(f.ctx, testEvent, game.ID)
	require.NoError(t, err)
	assert.Empty(t, regs, "registrations are consumed by the first round")

	state, err := f.pools.BracketState(f.ctx, testEvent, game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BracketPoolsOpen, state)

	_, err = f.pools.CreatePools(f.ctx, testEvent, game.ID, 2)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = f.pools.ProcessFinalPool(f.ctx, testEvent, game.ID)
	assert.ErrorIs(t, err, ErrInvalidState, "three pools are open")
}

func TestCreatePoolsRejects(t *testing.T) {
	f := newFixture(t)
	ladder := f.ladderGame(t)
	mass := f.massGame(t)
	f.register(t, mass.ID, alice, bob)

	_, err := f.pools.CreatePools(f.ctx, testEvent, ladder.ID, 1)
	assert.ErrorIs(t, err, ErrInvalidState, "not a mass game")

	_, err = f.pools.CreatePools(f.ctx, testEvent, mass.ID, 3)
	assert.ErrorIs(t, err, ErrInvalidState, "more pools than participants")

	_, err = f.pools.CreatePools(f.ctx, testEvent, mass.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidState)

	ok, err := f.regs.IsRegistered(f.ctx, testEvent, mass.ID, alice)
	require.NoError(t, err)
	assert.True(t, ok, "failed rounds leave registrations untouched")

	_, err = f.pools.CreatePools(f.ctx, testEvent, 999, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProcessPools(t *testing.T) {
	f := newFixture(t)
	game := f.massGame(t)
	round := f.seedPool(t, game.ID, "Pool 1", rankedUsers(
		[]int{1, 2, 3, 4, 5, 6, 7, 8},
		[]int{1, 2, 3, 4, 5, 6, 7, 8},
	))
	spare := f.seedPool(t, game.ID, "Pool 2", nil)

	next, err := f.pools.ProcessPools(f.ctx, testEvent, game.ID, 2, 4)
	require.NoError(t, err)
	require.Len(t, next, 2)

	advanced := map[int]bool{}
	for _, p := range next {
		assert.ElementsMatch(t, []int{round.ID, spare.ID}, p.ParentIDs)
		for _, m := range p.Members {
			advanced[m.Participant.ID] = true
			assert.Zero(t, m.Rank)
		}
	}
	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true, 4: true}, advanced)

	for user := 1; user <= 4; user++ {
		assert.Zero(t, f.points(t, user), "user %d advanced", user)
	}
	for user := 5; user <= 8; user++ {
		assert.Equal(t, 3, f.points(t, user), "user %d eliminated", user)
	}

	old, err := f.pools.GetPool(f.ctx, round.ID)
	require.NoError(t, err)
	assert.True(t, old.Played)
	assert.Len(t, old.ChildIDs, 2)

	awards, err := f.rankings.Awards(f.ctx, testEvent)
	require.NoError(t, err)
	require.Len(t, awards, 4)
	assert.Equal(t, "Participation Trackmania", awards[0].Description)
}

func TestProcessPoolsNeedsTwoOpenPools(t *testing.T) {
	f := newFixture(t)
	game := f.massGame(t)

	_, err := f.pools.ProcessPools(f.ctx, testEvent, game.ID, 1, 2)
	assert.ErrorIs(t, err, ErrNoOpenPools)

	f.seedPool(t, game.ID, "Pool 1", rankedUsers([]int{1, 2}, []int{1, 2}))
	_, err = f.pools.ProcessPools(f.ctx, testEvent, game.ID, 1, 2)
	assert.ErrorIs(t, err, ErrUseFinalPool)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestProcessPoolsFailureChangesNothing(t *testing.T) {
	f := newFixture(t)
	game := f.massGame(t)
	f.seedPool(t, game.ID, "Pool 1", rankedUsers([]int{1, 2}, []int{1, 0}))
	f.seedPool(t, game.ID, "Pool 2", rankedUsers([]int{3, 4}, []int{0, 0}))

	_, err := f.pools.ProcessPools(f.ctx, testEvent, game.ID, 2, 1)
	assert.ErrorIs(t, err, ErrInvalidState, "one advancing participant cannot fill two pools")

	for user := 1; user <= 4; user++ {
		assert.Zero(t, f.points(t, user))
	}
	state, err := f.pools.BracketState(f.ctx, testEvent, game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BracketPoolsOpen, state)
}

func TestProcessFinalPool(t *testing.T) {
	f := newFixture(t)
	game := f.massGame(t)
	final := f.seedPool(t, game.ID, "Final", rankedUsers(
		[]int{1, 2, 3, 4, 5, 6, 7, 8},
		[]int{1, 2, 3, 4, 5, 6, 7, 0},
	))

	pool, err := f.pools.ProcessFinalPool(f.ctx, testEvent, game.ID)
	require.NoError(t, err)
	assert.Equal(t, final.ID, pool.ID)
	assert.True(t, pool.Played)

	want := map[int]int{1: 15, 2: 12, 3: 10, 4: 8, 5: 7, 6: 6, 7: 5, 8: 3}
	for user, points := range want {
		assert.Equal(t, points, f.points(t, user), "user %d", user)
	}

	state, err := f.pools.BracketState(f.ctx, testEvent, game.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BracketClosed, state)

	_, err = f.pools.ProcessFinalPool(f.ctx, testEvent, game.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestProcessFinalPoolCreditsGroupMembers(t *testing.T) {
	f := newFixture(t)
	game := f.createGame(t, CreateGameInput{Name: "Relay", PoolEnabled: true, MassMode: true, GroupMode: true, GroupSize: 1})
	f.seedPool(t, game.ID, "Final", []models.PoolMember{
		{Participant: models.GroupParticipant(100, nil), Rank: 1},
		{Participant: models.GroupParticipant(101, []int{4, 5, 6}), Rank: 2},
	})

	_, err := f.pools.ProcessFinalPool(f.ctx, testEvent, game.ID)
	require.NoError(t, err)

	for user, points := range map[int]int{1: 15, 2: 15, 3: 15, 4: 12, 5: 12, 6: 12} {
		assert.Equal(t, points, f.points(t, user), "user %d", user)
	}
}

func TestSetRank(t *testing.T) {
	f := newFixture(t)
	game := f.massGame(t)
	pool := f.seedPool(t, game.ID, "Pool 1", rankedUsers([]int{1, 2, 3}, []int{0, 0, 0}))

	updated, err := f.pools.SetRank(f.ctx, pool.ID, bob, 1)
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = f.pools.SetRank(f.ctx, pool.ID, models.UserParticipant(9), 1)
	require.NoError(t, err)
	assert.False(t, updated, "non-members are not updated")

	_, err = f.pools.SetRank(f.ctx, pool.ID, alice, 4)
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = f.pools.SetRank(f.ctx, 999, alice, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := f.pools.GetPool(f.ctx, pool.ID)
	require.NoError(t, err)
	member, ok := got.Member(bob)
	require.True(t, ok)
	assert.Equal(t, 1, member.Rank)
}

func TestSetRanksIsAtomic(t *testing.T) {
	f := newFixture(t)
	game := f.massGame(t)
	pool := f.seedPool(t, game.ID, "Pool 1", rankedUsers([]int{1, 2, 3}, []int{0, 0, 0}))

	err := f.pools.SetRanks(f.ctx, pool.ID, []models.PoolMember{
		{Participant: alice, Rank: 1},
		{Participant: models.UserParticipant(9), Rank: 2},
	})
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := f.pools.GetPool(f.ctx, pool.ID)
	require.NoError(t, err)
	member, _ := got.Member(alice)
	assert.Zero(t, member.Rank, "a failed batch changes nothing")

	require.NoError(t, f.pools.SetRanks(f.ctx, pool.ID, []models.PoolMember{
		{Participant: alice, Rank: 2},
		{Participant: bob, Rank: 1},
		{Participant: carol, Rank: 3},
	}))
	got, err = f.pools.GetPool(f.ctx, pool.ID)
	require.NoError(t, err)
	for _, m := range got.Members {
		assert.NotZero(t, m.Rank)
	}
}

func TestSetRankOnPlayedPool(t *testing.T) {
	f := newFixture(t)
	game := f.massGame(t)
	pool := f.seedPool(t, game.ID, "Final", rankedUsers([]int{1, 2}, []int{1, 2}))
	_, err := f.pools.ProcessFinalPool(f.ctx, testEvent, game.ID)
	require.NoError(t, err)

	_, err = f.pools.SetRank(f.ctx, pool.ID, alice, 2)
	assert.ErrorIs(t, err, ErrInvalidState)
}
