package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/lan-tournament/models"
)

func TestRegisterTwiceConflicts(t *testing.T) {
	f := newFixture(t)
	game := f.ladderGame(t)

	reg, err := f.regs.Register(f.ctx, testEvent, game.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, game.ID, reg.GameID)

	_, err = f.regs.Register(f.ctx, testEvent, game.ID, alice)
	assert.ErrorIs(t, err, ErrConflict)

	ok, err := f.regs.IsRegistered(f.ctx, testEvent, game.ID, alice)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.regs.Register(f.ctx, 2, game.ID, alice)
	assert.NoError(t, err, "registrations are per event")
}

func TestUnregister(t *testing.T) {
	f := newFixture(t)
	game := f.ladderGame(t)

	err := f.regs.Unregister(f.ctx, testEvent, game.ID, bob)
	assert.ErrorIs(t, err, ErrNotFound)

	f.register(t, game.ID, bob)
	require.NoError(t, f.regs.Unregister(f.ctx, testEvent, game.ID, bob))

	ok, err := f.regs.IsRegistered(f.ctx, testEvent, game.ID, bob)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, f.notifier.types(), MsgRegistrationsUpdated)
}

func TestRegisterEligibility(t *testing.T) {
	f := newFixture(t)
	ladder := f.ladderGame(t)
	closed := f.createGame(t, CreateGameInput{Name: "Chess", PointsWin: 3, PointsLoss: 0})
	teams := f.createGame(t, CreateGameInput{Name: "Dota", PoolEnabled: true, GroupMode: true, GroupSize: 3, PointsWin: 10})

	tests := []struct {
		name    string
		gameID  int
		p       models.Participant
		wantErr error
	}{
		{name: "not pool enabled", gameID: closed.ID, p: alice, wantErr: ErrInvalidState},
		{name: "group in a solo game", gameID: ladder.ID, p: models.GroupParticipant(100, nil), wantErr: ErrInvalidState},
		{name: "user in a group game", gameID: teams.ID, p: alice, wantErr: ErrInvalidState},
		{name: "group too small", gameID: teams.ID, p: models.GroupParticipant(102, nil), wantErr: ErrInvalidState},
		{name: "unknown user", gameID: ladder.ID, p: models.UserParticipant(404), wantErr: ErrNotFound},
		{name: "unknown group", gameID: teams.ID, p: models.GroupParticipant(404, nil), wantErr: ErrNotFound},
		{name: "unknown game", gameID: 999, p: alice, wantErr: ErrNotFound},
		{name: "invalid participant", gameID: ladder.ID, p: models.Participant{Kind: models.KindUser}, wantErr: ErrValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.regs.Register(f.ctx, testEvent, tt.gameID, tt.p)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRegisterGroupResolvesMembers(t *testing.T) {
	f := newFixture(t)
	teams := f.createGame(t, CreateGameInput{Name: "Dota", PoolEnabled: true, GroupMode: true, GroupSize: 3, PointsWin: 10})

	reg, err := f.regs.Register(f.ctx, testEvent, teams.ID, models.GroupParticipant(100, nil))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, reg.Participant.MemberIDs)

	regs, err := f.regs.ListRegistrations(f.ctx, testEvent, teams.ID)
	require.NoError(t, err)
	require.Len(t, regs, 1)

	_, err = f.regs.ListRegistrations(f.ctx, testEvent, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}
