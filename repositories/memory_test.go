package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/lan-tournament/models"
)

func TestMemoryStoreRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.Games().Create(ctx, &models.Game{Name: "Quake", GroupSize: 1}); err != nil {
			return err
		}
		if _, err := tx.Rankings().AddPoints(ctx, 1, 1, 10); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		games, err := tx.Games().List(ctx)
		require.NoError(t, err)
		assert.Empty(t, games)

		_, err = tx.Rankings().Get(ctx, 1, 1)
		assert.ErrorIs(t, err, ErrRankingNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStoreIsolatesReturnedValues(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	pool := &models.Pool{EventID: 1, GameID: 1, Name: "Pool 1"}
	pool.AddMember(models.UserParticipant(1))
	require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Pools().Create(ctx, pool)
	}))

	pool.Members[0].Rank = 5

	require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		got, err := tx.Pools().GetByID(ctx, pool.ID)
		require.NoError(t, err)
		assert.Zero(t, got.Members[0].Rank, "callers must not alias stored state")
		return nil
	}))
}

func TestMemoryMatchesFinishOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	match := &models.Match{EventID: 1, GameID: 1, Kind: models.KindUser, Side1ID: 1, Side2ID: 2, State: models.MatchAccepted}

	require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Matches().Create(ctx, match)
	}))

	match.State = models.MatchFinished
	require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Matches().Finish(ctx, match)
	}))
	err := store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Matches().Finish(ctx, match)
	})
	assert.ErrorIs(t, err, ErrMatchAlreadyFinished)
}

func TestMemoryRegistrationsUnique(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	register := func() error {
		return store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
			return tx.Registrations().Create(ctx, &models.Registration{EventID: 1, GameID: 1, Participant: models.UserParticipant(3)})
		})
	}
	require.NoError(t, register())
	assert.ErrorIs(t, register(), ErrRegistrationConflict)
}

func TestMemoryDirectory(t *testing.T) {
	ctx := context.Background()
	dir := NewMemoryDirectory()
	dir.AddUser(models.User{ID: 1, Name: "Fragmaster"})
	members := []int{1, 2}
	dir.AddGroup(models.Group{ID: 10, Name: "Clan", MemberIDs: members})
	members[0] = 99

	u, err := dir.FindUserByName(ctx, "fragmaster")
	require.NoError(t, err)
	assert.Equal(t, 1, u.ID)

	g, err := dir.GetGroup(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, g.MemberIDs)

	_, err = dir.GetUser(ctx, 2)
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = dir.GetGroup(ctx, 11)
	assert.ErrorIs(t, err, ErrGroupNotFound)
}
