package repositories_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/lan-tournament/db"
	"github.com/Dosada05/lan-tournament/models"
	"github.com/Dosada05/lan-tournament/repositories"
)

// openTestStore needs a disposable database in TEST_DATABASE_URL; the
// tables are truncated before every test.
func openTestStore(t *testing.T) *repositories.PostgresStore {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}
	ctx := context.Background()
	conn, err := db.Connect(ctx, dsn, db.PoolOptions{MaxOpenConns: 4})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, db.Migrate(ctx, conn, slog.New(slog.NewTextHandler(io.Discard, nil))))
	_, err = conn.ExecContext(ctx, `TRUNCATE games, rankings, ranking_snapshots, awards, timetrial_maps RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return repositories.NewPostgresStore(conn)
}

func TestPostgresStoreRollsBack(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		if err := tx.Games().Create(ctx, &models.Game{Name: "Quake", GroupSize: 1}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		games, err := tx.Games().List(ctx)
		require.NoError(t, err)
		assert.Empty(t, games)
		return nil
	}))
}

func TestPostgresRegistrationsAndRankings(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	game := &models.Game{Name: "Quake", PoolEnabled: true, GroupSize: 1, PointsWin: 10, PointsLoss: 2}
	require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		return tx.Games().Create(ctx, game)
	}))
	require.NotZero(t, game.ID)

	register := func() error {
		return store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
			return tx.Registrations().Create(ctx, &models.Registration{EventID: 1, GameID: game.ID, Participant: models.UserParticipant(3)})
		})
	}
	require.NoError(t, register())
	assert.ErrorIs(t, register(), repositories.ErrRegistrationConflict)

	require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		if _, err := tx.Rankings().AddPoints(ctx, 1, 3, 10); err != nil {
			return err
		}
		total, err := tx.Rankings().AddPoints(ctx, 1, 3, 5)
		require.NoError(t, err)
		assert.Equal(t, 15, total)
		return nil
	}))
}

func TestPostgresMatchesFinishOnce(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	game := &models.Game{Name: "UT", PoolEnabled: true, GroupSize: 1}
	match := &models.Match{EventID: 1, Kind: models.KindUser, Side1ID: 1, Side2ID: 2, State: models.MatchAccepted}
	require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		if err := tx.Games().Create(ctx, game); err != nil {
			return err
		}
		match.GameID = game.ID
		return tx.Matches().Create(ctx, match)
	}))

	match.State = models.MatchFinished
	require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		return tx.Matches().Finish(ctx, match)
	}))
	err := store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		return tx.Matches().Finish(ctx, match)
	})
	assert.ErrorIs(t, err, repositories.ErrMatchAlreadyFinished)
}
