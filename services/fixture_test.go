package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Dosada05/lan-tournament/models"
	"github.com/Dosada05/lan-tournament/repositories"
)

const testEvent = 1

type published struct {
	EventID int
	Type    string
	Payload interface{}
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []published
}

func (n *recordingNotifier) Publish(eventID int, msgType string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, published{EventID: eventID, Type: msgType, Payload: payload})
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.msgs))
	for i, m := range n.msgs {
		out[i] = m.Type
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fixture wires every service to one in-memory store. Users 1..20 exist as
// "user<id>"; group 100 is {1,2,3}, group 101 is {4,5,6}, group 102 is {7}.
type fixture struct {
	ctx        context.Context
	store      *repositories.MemoryStore
	directory  *repositories.MemoryDirectory
	notifier   *recordingNotifier
	clock      *fakeClock
	rankings   RankingService
	games      GameService
	regs       RegistrationService
	matches    MatchService
	pools      PoolService
	timeTrials TimeTrialService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := discardLogger()

	dir := repositories.NewMemoryDirectory()
	for id := 1; id <= 20; id++ {
		dir.AddUser(models.User{ID: id, Name: fmt.Sprintf("user%d", id), Role: models.RolePlayer})
	}
	dir.AddGroup(models.Group{ID: 100, Name: "Red", MemberIDs: []int{1, 2, 3}})
	dir.AddGroup(models.Group{ID: 101, Name: "Blue", MemberIDs: []int{4, 5, 6}})
	dir.AddGroup(models.Group{ID: 102, Name: "Solo", MemberIDs: []int{7}})

	f := &fixture{
		ctx:       context.Background(),
		store:     repositories.NewMemoryStore(),
		directory: dir,
		notifier:  &recordingNotifier{},
		clock:     &fakeClock{now: time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)},
	}
	f.rankings = NewRankingService(RankingServiceDeps{
		Store: f.store, Directory: dir, Notifier: f.notifier, Logger: logger, Clock: f.clock.Now,
	})
	f.games = NewGameService(f.store, logger)
	f.regs = NewRegistrationService(f.store, dir, f.notifier, logger)
	f.matches = NewMatchService(MatchServiceDeps{
		Store: f.store, Directory: dir, Notifier: f.notifier, Logger: logger, Clock: f.clock.Now,
	})
	f.pools = NewPoolService(PoolServiceDeps{Store: f.store, Directory: dir, Notifier: f.notifier, Logger: logger})
	f.timeTrials = NewTimeTrialService(f.store, dir, f.notifier, nil, logger)
	return f
}

func (f *fixture) createGame(t *testing.T, input CreateGameInput) *models.Game {
	t.Helper()
	game, err := f.games.CreateGame(f.ctx, input)
	require.NoError(t, err)
	return game
}

func (f *fixture) ladderGame(t *testing.T) *models.Game {
	return f.createGame(t, CreateGameInput{Name: "Quake", PoolEnabled: true, PointsWin: 10, PointsLoss: 2})
}

func (f *fixture) register(t *testing.T, gameID int, participants ...models.Participant) {
	t.Helper()
	for _, p := range participants {
		_, err := f.regs.Register(f.ctx, testEvent, gameID, p)
		require.NoError(t, err)
	}
}

func (f *fixture) points(t *testing.T, userID int) int {
	t.Helper()
	var points int
	err := f.store.WithinTx(f.ctx, func(ctx context.Context, tx repositories.Tx) error {
		rk, err := tx.Rankings().Get(ctx, testEvent, userID)
		if err != nil {
			return nil
		}
		points = rk.Points
		return nil
	})
	require.NoError(t, err)
	return points
}

// seedPool stores an open pool with the given members and ranks directly.
func (f *fixture) seedPool(t *testing.T, gameID int, name string, members []models.PoolMember) *models.Pool {
	t.Helper()
	pool := &models.Pool{EventID: testEvent, GameID: gameID, Name: name, Capacity: len(members), Members: members}
	if len(members) > 0 {
		host := members[0].Participant
		pool.Host = &host
	}
	err := f.store.WithinTx(f.ctx, func(ctx context.Context, tx repositories.Tx) error {
		return tx.Pools().Create(ctx, pool)
	})
	require.NoError(t, err)
	return pool
}

func rankedUsers(ids []int, ranks []int) []models.PoolMember {
	out := make([]models.PoolMember, len(ids))
	for i, id := range ids {
		out[i] = models.PoolMember{Participant: models.UserParticipant(id), Rank: ranks[i]}
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
