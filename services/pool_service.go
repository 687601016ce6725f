package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/lan-tournament/brackets"
	"github.com/Dosada05/lan-tournament/metrics"
	"github.com/Dosada05/lan-tournament/models"
	"github.com/Dosada05/lan-tournament/repositories"
)

type PoolService interface {
	CreatePools(ctx context.Context, eventID, gameID, count int) ([]*models.Pool, error)
	// ProcessPools closes the current round: members ranked 1..rank advance
	// into count new pools, everyone else gets consolation points.
	ProcessPools(ctx context.Context, eventID, gameID, count, rank int) ([]*models.Pool, error)
	ProcessFinalPool(ctx context.Context, eventID, gameID int) (*models.Pool, error)
	// SetRank returns false when p is not a member of the pool.
	SetRank(ctx context.Context, poolID int, p models.Participant, rank int) (bool, error)
	SetRanks(ctx context.Context, poolID int, ranks []models.PoolMember) error

	GetPool(ctx context.Context, poolID int) (*models.Pool, error)
	ListPools(ctx context.Context, eventID, gameID int) ([]*models.Pool, error)
	BracketState(ctx context.Context, eventID, gameID int) (models.BracketState, error)
}

type poolService struct {
	store     repositories.Store
	directory repositories.Directory
	notifier  Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

type PoolServiceDeps struct {
	Store     repositories.Store
	Directory repositories.Directory
	Notifier  Notifier
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

func NewPoolService(deps PoolServiceDeps) PoolService {
	return &poolService{
		store:     deps.Store,
		directory: deps.Directory,
		notifier:  notifierOrNoop(deps.Notifier),
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}
}

// massGame loads the game and takes the per-game lock shared with
// registration changes.
func massGame(ctx context.Context, tx repositories.Tx, gameID int) (*models.Game, error) {
	if err := tx.LockGame(ctx, gameID); err != nil {
		return nil, err
	}
	game, err := tx.Games().GetByID(ctx, gameID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !game.MassMode {
		return nil, fmt.Errorf("%w: %s", ErrNotMassGame, game.Name)
	}
	return game, nil
}

func fillError(err error) error {
	if errors.Is(err, brackets.ErrInvalidPoolCount) || errors.Is(err, brackets.ErrNotEnoughForPools) {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return err
}

// createRound persists one round of pools from the dealt seeds.
func createRound(ctx context.Context, tx repositories.Tx, eventID, gameID int, seeds []brackets.PoolSeed) ([]*models.Pool, error) {
	pools := make([]*models.Pool, 0, len(seeds))
	for _, seed := range seeds {
		pool := &models.Pool{EventID: eventID, GameID: gameID, Name: seed.Name, Capacity: seed.Capacity}
		for _, p := range seed.Members {
			pool.AddMember(p)
		}
		if err := tx.Pools().Create(ctx, pool); err != nil {
			return nil, mapRepoError(err)
		}
		pools = append(pools, pool)
	}
	return pools, nil
}

func (s *poolService) CreatePools(ctx context.Context, eventID, gameID, count int) ([]*models.Pool, error) {
	var pools []*models.Pool
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		game, err := massGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		open, err := tx.Pools().ListByGame(ctx, eventID, gameID, true)
		if err != nil {
			return err
		}
		if len(open) > 0 {
			return fmt.Errorf("%w: %s", ErrPoolsExist, game.Name)
		}

		regs, err := tx.Registrations().ListByGame(ctx, eventID, gameID)
		if err != nil {
			return err
		}
		seeds, err := brackets.FillPools(brackets.ShuffledParticipants(regs), count)
		if err != nil {
			return fillError(err)
		}
		if pools, err = createRound(ctx, tx, eventID, gameID, seeds); err != nil {
			return err
		}

		for _, reg := range regs {
			if err := tx.Registrations().Delete(ctx, reg.ID); err != nil {
				return mapRepoError(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PoolRound("create")
	s.logger.Info("pools created", slog.Int("event_id", eventID), slog.Int("game_id", gameID), slog.Int("pools", len(pools)))
	s.notifier.Publish(eventID, MsgPoolsUpdated, pools)
	return pools, nil
}

func (s *poolService) ProcessPools(ctx context.Context, eventID, gameID, count, rank int) ([]*models.Pool, error) {
	var pools []*models.Pool
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		game, err := massGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		oldPools, err := tx.Pools().ListByGame(ctx, eventID, gameID, true)
		if err != nil {
			return err
		}
		switch len(oldPools) {
		case 0:
			return ErrNoOpenPools
		case 1:
			return ErrUseFinalPool
		}

		advance, eliminated := brackets.Advancing(oldPools, rank)
		seeds, err := brackets.FillPools(advance, count)
		if err != nil {
			return fillError(err)
		}

		note := "Participation " + game.Name
		for _, p := range eliminated {
			users, err := memberIDs(ctx, s.directory, p)
			if err != nil {
				return err
			}
			for _, userID := range users {
				if err := grantAward(ctx, tx, s.metrics, "pool", eventID, userID, brackets.ConsolationPoints, note); err != nil {
					return err
				}
			}
		}

		if pools, err = createRound(ctx, tx, eventID, gameID, seeds); err != nil {
			return err
		}
		for _, old := range oldPools {
			if err := tx.Pools().MarkPlayed(ctx, old.ID); err != nil {
				return mapRepoError(err)
			}
			for _, pool := range pools {
				if err := tx.Pools().Link(ctx, old.ID, pool.ID); err != nil {
					return mapRepoError(err)
				}
				models.LinkPools(old, pool)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PoolRound("process")
	s.logger.Info("pool round processed",
		slog.Int("event_id", eventID), slog.Int("game_id", gameID), slog.Int("pools", len(pools)), slog.Int("threshold", rank))
	s.notifier.Publish(eventID, MsgPoolsUpdated, pools)
	s.notifier.Publish(eventID, MsgRankingUpdated, map[string]int{"game_id": gameID})
	return pools, nil
}

func (s *poolService) ProcessFinalPool(ctx context.Context, eventID, gameID int) (*models.Pool, error) {
	var final *models.Pool
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		game, err := massGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		open, err := tx.Pools().ListByGame(ctx, eventID, gameID, true)
		if err != nil {
			return err
		}
		if len(open) != 1 {
			return fmt.Errorf("%w: %d open pools", ErrNotFinalPool, len(open))
		}
		final = open[0]

		for _, m := range final.Members {
			points := brackets.FinalPoolPoints(m.Rank)
			note := fmt.Sprintf("Final %s (#%d)", game.Name, m.Rank)
			users, err := memberIDs(ctx, s.directory, m.Participant)
			if err != nil {
				return err
			}
			for _, userID := range users {
				if err := grantAward(ctx, tx, s.metrics, "final", eventID, userID, points, note); err != nil {
					return err
				}
			}
		}
		final.Played = true
		return mapRepoError(tx.Pools().MarkPlayed(ctx, final.ID))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PoolRound("final")
	s.logger.Info("final pool processed", slog.Int("event_id", eventID), slog.Int("game_id", gameID), slog.Int("pool_id", final.ID))
	s.notifier.Publish(eventID, MsgPoolsUpdated, []*models.Pool{final})
	s.notifier.Publish(eventID, MsgRankingUpdated, map[string]int{"game_id": gameID})
	return final, nil
}

func (s *poolService) SetRank(ctx context.Context, poolID int, p models.Participant, rank int) (bool, error) {
	var updated *models.Pool
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		pool, err := lockedPool(ctx, tx, poolID)
		if err != nil {
			return err
		}
		if _, ok := pool.Member(p); !ok {
			return nil
		}
		if err := checkRankInput(pool, rank); err != nil {
			return err
		}
		if err := tx.Pools().UpdateMemberRank(ctx, poolID, p, rank); err != nil {
			return mapRepoError(err)
		}
		pool.SetRank(p, rank)
		updated = pool
		return nil
	})
	if err != nil || updated == nil {
		return false, err
	}

	s.notifier.Publish(updated.EventID, MsgPoolsUpdated, []*models.Pool{updated})
	return true, nil
}

func (s *poolService) SetRanks(ctx context.Context, poolID int, ranks []models.PoolMember) error {
	var updated *models.Pool
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		pool, err := lockedPool(ctx, tx, poolID)
		if err != nil {
			return err
		}
		for _, r := range ranks {
			if !pool.SetRank(r.Participant, r.Rank) {
				return fmt.Errorf("%w: %s", ErrNotPoolMember, r.Participant)
			}
			if err := checkRankInput(pool, r.Rank); err != nil {
				return err
			}
			if err := tx.Pools().UpdateMemberRank(ctx, poolID, r.Participant, r.Rank); err != nil {
				return mapRepoError(err)
			}
		}
		updated = pool
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.Publish(updated.EventID, MsgPoolsUpdated, []*models.Pool{updated})
	return nil
}

// lockedPool loads a pool for rank changes, serialized with the game's
// pool rounds.
func lockedPool(ctx context.Context, tx repositories.Tx, poolID int) (*models.Pool, error) {
	pool, err := tx.Pools().GetByID(ctx, poolID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if err := tx.LockGame(ctx, pool.GameID); err != nil {
		return nil, err
	}
	// Reload: a round may have closed the pool while we waited for the lock.
	if pool, err = tx.Pools().GetByID(ctx, poolID); err != nil {
		return nil, mapRepoError(err)
	}
	return pool, nil
}

func checkRankInput(pool *models.Pool, rank int) error {
	if pool.Played {
		return ErrPoolPlayed
	}
	if rank < 0 || rank > len(pool.Members) {
		return fmt.Errorf("%w: rank %d outside 0..%d", ErrValidationFailed, rank, len(pool.Members))
	}
	return nil
}

func (s *poolService) GetPool(ctx context.Context, poolID int) (*models.Pool, error) {
	var pool *models.Pool
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		var err error
		pool, err = tx.Pools().GetByID(ctx, poolID)
		return mapRepoError(err)
	})
	return pool, err
}

func (s *poolService) ListPools(ctx context.Context, eventID, gameID int) ([]*models.Pool, error) {
	var pools []*models.Pool
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		var err error
		pools, err = tx.Pools().ListByGame(ctx, eventID, gameID, false)
		return err
	})
	return pools, err
}

func (s *poolService) BracketState(ctx context.Context, eventID, gameID int) (models.BracketState, error) {
	pools, err := s.ListPools(ctx, eventID, gameID)
	if err != nil {
		return "", err
	}
	return brackets.State(pools), nil
}
