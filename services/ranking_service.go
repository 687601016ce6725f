package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/lan-tournament/metrics"
	"github.com/Dosada05/lan-tournament/models"
	"github.com/Dosada05/lan-tournament/repositories"
)

// SnapshotInterval is the minimum age of the latest snapshot before a new
// one is taken.
const SnapshotInterval = time.Hour

// SnapshotArchiver stores a copy of a snapshot outside the database and
// returns where it can be fetched.
type SnapshotArchiver interface {
	ArchiveSnapshot(ctx context.Context, snapshot *models.Snapshot) (string, error)
}

type RankingService interface {
	// Rank is the current competition rank of a user, 0 when unranked.
	Rank(ctx context.Context, eventID, userID int) (int, error)
	// SnapshotRank is the rank stored in the latest snapshot, 0 when absent.
	SnapshotRank(ctx context.Context, eventID, userID int) (int, error)
	// RankAt is the rank stored in a given snapshot, 0 when absent.
	RankAt(ctx context.Context, eventID, userID, snapshotID int) (int, error)
	AddPoints(ctx context.Context, eventID, userID, delta int) (int, error)
	GrantAward(ctx context.Context, eventID, userID, points int, description string) error
	CreateSnapshot(ctx context.Context, eventID int) (bool, error)
	RankMovement(ctx context.Context, eventID, userID int) (int, error)
	Leaderboard(ctx context.Context, eventID int) ([]models.LeaderboardEntry, error)
	Awards(ctx context.Context, eventID int) ([]*models.Award, error)
}

type rankingService struct {
	store     repositories.Store
	directory repositories.Directory
	archiver  SnapshotArchiver
	notifier  Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       Clock
}

type RankingServiceDeps struct {
	Store     repositories.Store
	Directory repositories.Directory
	Archiver  SnapshotArchiver
	Notifier  Notifier
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Clock     Clock
}

func NewRankingService(deps RankingServiceDeps) RankingService {
	return &rankingService{
		store:     deps.Store,
		directory: deps.Directory,
		archiver:  deps.Archiver,
		notifier:  notifierOrNoop(deps.Notifier),
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       clockOrNow(deps.Clock),
	}
}

func (s *rankingService) Rank(ctx context.Context, eventID, userID int) (int, error) {
	var rank int
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		table, _, err := rankTable(ctx, tx, eventID)
		if err != nil {
			return err
		}
		rank = table[userID]
		return nil
	})
	return rank, err
}

func (s *rankingService) SnapshotRank(ctx context.Context, eventID, userID int) (int, error) {
	var rank int
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		snap, err := tx.Snapshots().Latest(ctx, eventID)
		if err != nil {
			if errors.Is(err, repositories.ErrSnapshotNotFound) {
				return nil
			}
			return err
		}
		rank = snap.RankOf(userID)
		return nil
	})
	return rank, err
}

func (s *rankingService) RankAt(ctx context.Context, eventID, userID, snapshotID int) (int, error) {
	var rank int
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		snap, err := tx.Snapshots().GetByID(ctx, snapshotID)
		if err != nil {
			if errors.Is(err, repositories.ErrSnapshotNotFound) {
				return fmt.Errorf("%w: snapshot %d", ErrNotFound, snapshotID)
			}
			return err
		}
		if snap.EventID == eventID {
			rank = snap.RankOf(userID)
		}
		return nil
	})
	return rank, err
}

func (s *rankingService) AddPoints(ctx context.Context, eventID, userID, delta int) (int, error) {
	if userID <= 0 {
		return 0, fmt.Errorf("%w: invalid user id %d", ErrValidationFailed, userID)
	}
	var total int
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		var err error
		total, err = tx.Rankings().AddPoints(ctx, eventID, userID, delta)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.metrics.PointsAwarded("manual", delta)
	s.notifier.Publish(eventID, MsgRankingUpdated, map[string]int{"user_id": userID, "points": total})
	return total, nil
}

func (s *rankingService) GrantAward(ctx context.Context, eventID, userID, points int, description string) error {
	if userID <= 0 || description == "" {
		return fmt.Errorf("%w: award needs a user and a description", ErrValidationFailed)
	}
	if _, err := s.directory.GetUser(ctx, userID); err != nil {
		return mapRepoError(err)
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		return grantAward(ctx, tx, s.metrics, "manual", eventID, userID, points, description)
	})
	if err != nil {
		return err
	}
	s.notifier.Publish(eventID, MsgRankingUpdated, map[string]int{"user_id": userID})
	return nil
}

// CreateSnapshot returns false without error when the event has no
// rankings or the latest snapshot is younger than SnapshotInterval.
func (s *rankingService) CreateSnapshot(ctx context.Context, eventID int) (bool, error) {
	var snap *models.Snapshot
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		if err := tx.LockEvent(ctx, eventID); err != nil {
			return err
		}

		now := s.now()
		latest, err := tx.Snapshots().Latest(ctx, eventID)
		switch {
		case err == nil:
			if now.Sub(latest.TakenAt) < SnapshotInterval {
				return nil
			}
		case !errors.Is(err, repositories.ErrSnapshotNotFound):
			return err
		}

		table, rankings, err := rankTable(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if len(rankings) == 0 {
			return nil
		}

		snap = &models.Snapshot{EventID: eventID, TakenAt: now, Entries: make([]models.SnapshotEntry, len(rankings))}
		for i, rk := range rankings {
			snap.Entries[i] = models.SnapshotEntry{UserID: rk.UserID, Points: rk.Points, Rank: table[rk.UserID]}
		}
		return tx.Snapshots().Create(ctx, snap)
	})
	if err != nil {
		return false, err
	}
	if snap == nil {
		return false, nil
	}

	s.metrics.SnapshotCreated()
	s.logger.Info("ranking snapshot created",
		slog.Int("event_id", eventID), slog.Int("snapshot_id", snap.ID), slog.Int("entries", len(snap.Entries)))

	payload := map[string]interface{}{"snapshot_id": snap.ID, "taken_at": snap.TakenAt}
	if s.archiver != nil {
		location, err := s.archiver.ArchiveSnapshot(ctx, snap)
		if err != nil {
			s.logger.Warn("failed to archive ranking snapshot", slog.Int("snapshot_id", snap.ID), slog.Any("error", err))
		} else {
			payload["archive_url"] = location
		}
	}
	s.notifier.Publish(eventID, MsgRankingSnapshot, payload)
	return true, nil
}

// RankMovement is the snapshot rank minus the current rank, so a positive
// value means the user moved up. Without a snapshot entry it is 0.
func (s *rankingService) RankMovement(ctx context.Context, eventID, userID int) (int, error) {
	var movement int
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		snap, err := tx.Snapshots().Latest(ctx, eventID)
		if err != nil {
			if errors.Is(err, repositories.ErrSnapshotNotFound) {
				return nil
			}
			return err
		}
		previous := snap.RankOf(userID)
		if previous == 0 {
			return nil
		}
		table, _, err := rankTable(ctx, tx, eventID)
		if err != nil {
			return err
		}
		movement = previous - table[userID]
		return nil
	})
	return movement, err
}

func (s *rankingService) Leaderboard(ctx context.Context, eventID int) ([]models.LeaderboardEntry, error) {
	var entries []models.LeaderboardEntry
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		table, rankings, err := rankTable(ctx, tx, eventID)
		if err != nil {
			return err
		}
		snap, err := tx.Snapshots().Latest(ctx, eventID)
		if err != nil && !errors.Is(err, repositories.ErrSnapshotNotFound) {
			return err
		}

		entries = make([]models.LeaderboardEntry, len(rankings))
		for i, rk := range rankings {
			e := models.LeaderboardEntry{UserID: rk.UserID, Points: rk.Points, Rank: table[rk.UserID]}
			if snap != nil {
				if previous := snap.RankOf(rk.UserID); previous != 0 {
					e.Movement = previous - e.Rank
				}
			}
			entries[i] = e
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range entries {
		if u, err := s.directory.GetUser(ctx, entries[i].UserID); err == nil {
			entries[i].Name = u.Name
		}
	}
	return entries, nil
}

func (s *rankingService) Awards(ctx context.Context, eventID int) ([]*models.Award, error) {
	var awards []*models.Award
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		var err error
		awards, err = tx.Awards().ListByEvent(ctx, eventID)
		return err
	})
	return awards, err
}
