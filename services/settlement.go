package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Dosada05/lan-tournament/metrics"
	"github.com/Dosada05/lan-tournament/models"
	"github.com/Dosada05/lan-tournament/repositories"
)

const maxRankDiff = 0.7

var errEmptyRoster = errors.New("settlement: group side has no roster")

// RankDiff is the rank handicap between two sides. Rank 1 is the best, so
// a positive value means side 1 is the weaker side.
func RankDiff(rank1, rank2 float64) float64 {
	diff := (rank1 - rank2) / 100.0
	return math.Max(-maxRankDiff, math.Min(maxRankDiff, diff))
}

// ComputePoints converts a result into the point deltas of both sides.
func ComputePoints(game *models.Game, rankDiff float64, score1, score2 int) (int, int) {
	win, loss := game.PointsWin, game.PointsLoss
	switch {
	case score1 > score2:
		return win + roundInt(float64(win)*rankDiff), loss - roundInt(float64(loss)*rankDiff)
	case score1 < score2:
		return loss + roundInt(float64(loss)*rankDiff), win - roundInt(float64(win)*rankDiff)
	default:
		half := float64(win) / 2
		bonus := roundInt(half * rankDiff)
		return int(half) + bonus, int(half) - bonus
	}
}

// roundInt rounds half away from zero.
func roundInt(v float64) int {
	return int(math.Round(v))
}

// sideRank is the rank of one side: the user's rank, or the mean rank of
// the roster for groups. Unranked users count as ranked last.
func sideRank(table map[int]int, rankedCount int, userIDs []int) (float64, error) {
	if len(userIDs) == 0 {
		return 0, errEmptyRoster
	}
	sum := 0
	for _, id := range userIDs {
		rank, ok := table[id]
		if !ok || rank == 0 {
			rank = rankedCount + 1
		}
		sum += rank
	}
	return float64(sum) / float64(len(userIDs)), nil
}

func sideUsers(match *models.Match, side models.MatchSide) []int {
	if match.Kind == models.KindUser {
		if side == models.Side1 {
			return []int{match.Side1ID}
		}
		return []int{match.Side2ID}
	}
	return match.Roster(side)
}

// settleMatch computes the deltas of an agreed match, finishes it with a
// compare-and-set and credits every user of both sides. It must run in the
// same transaction that applied the final report.
func settleMatch(ctx context.Context, tx repositories.Tx, m *metrics.Metrics, game *models.Game, match *models.Match, now time.Time) error {
	table, rankings, err := rankTable(ctx, tx, match.EventID)
	if err != nil {
		return err
	}

	users1, users2 := sideUsers(match, models.Side1), sideUsers(match, models.Side2)
	rank1, err := sideRank(table, len(rankings), users1)
	if err != nil {
		return fmt.Errorf("match %d side 1: %w", match.ID, err)
	}
	rank2, err := sideRank(table, len(rankings), users2)
	if err != nil {
		return fmt.Errorf("match %d side 2: %w", match.ID, err)
	}

	match.Compute1, match.Compute2 = ComputePoints(game, RankDiff(rank1, rank2), match.Score1, match.Score2)
	match.State = models.MatchFinished
	match.FinishedAt = &now

	if err := tx.Matches().Finish(ctx, match); err != nil {
		return mapRepoError(err)
	}

	for _, id := range users1 {
		if _, err := tx.Rankings().AddPoints(ctx, match.EventID, id, match.Compute1); err != nil {
			return err
		}
		m.PointsAwarded("match", match.Compute1)
	}
	for _, id := range users2 {
		if _, err := tx.Rankings().AddPoints(ctx, match.EventID, id, match.Compute2); err != nil {
			return err
		}
		m.PointsAwarded("match", match.Compute2)
	}
	m.MatchSettled()
	return nil
}
