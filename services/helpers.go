package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Dosada05/lan-tournament/metrics"
	"github.com/Dosada05/lan-tournament/models"
	"github.com/Dosada05/lan-tournament/repositories"
)

// Message types pushed to live clients.
const (
	MsgRegistrationsUpdated = "REGISTRATIONS_UPDATED"
	MsgMatchUpdated         = "MATCH_UPDATED"
	MsgMatchRemoved         = "MATCH_REMOVED"
	MsgPoolsUpdated         = "POOLS_UPDATED"
	MsgRankingUpdated       = "RANKING_UPDATED"
	MsgRankingSnapshot      = "RANKING_SNAPSHOT"
)

// Notifier pushes messages to clients watching an event. Services call it
// only after their transaction committed.
type Notifier interface {
	Publish(eventID int, msgType string, payload interface{})
}

type noopNotifier struct{}

func (noopNotifier) Publish(int, string, interface{}) {}

func notifierOrNoop(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}

// Clock returns the current time. Tests replace it to move time forward.
type Clock func() time.Time

func clockOrNow(c Clock) Clock {
	if c == nil {
		return func() time.Time { return time.Now().UTC() }
	}
	return c
}

// resolveParticipant checks the participant exists and, for groups, fills
// in the current member list.
func resolveParticipant(ctx context.Context, dir repositories.Directory, p models.Participant) (models.Participant, error) {
	if !p.Valid() {
		return p, fmt.Errorf("%w: invalid participant %s", ErrValidationFailed, p)
	}
	if p.Kind == models.KindUser {
		if _, err := dir.GetUser(ctx, p.ID); err != nil {
			return p, mapRepoError(err)
		}
		return models.UserParticipant(p.ID), nil
	}
	group, err := dir.GetGroup(ctx, p.ID)
	if err != nil {
		return p, mapRepoError(err)
	}
	return models.GroupParticipant(group.ID, group.MemberIDs), nil
}

// competitionRanks assigns ranks to an already sorted list: entries tied
// with their predecessor share its rank, the next distinct value skips by
// the size of the tie (50,50,40 -> 1,1,3).
func competitionRanks(n int, tied func(prev, cur int) bool) []int {
	ranks := make([]int, n)
	for i := 0; i < n; i++ {
		if i > 0 && tied(i-1, i) {
			ranks[i] = ranks[i-1]
		} else {
			ranks[i] = i + 1
		}
	}
	return ranks
}

// rankTable maps every ranked user of the event to their current rank.
func rankTable(ctx context.Context, tx repositories.Tx, eventID int) (map[int]int, []*models.Ranking, error) {
	rankings, err := tx.Rankings().ListByEvent(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	ranks := competitionRanks(len(rankings), func(prev, cur int) bool {
		return rankings[prev].Points == rankings[cur].Points
	})
	table := make(map[int]int, len(rankings))
	for i, rk := range rankings {
		table[rk.UserID] = ranks[i]
	}
	return table, rankings, nil
}

// grantAward records a fixed award and credits it to the user's ranking.
func grantAward(ctx context.Context, tx repositories.Tx, m *metrics.Metrics, source string, eventID, userID, points int, description string) error {
	award := &models.Award{EventID: eventID, UserID: userID, Description: description, Points: points}
	if err := tx.Awards().Create(ctx, award); err != nil {
		return fmt.Errorf("failed to record award for user %d: %w", userID, err)
	}
	if _, err := tx.Rankings().AddPoints(ctx, eventID, userID, points); err != nil {
		return err
	}
	m.PointsAwarded(source, points)
	return nil
}

// memberIDs returns the users behind a participant, resolving groups
// through the directory.
func memberIDs(ctx context.Context, dir repositories.Directory, p models.Participant) ([]int, error) {
	if p.Kind == models.KindUser {
		return []int{p.ID}, nil
	}
	if len(p.MemberIDs) > 0 {
		return p.UserIDs(), nil
	}
	resolved, err := resolveParticipant(ctx, dir, p)
	if err != nil {
		return nil, err
	}
	return resolved.UserIDs(), nil
}
