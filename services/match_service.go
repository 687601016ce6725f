package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/lan-tournament/metrics"
	"github.com/Dosada05/lan-tournament/models"
	"github.com/Dosada05/lan-tournament/repositories"
)

type MatchService interface {
	Challenge(ctx context.Context, eventID, gameID int, challenger, challenged models.Participant) (*models.Match, error)
	Accept(ctx context.Context, matchID int, responder models.Participant) (*models.Match, error)
	Decline(ctx context.Context, matchID int, responder models.Participant) error
	Withdraw(ctx context.Context, matchID int, challenger models.Participant) error
	// ReportResult applies the report/confirm protocol. Group matches need
	// the roster of users that played for the reporting group.
	ReportResult(ctx context.Context, matchID int, reporter models.Participant, score1, score2 int, roster []int) (*models.Match, error)
	// ConfirmResult agrees to the scores reported by the other side.
	ConfirmResult(ctx context.Context, matchID int, participant models.Participant, roster []int) (*models.Match, error)
	// DeclineResult rejects the other side's report and reopens reporting.
	DeclineResult(ctx context.Context, matchID int, participant models.Participant) (*models.Match, error)
	Cancel(ctx context.Context, matchID int, participant models.Participant) error

	GetMatch(ctx context.Context, matchID int) (*models.Match, error)
	ListMatches(ctx context.Context, filter repositories.MatchFilter) ([]*models.Match, error)
	// OpenChallenges lists challenges waiting for p to accept or decline.
	OpenChallenges(ctx context.Context, eventID int, p models.Participant) ([]*models.Match, error)
	// OpenConfirmations lists results reported against p that wait for p.
	OpenConfirmations(ctx context.Context, eventID int, p models.Participant) ([]*models.Match, error)
}

type matchService struct {
	store     repositories.Store
	directory repositories.Directory
	notifier  Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       Clock
}

type MatchServiceDeps struct {
	Store     repositories.Store
	Directory repositories.Directory
	Notifier  Notifier
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Clock     Clock
}

func NewMatchService(deps MatchServiceDeps) MatchService {
	return &matchService{
		store:     deps.Store,
		directory: deps.Directory,
		notifier:  notifierOrNoop(deps.Notifier),
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       clockOrNow(deps.Clock),
	}
}

func (s *matchService) Challenge(ctx context.Context, eventID, gameID int, challenger, challenged models.Participant) (*models.Match, error) {
	if !challenger.Valid() || !challenged.Valid() {
		return nil, fmt.Errorf("%w: invalid participants", ErrValidationFailed)
	}
	if challenger.Same(challenged) {
		return nil, ErrSelfChallenge
	}

	var match *models.Match
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		game, err := tx.Games().GetByID(ctx, gameID)
		if err != nil {
			return mapRepoError(err)
		}
		// Two challenges between the same pair must not both pass the check below.
		if err := tx.LockGame(ctx, gameID); err != nil {
			return err
		}
		if challenger.Kind != game.ParticipantKind() || challenged.Kind != game.ParticipantKind() {
			return ErrWrongKind
		}
		for _, p := range []models.Participant{challenger, challenged} {
			if _, err := tx.Registrations().Find(ctx, eventID, gameID, p); err != nil {
				if errors.Is(err, repositories.ErrRegistrationNotFound) {
					return fmt.Errorf("%w: %s", ErrNotRegistered, p)
				}
				return err
			}
		}

		_, err = tx.Matches().FindUnfinishedBetween(ctx, eventID, gameID, challenger, challenged)
		switch {
		case err == nil:
			return ErrOpenMatchExists
		case !errors.Is(err, repositories.ErrMatchNotFound):
			return err
		}

		match = &models.Match{
			EventID: eventID,
			GameID:  gameID,
			Kind:    game.ParticipantKind(),
			Side1ID: challenger.ID,
			Side2ID: challenged.ID,
			State:   models.MatchOpen,
		}
		return tx.Matches().Create(ctx, match)
	})
	if err != nil {
		return nil, err
	}

	s.afterChange("challenge", match)
	return match, nil
}

func (s *matchService) Accept(ctx context.Context, matchID int, responder models.Participant) (*models.Match, error) {
	var match *models.Match
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		var err error
		match, err = tx.Matches().GetForUpdate(ctx, matchID)
		if err != nil {
			return mapRepoError(err)
		}
		if match.SideOf(responder) != models.Side2 {
			return fmt.Errorf("%w: only the challenged side can accept", ErrUnauthorized)
		}
		if match.State != models.MatchOpen {
			return fmt.Errorf("%w: match is %s", ErrInvalidState, match.State)
		}
		match.State = models.MatchAccepted
		return mapRepoError(tx.Matches().Update(ctx, match))
	})
	if err != nil {
		return nil, err
	}

	s.afterChange("accept", match)
	return match, nil
}

func (s *matchService) Decline(ctx context.Context, matchID int, responder models.Participant) error {
	return s.removeOpen(ctx, "decline", matchID, responder, models.Side2)
}

func (s *matchService) Withdraw(ctx context.Context, matchID int, challenger models.Participant) error {
	return s.removeOpen(ctx, "withdraw", matchID, challenger, models.Side1)
}

// removeOpen deletes a challenge that has not been accepted yet, on behalf
// of the given side.
func (s *matchService) removeOpen(ctx context.Context, operation string, matchID int, p models.Participant, side models.MatchSide) error {
	var match *models.Match
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		var err error
		match, err = tx.Matches().GetForUpdate(ctx, matchID)
		if err != nil {
			return mapRepoError(err)
		}
		if match.SideOf(p) != side {
			return fmt.Errorf("%w: %s is not allowed for this side", ErrUnauthorized, operation)
		}
		if match.State != models.MatchOpen {
			return fmt.Errorf("%w: match is %s", ErrInvalidState, match.State)
		}
		return mapRepoError(tx.Matches().Delete(ctx, matchID))
	})
	if err != nil {
		return err
	}

	s.afterRemove(operation, match)
	return nil
}

func (s *matchService) Cancel(ctx context.Context, matchID int, participant models.Participant) error {
	var match *models.Match
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		var err error
		match, err = tx.Matches().GetForUpdate(ctx, matchID)
		if err != nil {
			return mapRepoError(err)
		}
		if match.SideOf(participant) == models.SideNone {
			return fmt.Errorf("%w: not a participant of match %d", ErrUnauthorized, matchID)
		}
		if match.Finished() {
			return ErrMatchFinished
		}
		return mapRepoError(tx.Matches().Delete(ctx, matchID))
	})
	if err != nil {
		return err
	}

	s.afterRemove("cancel", match)
	return nil
}

func (s *matchService) ReportResult(ctx context.Context, matchID int, reporter models.Participant, score1, score2 int, roster []int) (*models.Match, error) {
	if score1 < 0 || score2 < 0 {
		return nil, fmt.Errorf("%w: scores must not be negative", ErrValidationFailed)
	}
	return s.report(ctx, "report", matchID, reporter, &[2]int{score1, score2}, roster)
}

func (s *matchService) ConfirmResult(ctx context.Context, matchID int, participant models.Participant, roster []int) (*models.Match, error) {
	return s.report(ctx, "confirm", matchID, participant, nil, roster)
}

// report runs one protocol step. A nil scores pointer confirms the scores
// reported by the other side.
func (s *matchService) report(ctx context.Context, operation string, matchID int, reporter models.Participant, scores *[2]int, roster []int) (*models.Match, error) {
	if reporter.IsGroup() {
		resolved, err := resolveParticipant(ctx, s.directory, reporter)
		if err != nil {
			return nil, err
		}
		reporter = resolved
	}

	var match *models.Match
	var settled bool
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		var err error
		match, err = tx.Matches().GetForUpdate(ctx, matchID)
		if err != nil {
			return mapRepoError(err)
		}
		side := match.SideOf(reporter)
		if side == models.SideNone {
			return fmt.Errorf("%w: not a participant of match %d", ErrUnauthorized, matchID)
		}
		if match.Finished() {
			return ErrMatchFinished
		}
		if !match.Accepted() {
			return fmt.Errorf("%w: match has not been accepted", ErrInvalidState)
		}

		score1, score2 := match.Score1, match.Score2
		if scores != nil {
			score1, score2 = scores[0], scores[1]
		} else if match.State != models.MatchAwaitingConfirmation || match.ReportedBy == side {
			return fmt.Errorf("%w: no result of the other side to confirm", ErrInvalidState)
		}

		game, err := tx.Games().GetByID(ctx, match.GameID)
		if err != nil {
			return mapRepoError(err)
		}
		if match.Kind == models.KindGroup {
			if err := validateRoster(game, reporter, roster); err != nil {
				return err
			}
			match.SetRoster(side, roster)
		}

		if match.ApplyReport(side, score1, score2) {
			settled = true
			return settleMatch(ctx, tx, s.metrics, game, match, s.now())
		}
		return mapRepoError(tx.Matches().Update(ctx, match))
	})
	if err != nil {
		return nil, err
	}

	if settled {
		s.logger.Info("match settled",
			slog.Int("match_id", match.ID), slog.Int("event_id", match.EventID),
			slog.Int("compute1", match.Compute1), slog.Int("compute2", match.Compute2))
		s.notifier.Publish(match.EventID, MsgRankingUpdated, map[string]int{"match_id": match.ID})
	}
	s.afterChange(operation, match)
	return match, nil
}

func (s *matchService) DeclineResult(ctx context.Context, matchID int, participant models.Participant) (*models.Match, error) {
	var match *models.Match
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		var err error
		match, err = tx.Matches().GetForUpdate(ctx, matchID)
		if err != nil {
			return mapRepoError(err)
		}
		side := match.SideOf(participant)
		if side == models.SideNone {
			return fmt.Errorf("%w: not a participant of match %d", ErrUnauthorized, matchID)
		}
		if match.Finished() {
			return ErrMatchFinished
		}
		if match.State != models.MatchAwaitingConfirmation || match.ReportedBy == side {
			return fmt.Errorf("%w: no result of the other side to decline", ErrInvalidState)
		}
		match.ResetReport()
		return mapRepoError(tx.Matches().Update(ctx, match))
	})
	if err != nil {
		return nil, err
	}

	s.afterChange("decline_result", match)
	return match, nil
}

// validateRoster checks a group's roster: exactly GroupSize distinct
// current members of the reporting group.
func validateRoster(game *models.Game, group models.Participant, roster []int) error {
	if len(roster) != game.GroupSize {
		return fmt.Errorf("%w: expected %d players, got %d", ErrInvalidRoster, game.GroupSize, len(roster))
	}
	seen := make(map[int]bool, len(roster))
	for _, id := range roster {
		if seen[id] || !group.HasMember(id) {
			return fmt.Errorf("%w: user %d", ErrInvalidRoster, id)
		}
		seen[id] = true
	}
	return nil
}

func (s *matchService) GetMatch(ctx context.Context, matchID int) (*models.Match, error) {
	var match *models.Match
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		var err error
		match, err = tx.Matches().GetByID(ctx, matchID)
		return mapRepoError(err)
	})
	return match, err
}

func (s *matchService) ListMatches(ctx context.Context, filter repositories.MatchFilter) ([]*models.Match, error) {
	var matches []*models.Match
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		var err error
		matches, err = tx.Matches().List(ctx, filter)
		return err
	})
	return matches, err
}

func (s *matchService) OpenChallenges(ctx context.Context, eventID int, p models.Participant) ([]*models.Match, error) {
	matches, err := s.ListMatches(ctx, repositories.MatchFilter{
		EventID:     eventID,
		Participant: &p,
		States:      []models.MatchState{models.MatchOpen},
	})
	if err != nil {
		return nil, err
	}
	challenges := make([]*models.Match, 0, len(matches))
	for _, m := range matches {
		if m.SideOf(p) == models.Side2 {
			challenges = append(challenges, m)
		}
	}
	return challenges, nil
}

func (s *matchService) OpenConfirmations(ctx context.Context, eventID int, p models.Participant) ([]*models.Match, error) {
	matches, err := s.ListMatches(ctx, repositories.MatchFilter{
		EventID:     eventID,
		Participant: &p,
		States:      []models.MatchState{models.MatchAwaitingConfirmation},
	})
	if err != nil {
		return nil, err
	}
	pending := make([]*models.Match, 0, len(matches))
	for _, m := range matches {
		if m.ReportedBy == m.SideOf(p).Other() {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

func (s *matchService) afterChange(operation string, match *models.Match) {
	s.metrics.MatchTransition(operation)
	s.logger.Debug("match updated",
		slog.String("operation", operation), slog.Int("match_id", match.ID), slog.String("state", string(match.State)))
	s.notifier.Publish(match.EventID, MsgMatchUpdated, match)
}

func (s *matchService) afterRemove(operation string, match *models.Match) {
	s.metrics.MatchTransition(operation)
	s.logger.Info("match removed", slog.String("operation", operation), slog.Int("match_id", match.ID))
	s.notifier.Publish(match.EventID, MsgMatchRemoved, map[string]interface{}{"match_id": match.ID, "reason": operation})
}
