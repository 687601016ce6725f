package services

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"

	"github.com/Dosada05/lan-tournament/models"
	"github.com/Dosada05/lan-tournament/repositories"
)

type RegistrationService interface {
	Register(ctx context.Context, eventID, gameID int, p models.Participant) (*models.Registration, error)
	Unregister(ctx context.Context, eventID, gameID int, p models.Participant) error
	IsRegistered(ctx context.Context, eventID, gameID int, p models.Participant) (bool, error)
	ListRegistrations(ctx context.Context, eventID, gameID int) ([]*models.Registration, error)
}

type registrationService struct {
	store     repositories.Store
	directory repositories.Directory
	notifier  Notifier
	logger    *slog.Logger
	sortKey   func() int64
}

func NewRegistrationService(store repositories.Store, directory repositories.Directory, notifier Notifier, logger *slog.Logger) RegistrationService {
	return &registrationService{
		store:     store,
		directory: directory,
		notifier:  notifierOrNoop(notifier),
		logger:    logger,
		sortKey:   rand.Int64,
	}
}

// checkEligible validates a participant against the game flags.
func checkEligible(game *models.Game, p models.Participant) error {
	if !game.PoolEnabled {
		return ErrNotPoolGame
	}
	if p.Kind != game.ParticipantKind() {
		return ErrWrongKind
	}
	if p.IsGroup() && len(p.MemberIDs) < game.GroupSize {
		return ErrGroupTooSmall
	}
	return nil
}

func (s *registrationService) Register(ctx context.Context, eventID, gameID int, p models.Participant) (*models.Registration, error) {
	p, err := resolveParticipant(ctx, s.directory, p)
	if err != nil {
		return nil, err
	}

	reg := &models.Registration{EventID: eventID, GameID: gameID, Participant: p, SortKey: s.sortKey()}
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		if err := tx.LockGame(ctx, gameID); err != nil {
			return err
		}
		game, err := tx.Games().GetByID(ctx, gameID)
		if err != nil {
			return mapRepoError(err)
		}
		if err := checkEligible(game, p); err != nil {
			return err
		}

		_, err = tx.Registrations().Find(ctx, eventID, gameID, p)
		switch {
		case err == nil:
			return ErrAlreadyRegistered
		case !errors.Is(err, repositories.ErrRegistrationNotFound):
			return err
		}
		return mapRepoError(tx.Registrations().Create(ctx, reg))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("participant registered",
		slog.Int("event_id", eventID), slog.Int("game_id", gameID), slog.String("participant", p.String()))
	s.notifier.Publish(eventID, MsgRegistrationsUpdated, reg)
	return reg, nil
}

func (s *registrationService) Unregister(ctx context.Context, eventID, gameID int, p models.Participant) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		if err := tx.LockGame(ctx, gameID); err != nil {
			return err
		}
		reg, err := tx.Registrations().Find(ctx, eventID, gameID, p)
		if err != nil {
			return mapRepoError(err)
		}
		return mapRepoError(tx.Registrations().Delete(ctx, reg.ID))
	})
	if err != nil {
		return err
	}

	s.logger.Info("participant unregistered",
		slog.Int("event_id", eventID), slog.Int("game_id", gameID), slog.String("participant", p.String()))
	s.notifier.Publish(eventID, MsgRegistrationsUpdated, map[string]interface{}{"game_id": gameID, "removed": p})
	return nil
}

func (s *registrationService) IsRegistered(ctx context.Context, eventID, gameID int, p models.Participant) (bool, error) {
	var registered bool
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		_, err := tx.Registrations().Find(ctx, eventID, gameID, p)
		switch {
		case err == nil:
			registered = true
		case errors.Is(err, repositories.ErrRegistrationNotFound):
		default:
			return err
		}
		return nil
	})
	return registered, err
}

func (s *registrationService) ListRegistrations(ctx context.Context, eventID, gameID int) ([]*models.Registration, error) {
	var regs []*models.Registration
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		if _, err := tx.Games().GetByID(ctx, gameID); err != nil {
			return mapRepoError(err)
		}
		var err error
		regs, err = tx.Registrations().ListByGame(ctx, eventID, gameID)
		return err
	})
	return regs, err
}
