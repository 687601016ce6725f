package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Dosada05/lan-tournament/models"
	"github.com/Dosada05/lan-tournament/repositories"
)

var (
	ErrGameNameRequired = fmt.Errorf("%w: game name is required", ErrValidationFailed)
	ErrGameNameTooLong  = fmt.Errorf("%w: game name is longer than 100 characters", ErrValidationFailed)
	ErrInvalidGroupSize = fmt.Errorf("%w: group size must be at least 1", ErrValidationFailed)
	ErrInvalidGamePoint = fmt.Errorf("%w: points must not be negative", ErrValidationFailed)
)

type GameService interface {
	CreateGame(ctx context.Context, input CreateGameInput) (*models.Game, error)
	GetGame(ctx context.Context, id int) (*models.Game, error)
	ListGames(ctx context.Context) ([]*models.Game, error)
}

type CreateGameInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	PoolEnabled bool   `json:"pool_enabled"`
	GroupMode   bool   `json:"group_mode"`
	MassMode    bool   `json:"mass_mode"`
	GroupSize   int    `json:"group_size" validate:"gte=1"`
	PointsWin   int    `json:"points_win" validate:"gte=0"`
	PointsLoss  int    `json:"points_loss" validate:"gte=0"`
}

var validate = validator.New()

// validateGameInput maps the first failed field onto its sentinel.
func validateGameInput(input CreateGameInput) error {
	err := validate.Struct(input)
	if err == nil {
		if !input.GroupMode && input.GroupSize != 1 {
			return ErrInvalidGroupSize
		}
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	switch fe := ve[0]; fe.Field() {
	case "Name":
		if fe.Tag() == "max" {
			return ErrGameNameTooLong
		}
		return ErrGameNameRequired
	case "GroupSize":
		return ErrInvalidGroupSize
	case "PointsWin", "PointsLoss":
		return ErrInvalidGamePoint
	default:
		return fmt.Errorf("%w: invalid %s", ErrValidationFailed, fe.Field())
	}
}

type gameService struct {
	store  repositories.Store
	logger *slog.Logger
}

func NewGameService(store repositories.Store, logger *slog.Logger) GameService {
	return &gameService{store: store, logger: logger}
}

func (s *gameService) CreateGame(ctx context.Context, input CreateGameInput) (*models.Game, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.GroupSize == 0 {
		input.GroupSize = 1
	}
	if err := validateGameInput(input); err != nil {
		return nil, err
	}
	name := input.Name

	game := &models.Game{
		Name:        name,
		PoolEnabled: input.PoolEnabled,
		GroupMode:   input.GroupMode,
		MassMode:    input.MassMode,
		GroupSize:   input.GroupSize,
		PointsWin:   input.PointsWin,
		PointsLoss:  input.PointsLoss,
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		return tx.Games().Create(ctx, game)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create game %q: %w", name, err)
	}

	s.logger.Info("game created", slog.Int("game_id", game.ID), slog.String("name", game.Name))
	return game, nil
}

func (s *gameService) GetGame(ctx context.Context, id int) (*models.Game, error) {
	var game *models.Game
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		var err error
		game, err = tx.Games().GetByID(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, repositories.ErrGameNotFound) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to get game by id %d: %w", id, err)
	}
	return game, nil
}

func (s *gameService) ListGames(ctx context.Context) ([]*models.Game, error) {
	var games []*models.Game
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		var err error
		games, err = tx.Games().List(ctx)
		return err
	})
	return games, err
}
