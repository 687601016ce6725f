package services

import (
	"errors"
	"fmt"

	"github.com/Dosada05/lan-tournament/repositories"
)

// Error taxonomy of the engine. Specific errors below wrap one of these so
// callers can match on the kind with errors.Is.
var (
	ErrInvalidState = errors.New("operation not permitted in the current state")
	ErrUnauthorized = errors.New("caller is not a party to this action")
	ErrConflict     = errors.New("conflicting entity already exists")
	ErrNotFound     = errors.New("requested resource not found")
)

var (
	ErrValidationFailed = errors.New("validation failed")

	ErrGameNotFound         = fmt.Errorf("%w: game", ErrNotFound)
	ErrMatchNotFound        = fmt.Errorf("%w: match", ErrNotFound)
	ErrPoolNotFound         = fmt.Errorf("%w: pool", ErrNotFound)
	ErrRegistrationNotFound = fmt.Errorf("%w: registration", ErrNotFound)
	ErrUserNotFound         = fmt.Errorf("%w: user", ErrNotFound)
	ErrGroupNotFound        = fmt.Errorf("%w: group", ErrNotFound)
	ErrMapNotFound          = fmt.Errorf("%w: time trial map", ErrNotFound)
	ErrNotPoolMember        = fmt.Errorf("%w: participant is not a member of the pool", ErrNotFound)

	ErrAlreadyRegistered = fmt.Errorf("%w: participant is already registered", ErrConflict)
	ErrOpenMatchExists   = fmt.Errorf("%w: an unfinished match between these participants exists", ErrConflict)

	ErrMatchFinished   = fmt.Errorf("%w: match is already finished", ErrInvalidState)
	ErrNotRegistered   = fmt.Errorf("%w: participant is not registered for the game", ErrInvalidState)
	ErrNotMassGame     = fmt.Errorf("%w: game is not flagged for mass participation", ErrInvalidState)
	ErrNotPoolGame     = fmt.Errorf("%w: game is not pool enabled", ErrInvalidState)
	ErrWrongKind       = fmt.Errorf("%w: participant kind does not match the game mode", ErrInvalidState)
	ErrGroupTooSmall   = fmt.Errorf("%w: group has fewer members than the game requires", ErrInvalidState)
	ErrInvalidRoster   = fmt.Errorf("%w: roster does not match the group or the game's group size", ErrInvalidState)
	ErrPoolsExist      = fmt.Errorf("%w: open pools already exist", ErrInvalidState)
	ErrNoOpenPools     = fmt.Errorf("%w: no open pools to process", ErrInvalidState)
	ErrUseFinalPool    = fmt.Errorf("%w: only one pool is open, process the final pool instead", ErrInvalidState)
	ErrNotFinalPool    = fmt.Errorf("%w: exactly one open pool is required for the final", ErrInvalidState)
	ErrPoolPlayed      = fmt.Errorf("%w: pool is already played", ErrInvalidState)
	ErrMapProcessed    = fmt.Errorf("%w: time trial map is already processed", ErrInvalidState)
	ErrSelfChallenge   = fmt.Errorf("%w: participant cannot challenge itself", ErrInvalidState)
	ErrInvalidRecord   = fmt.Errorf("%w: record is not a valid time", ErrValidationFailed)
	ErrIngestionClosed = fmt.Errorf("%w: time trial ingestion is disabled", ErrInvalidState)
)

// mapRepoError translates repository errors into service errors, leaving
// anything unknown untouched.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrGameNotFound):
		return ErrGameNotFound
	case errors.Is(err, repositories.ErrMatchNotFound):
		return ErrMatchNotFound
	case errors.Is(err, repositories.ErrMatchAlreadyFinished):
		return ErrMatchFinished
	case errors.Is(err, repositories.ErrPoolNotFound):
		return ErrPoolNotFound
	case errors.Is(err, repositories.ErrPoolMemberNotFound):
		return ErrNotPoolMember
	case errors.Is(err, repositories.ErrRegistrationNotFound):
		return ErrRegistrationNotFound
	case errors.Is(err, repositories.ErrRegistrationConflict):
		return ErrAlreadyRegistered
	case errors.Is(err, repositories.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repositories.ErrGroupNotFound):
		return ErrGroupNotFound
	case errors.Is(err, repositories.ErrMapNotFound):
		return ErrMapNotFound
	case errors.Is(err, repositories.ErrMapAlreadyProcessed):
		return ErrMapProcessed
	default:
		return err
	}
}
