package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Dosada05/lan-tournament/models"
)

var (
	ErrGameNotFound         = errors.New("game not found")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrRegistrationConflict = errors.New("participant is already registered for this game")
	ErrMatchNotFound        = errors.New("match not found")
	ErrMatchAlreadyFinished = errors.New("match is already finished")
	ErrPoolNotFound         = errors.New("pool not found")
	ErrPoolMemberNotFound   = errors.New("participant is not a member of the pool")
	ErrRankingNotFound      = errors.New("ranking not found")
	ErrSnapshotNotFound     = errors.New("snapshot not found")
	ErrMapNotFound          = errors.New("time trial map not found")
	ErrMapConflict          = errors.New("time trial map already exists")
	ErrMapAlreadyProcessed  = errors.New("time trial map is already processed")
	ErrRecordNotFound       = errors.New("time trial record not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrGroupNotFound        = errors.New("group not found")
)

// SQLExecutor is satisfied by *sql.DB and *sql.Tx.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store runs units of work. Everything done through the Tx passed to fn
// is committed when fn returns nil and discarded otherwise.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type Tx interface {
	Games() GameRepository
	Registrations() RegistrationRepository
	Matches() MatchRepository
	Pools() PoolRepository
	Rankings() RankingRepository
	Snapshots() SnapshotRepository
	Awards() AwardRepository
	TimeTrials() TimeTrialRepository

	// LockGame serializes pool rounds, registration changes and challenges of
	// one game.
	LockGame(ctx context.Context, gameID int) error
	// LockEvent serializes snapshot creation of one event.
	LockEvent(ctx context.Context, eventID int) error
}

type GameRepository interface {
	Create(ctx context.Context, game *models.Game) error
	GetByID(ctx context.Context, id int) (*models.Game, error)
	List(ctx context.Context) ([]*models.Game, error)
}

type RegistrationRepository interface {
	Create(ctx context.Context, reg *models.Registration) error
	Find(ctx context.Context, eventID, gameID int, p models.Participant) (*models.Registration, error)
	Delete(ctx context.Context, id int) error
	ListByGame(ctx context.Context, eventID, gameID int) ([]*models.Registration, error)
}

type MatchFilter struct {
	EventID     int
	GameID      *int
	Participant *models.Participant
	States      []models.MatchState
}

type MatchRepository interface {
	Create(ctx context.Context, match *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	// GetForUpdate loads the match and holds it until the transaction ends.
	GetForUpdate(ctx context.Context, id int) (*models.Match, error)
	// Update stores scores, state, reporter and rosters of an unfinished match.
	Update(ctx context.Context, match *models.Match) error
	// Finish persists the settled match. It fails with ErrMatchAlreadyFinished
	// when the stored match is already finished.
	Finish(ctx context.Context, match *models.Match) error
	Delete(ctx context.Context, id int) error
	FindUnfinishedBetween(ctx context.Context, eventID, gameID int, a, b models.Participant) (*models.Match, error)
	List(ctx context.Context, filter MatchFilter) ([]*models.Match, error)
}

type PoolRepository interface {
	// Create inserts the pool together with its members.
	Create(ctx context.Context, pool *models.Pool) error
	GetByID(ctx context.Context, id int) (*models.Pool, error)
	ListByGame(ctx context.Context, eventID, gameID int, openOnly bool) ([]*models.Pool, error)
	UpdateMemberRank(ctx context.Context, poolID int, p models.Participant, rank int) error
	MarkPlayed(ctx context.Context, id int) error
	Link(ctx context.Context, parentID, childID int) error
}

type RankingRepository interface {
	Get(ctx context.Context, eventID, userID int) (*models.Ranking, error)
	// AddPoints creates the row at zero if needed, adds delta and clamps the
	// total at zero. It returns the new total.
	AddPoints(ctx context.Context, eventID, userID, delta int) (int, error)
	// ListByEvent is ordered by points descending, then user id.
	ListByEvent(ctx context.Context, eventID int) ([]*models.Ranking, error)
}

type SnapshotRepository interface {
	Create(ctx context.Context, snapshot *models.Snapshot) error
	Latest(ctx context.Context, eventID int) (*models.Snapshot, error)
	GetByID(ctx context.Context, id int) (*models.Snapshot, error)
}

type AwardRepository interface {
	Create(ctx context.Context, award *models.Award) error
	ListByEvent(ctx context.Context, eventID int) ([]*models.Award, error)
}

type TimeTrialRepository interface {
	CreateMap(ctx context.Context, m *models.TimeTrialMap) error
	GetMap(ctx context.Context, id int) (*models.TimeTrialMap, error)
	GetMapByName(ctx context.Context, eventID int, name string) (*models.TimeTrialMap, error)
	ListMaps(ctx context.Context, eventID int) ([]*models.TimeTrialMap, error)
	MarkMapProcessed(ctx context.Context, id int) error
	GetRecord(ctx context.Context, mapID, userID int) (*models.TimeTrialRecord, error)
	SaveRecord(ctx context.Context, rec *models.TimeTrialRecord) error
	// ListRecords is ordered by time ascending.
	ListRecords(ctx context.Context, mapID int) ([]*models.TimeTrialRecord, error)
}

// Directory resolves users and groups owned by the identity platform.
type Directory interface {
	GetUser(ctx context.Context, id int) (*models.User, error)
	FindUserByName(ctx context.Context, name string) (*models.User, error)
	GetGroup(ctx context.Context, id int) (*models.Group, error)
}
