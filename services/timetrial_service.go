package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/lan-tournament/brackets"
	"github.com/Dosada05/lan-tournament/metrics"
	"github.com/Dosada05/lan-tournament/models"
	"github.com/Dosada05/lan-tournament/repositories"
)

type TimeTrialService interface {
	SubmitRecord(ctx context.Context, eventID int, userName, mapName string, recordedAt time.Time, record string) (models.SubmitOutcome, error)
	ProcessMap(ctx context.Context, eventID, mapID int) error
	ListMaps(ctx context.Context, eventID int) ([]*models.TimeTrialMap, error)
	ListRecords(ctx context.Context, mapID int) ([]*models.TimeTrialRecord, error)
}

type timeTrialService struct {
	store     repositories.Store
	directory repositories.Directory
	notifier  Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewTimeTrialService(store repositories.Store, directory repositories.Directory, notifier Notifier, m *metrics.Metrics, logger *slog.Logger) TimeTrialService {
	return &timeTrialService{
		store:     store,
		directory: directory,
		notifier:  notifierOrNoop(notifier),
		metrics:   m,
		logger:    logger,
	}
}

// ParseRecord converts "ss.mmm", "mm:ss.mmm" or "hh:mm:ss.mmm" into
// milliseconds. A short fraction is read as hundredths or tenths ("1.5" is
// 1500ms).
func ParseRecord(s string) (int, error) {
	whole, frac, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok || frac == "" || len(frac) > 3 || !allDigits(frac) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRecord, s)
	}
	frac += strings.Repeat("0", 3-len(frac))
	millis, _ := strconv.Atoi(frac)

	parts := strings.Split(whole, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRecord, s)
	}
	seconds := 0
	for i, part := range parts {
		if part == "" || !allDigits(part) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidRecord, s)
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidRecord, s)
		}
		// Only the leading component may exceed its unit.
		if i > 0 && v >= 60 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidRecord, s)
		}
		seconds = seconds*60 + v
	}
	return seconds*1000 + millis, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (s *timeTrialService) SubmitRecord(ctx context.Context, eventID int, userName, mapName string, recordedAt time.Time, record string) (models.SubmitOutcome, error) {
	millis, err := ParseRecord(record)
	if err != nil {
		return "", err
	}
	mapName = strings.TrimSpace(mapName)
	if mapName == "" {
		return "", fmt.Errorf("%w: map name is required", ErrValidationFailed)
	}
	user, err := s.directory.FindUserByName(ctx, userName)
	if err != nil {
		return "", mapRepoError(err)
	}

	var outcome models.SubmitOutcome
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		m, err := tx.TimeTrials().GetMapByName(ctx, eventID, mapName)
		if errors.Is(err, repositories.ErrMapNotFound) {
			m = &models.TimeTrialMap{EventID: eventID, Name: mapName}
			err = tx.TimeTrials().CreateMap(ctx, m)
		}
		if err != nil {
			return mapRepoError(err)
		}
		if m.Processed {
			return fmt.Errorf("%w: %s", ErrMapProcessed, m.Name)
		}

		rec := &models.TimeTrialRecord{MapID: m.ID, UserID: user.ID, RecordedAt: recordedAt, Millis: millis}
		existing, err := tx.TimeTrials().GetRecord(ctx, m.ID, user.ID)
		switch {
		case errors.Is(err, repositories.ErrRecordNotFound):
			outcome = models.RecordAdded
		case err != nil:
			return err
		case millis < existing.Millis:
			outcome = models.RecordImproved
		default:
			outcome = models.RecordNoImprovement
			return nil
		}
		return tx.TimeTrials().SaveRecord(ctx, rec)
	})
	if err != nil {
		return "", err
	}

	s.metrics.RecordIngested(string(outcome))
	s.logger.Info("time trial record submitted",
		slog.Int("event_id", eventID), slog.String("map", mapName), slog.Int("user_id", user.ID),
		slog.Int("millis", millis), slog.String("outcome", string(outcome)))
	return outcome, nil
}

// ProcessMap pays out the map: every record earns at least one point, the
// top ten by time earn more. Equal times share a rank.
func (s *timeTrialService) ProcessMap(ctx context.Context, eventID, mapID int) error {
	var paid int
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		m, err := tx.TimeTrials().GetMap(ctx, mapID)
		if err != nil {
			return mapRepoError(err)
		}
		if m.EventID != eventID {
			return ErrMapNotFound
		}
		// Marking first makes a concurrent second run fail before paying.
		if err := tx.TimeTrials().MarkMapProcessed(ctx, mapID); err != nil {
			return mapRepoError(err)
		}

		records, err := tx.TimeTrials().ListRecords(ctx, mapID)
		if err != nil {
			return err
		}
		sort.SliceStable(records, func(i, j int) bool { return records[i].Millis < records[j].Millis })
		ranks := competitionRanks(len(records), func(prev, cur int) bool {
			return records[prev].Millis == records[cur].Millis
		})
		for i, rec := range records {
			note := fmt.Sprintf("Time trial (#%d, %s)", ranks[i], m.Name)
			if err := grantAward(ctx, tx, s.metrics, "timetrial", eventID, rec.UserID, brackets.TimeTrialPoints(ranks[i]), note); err != nil {
				return err
			}
		}
		paid = len(records)
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("time trial map processed", slog.Int("event_id", eventID), slog.Int("map_id", mapID), slog.Int("records", paid))
	s.notifier.Publish(eventID, MsgRankingUpdated, map[string]int{"map_id": mapID})
	return nil
}

func (s *timeTrialService) ListMaps(ctx context.Context, eventID int) ([]*models.TimeTrialMap, error) {
	var maps []*models.TimeTrialMap
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		var err error
		maps, err = tx.TimeTrials().ListMaps(ctx, eventID)
		return err
	})
	return maps, err
}

func (s *timeTrialService) ListRecords(ctx context.Context, mapID int) ([]*models.TimeTrialRecord, error) {
	var records []*models.TimeTrialRecord
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		if _, err := tx.TimeTrials().GetMap(ctx, mapID); err != nil {
			return mapRepoError(err)
		}
		var err error
		records, err = tx.TimeTrials().ListRecords(ctx, mapID)
		return err
	})
	return records, err
}
