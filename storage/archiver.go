package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Dosada05/lan-tournament/models"
	"github.com/Dosada05/lan-tournament/reports"
	"github.com/Dosada05/lan-tournament/repositories"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SnapshotArchiver uploads every ranking snapshot as a spreadsheet. With
// keep > 0 only the newest keep archives of an event stay in the bucket.
type SnapshotArchiver struct {
	store     ObjectStore
	directory repositories.Directory
	keep      int
	logger    *slog.Logger

	mu   sync.Mutex
	keys map[int][]string
}

func NewSnapshotArchiver(store ObjectStore, directory repositories.Directory, keep int, logger *slog.Logger) *SnapshotArchiver {
	return &SnapshotArchiver{
		store:     store,
		directory: directory,
		keep:      keep,
		logger:    logger,
		keys:      make(map[int][]string),
	}
}

// SnapshotKey is snapshots/<event>/<timestamp>-<uuid>.xlsx.
func SnapshotKey(eventID int, takenAt time.Time) string {
	return fmt.Sprintf("snapshots/%d/%s-%s.xlsx", eventID, takenAt.UTC().Format("20060102T150405Z"), uuid.NewString())
}

func (a *SnapshotArchiver) ArchiveSnapshot(ctx context.Context, snapshot *models.Snapshot) (string, error) {
	rows := make([]reports.StandingRow, len(snapshot.Entries))
	for i, e := range snapshot.Entries {
		rows[i] = reports.StandingRow{Rank: e.Rank, UserID: e.UserID, Points: e.Points}
		if a.directory != nil {
			if u, err := a.directory.GetUser(ctx, e.UserID); err == nil {
				rows[i].Name = u.Name
			}
		}
	}

	title := fmt.Sprintf("Event %d ranking snapshot #%d", snapshot.EventID, snapshot.ID)
	data, err := reports.StandingsWorkbook(title, snapshot.TakenAt, rows)
	if err != nil {
		return "", err
	}

	obj, err := a.store.Put(ctx, SnapshotKey(snapshot.EventID, snapshot.TakenAt), xlsxContentType, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	a.prune(ctx, snapshot.EventID, obj.Key)
	return obj.URL, nil
}

// prune records key and removes the archives that fell out of the window.
// A failed removal is logged and retried on the next snapshot.
func (a *SnapshotArchiver) prune(ctx context.Context, eventID int, key string) {
	a.mu.Lock()
	a.keys[eventID] = append(a.keys[eventID], key)
	var expired []string
	if a.keep > 0 && len(a.keys[eventID]) > a.keep {
		n := len(a.keys[eventID]) - a.keep
		expired = append(expired, a.keys[eventID][:n]...)
		a.keys[eventID] = append([]string(nil), a.keys[eventID][n:]...)
	}
	a.mu.Unlock()

	var failed []string
	for _, old := range expired {
		if err := a.store.Remove(ctx, old); err != nil {
			a.logger.Warn("failed to remove expired snapshot archive", slog.String("key", old), slog.Any("error", err))
			failed = append(failed, old)
		}
	}
	if len(failed) > 0 {
		a.mu.Lock()
		a.keys[eventID] = append(failed, a.keys[eventID]...)
		a.mu.Unlock()
	}
}
