package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Dosada05/lan-tournament/models"
	"github.com/Dosada05/lan-tournament/repositories"
)

func TestSnapshotKey(t *testing.T) {
	key := SnapshotKey(4, time.Date(2024, 3, 9, 18, 30, 5, 0, time.UTC))
	assert.True(t, strings.HasPrefix(key, "snapshots/4/20240309T183005Z-"), key)
	assert.True(t, strings.HasSuffix(key, ".xlsx"), key)
	assert.NotEqual(t, key, SnapshotKey(4, time.Date(2024, 3, 9, 18, 30, 5, 0, time.UTC)))
}

func TestSnapshotArchiver_ArchiveSnapshot(t *testing.T) {
	dir := repositories.NewMemoryDirectory()
	dir.AddUser(models.User{ID: 1, Name: "alice"})

	uploader := NewMemoryStore("https://cdn.example.com/lan")
	archiver := NewSnapshotArchiver(uploader, dir, 0, discardLogger())

	snap := &models.Snapshot{
		ID:      10,
		EventID: 2,
		TakenAt: time.Date(2024, 3, 9, 18, 0, 0, 0, time.UTC),
		Entries: []models.SnapshotEntry{
			{UserID: 1, Points: 30, Rank: 1},
			{UserID: 2, Points: 10, Rank: 2},
		},
	}
	location, err := archiver.ArchiveSnapshot(context.Background(), snap)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(location, "https://cdn.example.com/lan/snapshots/2/"), location)

	keys := uploader.Keys()
	require.Len(t, keys, 1)
	data, ok := uploader.Object(keys[0])
	require.True(t, ok)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	name, err := f.GetCellValue("Standings", "C4")
	require.NoError(t, err)
	assert.Equal(t, "alice", name)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func archiveN(t *testing.T, archiver *SnapshotArchiver, eventID, n int) {
	t.Helper()
	base := time.Date(2024, 3, 9, 18, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		snap := &models.Snapshot{ID: i + 1, EventID: eventID, TakenAt: base.Add(time.Duration(i) * time.Hour)}
		_, err := archiver.ArchiveSnapshot(context.Background(), snap)
		require.NoError(t, err)
	}
}

func TestSnapshotArchiver_KeepsNewest(t *testing.T) {
	bucket := NewMemoryStore("")
	archiver := NewSnapshotArchiver(bucket, nil, 2, discardLogger())

	archiveN(t, archiver, 1, 4)
	archiveN(t, archiver, 2, 1)

	keys := bucket.Keys()
	assert.Len(t, keys, 3)
	var event1 []string
	for _, k := range keys {
		if strings.HasPrefix(k, "snapshots/1/") {
			event1 = append(event1, k)
		}
	}
	require.Len(t, event1, 2)
	for _, k := range event1 {
		assert.True(t, strings.Contains(k, "T20") || strings.Contains(k, "T21"), "only the two newest survive: %s", k)
	}
}

type failingRemoveStore struct {
	*MemoryStore
	fail bool
}

func (s *failingRemoveStore) Remove(ctx context.Context, key string) error {
	if s.fail {
		return errors.New("bucket unavailable")
	}
	return s.MemoryStore.Remove(ctx, key)
}

func TestSnapshotArchiver_RetriesFailedRemoval(t *testing.T) {
	bucket := &failingRemoveStore{MemoryStore: NewMemoryStore(""), fail: true}
	archiver := NewSnapshotArchiver(bucket, nil, 1, discardLogger())

	archiveN(t, archiver, 1, 2)
	assert.Len(t, bucket.Keys(), 2)

	bucket.fail = false
	archiveN(t, archiver, 1, 1)
	assert.Len(t, bucket.Keys(), 1)
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/a/b.xlsx", publicURL("https://cdn.example.com", "a/b.xlsx", nil))
	assert.Equal(t, "https://cdn.example.com/x/a.xlsx", publicURL("https://cdn.example.com/x/", "/a.xlsx", nil))
	assert.Equal(t, "a.xlsx", publicURL("", "a.xlsx", nil))
	assert.Equal(t, "", publicURL("https://cdn.example.com", "", nil))
}
