package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/lan-tournament/models"
)

func TestParseRecord(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "12.345", want: 12345},
		{in: "12.3", want: 12300},
		{in: "12.34", want: 12340},
		{in: "1:02.500", want: 62500},
		{in: "01:00:00.001", want: 3600001},
		{in: "90:00.000", want: 5400000},
		{in: " 59.999 ", want: 59999},
		{in: "0.000", want: 0},
		{in: "12", wantErr: true},
		{in: "12.", wantErr: true},
		{in: "12.3456", wantErr: true},
		{in: "1:60.000", wantErr: true},
		{in: "1:2:3:4.000", wantErr: true},
		{in: ":12.000", wantErr: true},
		{in: "a:12.000", wantErr: true},
		{in: "-1.000", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRecord(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRecord)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubmitRecord(t *testing.T) {
	f := newFixture(t)
	at := time.Date(2024, 5, 1, 21, 0, 0, 0, time.UTC)

	outcome, err := f.timeTrials.SubmitRecord(f.ctx, testEvent, "user1", "A01", at, "45.120")
	require.NoError(t, err)
	assert.Equal(t, models.RecordAdded, outcome)

	outcome, err = f.timeTrials.SubmitRecord(f.ctx, testEvent, "USER1", "A01", at, "46.000")
	require.NoError(t, err)
	assert.Equal(t, models.RecordNoImprovement, outcome)

	outcome, err = f.timeTrials.SubmitRecord(f.ctx, testEvent, "user1", "A01", at.Add(time.Minute), "44.9")
	require.NoError(t, err)
	assert.Equal(t, models.RecordImproved, outcome)

	maps, err := f.timeTrials.ListMaps(f.ctx, testEvent)
	require.NoError(t, err)
	require.Len(t, maps, 1)
	assert.Equal(t, "A01", maps[0].Name)

	records, err := f.timeTrials.ListRecords(f.ctx, maps[0].ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 44900, records[0].Millis)
	assert.Equal(t, 1, records[0].UserID)

	_, err = f.timeTrials.SubmitRecord(f.ctx, testEvent, "nobody", "A01", at, "40.000")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.timeTrials.SubmitRecord(f.ctx, testEvent, "user1", "A01", at, "fast")
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = f.timeTrials.SubmitRecord(f.ctx, testEvent, "user1", " ", at, "40.000")
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = f.timeTrials.ListRecords(f.ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProcessMap(t *testing.T) {
	f := newFixture(t)
	at := time.Date(2024, 5, 1, 21, 0, 0, 0, time.UTC)
	submissions := map[string]string{
		"user1": "1:10.000",
		"user2": "1:10.000",
		"user3": "1:12.500",
		"user4": "2:00.000",
	}
	for user, record := range submissions {
		_, err := f.timeTrials.SubmitRecord(f.ctx, testEvent, user, "B02", at, record)
		require.NoError(t, err)
	}
	maps, err := f.timeTrials.ListMaps(f.ctx, testEvent)
	require.NoError(t, err)
	require.Len(t, maps, 1)
	mapID := maps[0].ID

	err = f.timeTrials.ProcessMap(f.ctx, 2, mapID)
	assert.ErrorIs(t, err, ErrNotFound, "map of another event")

	require.NoError(t, f.timeTrials.ProcessMap(f.ctx, testEvent, mapID))

	for user, points := range map[int]int{1: 25, 2: 25, 3: 15, 4: 12} {
		assert.Equal(t, points, f.points(t, user), "user %d", user)
	}

	awards, err := f.rankings.Awards(f.ctx, testEvent)
	require.NoError(t, err)
	descriptions := make([]string, len(awards))
	for i, a := range awards {
		descriptions[i] = a.Description
	}
	assert.Contains(t, descriptions, "Time trial (#3, B02)")

	err = f.timeTrials.ProcessMap(f.ctx, testEvent, mapID)
	assert.ErrorIs(t, err, ErrInvalidState, "a map pays out once")
	assert.Equal(t, 25, f.points(t, 1))

	_, err = f.timeTrials.SubmitRecord(f.ctx, testEvent, "user5", "B02", at, "1:00.000")
	assert.ErrorIs(t, err, ErrInvalidState)

	assert.ErrorIs(t, f.timeTrials.ProcessMap(f.ctx, testEvent, 999), ErrNotFound)
}
