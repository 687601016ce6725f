package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestCheckPasswordHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("logger-secret"), bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, CheckPasswordHash("logger-secret", string(hash)))
	assert.False(t, CheckPasswordHash("wrong", string(hash)))
	assert.False(t, CheckPasswordHash("logger-secret", "not-a-hash"))
}

func TestParseLocalDateTime(t *testing.T) {
	tests := []struct {
		name    string
		date    string
		clock   string
		want    time.Time
		wantErr bool
	}{
		{name: "iso", date: "2024-05-01", clock: "21:30:15", want: time.Date(2024, 5, 1, 21, 30, 15, 0, time.UTC)},
		{name: "no seconds", date: "2024-05-01", clock: "21:30", want: time.Date(2024, 5, 1, 21, 30, 0, 0, time.UTC)},
		{name: "european", date: "01.05.2024", clock: "08:05:00", want: time.Date(2024, 5, 1, 8, 5, 0, 0, time.UTC)},
		{name: "garbage", date: "yesterday", clock: "noon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLocalDateTime(tt.date, tt.clock, time.UTC)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	now, err := ParseLocalDateTime("", "", time.UTC)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), now, time.Minute)
}
