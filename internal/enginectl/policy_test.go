package enginectl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldRestart(t *testing.T) {
	now := time.Now()
	threshold := 90 * time.Second

	tests := []struct {
		name      string
		lastTime  time.Time
		lastModel string
		requested string
		want      bool
	}{
		{
			name:      "no prior activity never restarts",
			requested: "llama3",
			want:      false,
		},
		{
			name:      "recent activity same model",
			lastTime:  now.Add(-10 * time.Second),
			lastModel: "llama3",
			requested: "llama3",
			want:      false,
		},
		{
			name:      "idle past threshold same model",
			lastTime:  now.Add(-2 * time.Minute),
			lastModel: "llama3",
			requested: "llama3",
			want:      true,
		},
		{
			name:      "idle exactly at threshold",
			lastTime:  now.Add(-threshold),
			lastModel: "llama3",
			requested: "llama3",
			want:      true,
		},
		{
			name:      "model changed regardless of idle time",
			lastTime:  now.Add(-1 * time.Second),
			lastModel: "llama3",
			requested: "mistral",
			want:      true,
		},
		{
			name:      "model changed and idle",
			lastTime:  now.Add(-3 * time.Minute),
			lastModel: "llama3",
			requested: "mistral",
			want:      true,
		},
		{
			name:      "idle time recorded but no model",
			lastTime:  now.Add(-10 * time.Second),
			requested: "llama3",
			want:      false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ShouldRestart(tc.requested, tc.lastTime, tc.lastModel, threshold, now)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestActivityStateRecordAndSnapshot(t *testing.T) {
	var a ActivityState

	lastTime, lastModel := a.Snapshot()
	assert.True(t, lastTime.IsZero())
	assert.Empty(t, lastModel)
	assert.False(t, a.ShouldRestart("llama3", DefaultIdleThreshold))

	a.Record("llama3")
	lastTime, lastModel = a.Snapshot()
	assert.False(t, lastTime.IsZero())
	assert.Equal(t, "llama3", lastModel)

	assert.False(t, a.ShouldRestart("llama3", DefaultIdleThreshold))
	assert.True(t, a.ShouldRestart("mistral", DefaultIdleThreshold))
}
