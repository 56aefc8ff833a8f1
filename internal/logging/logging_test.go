package logging

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, time.UTC)

	fields := map[string]any{"component": "watcher", "event": "poll", "status": "error"}
	l.Log(fields)

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "watcher", got["component"])
	assert.Equal(t, "error", got["level"])
	assert.NotEmpty(t, got["ts"])

	_, mutated := fields["ts"]
	assert.False(t, mutated)
}

func TestLogger_ExplicitLevelWins(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, nil).Log(map[string]any{"level": "warn", "status": "error"})

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "warn", got["level"])
}

func TestLogger_NilIsNoop(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() { l.Log(map[string]any{"msg": "x"}) })
	assert.Equal(t, time.UTC, l.Location())
}

func TestLoadLocation(t *testing.T) {
	assert.Equal(t, time.UTC, LoadLocation(""))
	assert.Equal(t, time.UTC, LoadLocation("Not/AZone"))
	assert.Equal(t, "Europe/Paris", LoadLocation("Europe/Paris").String())
}
