package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogWriter(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	w := NewLogWriter(zap.New(core))

	e := NewEvent(EventSessionFailed, "p1")
	e.SessionID = "s1"
	e.Reason = "timeout"
	w.Write(e)
	w.Close()

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "tool_event", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "session_failed", fields["event_type"])
	assert.Equal(t, "s1", fields["session_id"])
	assert.Equal(t, "timeout", fields["reason"])
	assert.NotEmpty(t, fields["event_id"])
}
