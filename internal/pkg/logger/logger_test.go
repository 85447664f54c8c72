package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]string {
	t.Helper()
	var out []map[string]string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]string
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, WARN)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown", "segment_id", "s-1")
	l.Error("shown too")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "WARN", lines[0]["level"])
	assert.Equal(t, "s-1", lines[0]["segment_id"])
	assert.Equal(t, "ERROR", lines[1]["level"])
	assert.False(t, l.Enabled(INFO))
	assert.True(t, l.Enabled(ERROR))
}

func TestLogger_FieldsAndRedaction(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, DEBUG)
	l.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	l.Info("reconcile",
		"profile_email", "jane.doe@example.com",
		"phone", "+1 415 555 0199",
		"note", "contact bob@example.org please",
		"error", errors.New("boom"),
		"dangling")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	e := lines[0]
	assert.Equal(t, "2026-01-02T03:04:05Z", e["time"])
	assert.Equal(t, "ja***@example.com", e["profile_email"])
	assert.Equal(t, "***99", e["phone"])
	assert.Equal(t, "contact bo***@example.org please", e["note"])
	assert.Equal(t, "boom", e["error"])
	_, ok := e["dangling"]
	assert.False(t, ok)
}

func TestLogger_RedactionDisabled(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, INFO)
	l.SetRedactPII(false)
	l.Info("x", "email", "jane@example.com")
	assert.Equal(t, "jane@example.com", decodeLines(t, &buf)[0]["email"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DEBUG,
		" INFO ":  INFO,
		"warning": WARN,
		"warn":    WARN,
		"Error":   ERROR,
		"":        INFO,
		"verbose": INFO,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}

func TestRedactEmail(t *testing.T) {
	assert.Equal(t, "jo***@example.com", RedactEmail("john.doe@example.com"))
	assert.Equal(t, "***@example.com", RedactEmail("ab@example.com"))
	assert.Equal(t, "***@***", RedactEmail("not-an-email"))
}

func TestRedactPhone(t *testing.T) {
	assert.Equal(t, "***42", RedactPhone("(555) 010-4242"))
	assert.Equal(t, "***", RedactPhone("7"))
}
