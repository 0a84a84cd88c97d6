package logger

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/peterldowns/testy/check"
)

func TestFormatRFC3339Millis(t *testing.T) {
	ts := time.Date(2024, 3, 5, 7, 8, 9, 123456789, time.FixedZone("X", 3600))
	check.Equal(t, "2024-03-05T06:08:09.123Z", formatRFC3339Millis(ts))
}

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, false)

	log.Debug("hidden")
	log.Info("engine: auction created", "auction_id", 3, "note", "")

	out := buf.String()
	check.False(t, strings.Contains(out, "hidden"))
	check.True(t, strings.Contains(out, "engine: auction created"))
	check.True(t, strings.Contains(out, "auction_id=3"))
	check.False(t, strings.Contains(out, "note="))

	buf.Reset()
	NewWithWriter(&buf, true).Debug("shown")
	check.True(t, strings.Contains(buf.String(), "shown"))
}
