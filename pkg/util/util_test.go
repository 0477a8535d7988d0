package util

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Format(t *testing.T) {
	var buf bytes.Buffer

	newLogger(&buf, "production", "").Info("hello", "lead_id", "abc")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"lead_id":"abc"`)

	buf.Reset()
	newLogger(&buf, "development", "").Debug("dev line")
	assert.Contains(t, buf.String(), "msg=\"dev line\"")
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer

	newLogger(&buf, "production", "").Debug("hidden")
	assert.Empty(t, buf.String())

	newLogger(&buf, "production", "debug").Debug("shown")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	newLogger(&buf, "development", "WARN").Info("quiet")
	assert.Empty(t, buf.String())

	newLogger(&buf, "development", "loud").Debug("fallback")
	assert.Contains(t, buf.String(), "fallback")
}

func TestNextCronTime(t *testing.T) {
	from := time.Date(2024, 3, 1, 7, 30, 0, 0, time.UTC)

	next, err := NextCronTime("0 8 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), next)

	_, err = NextCronTime("not a cron", from)
	assert.Error(t, err)
}

func TestParseCron(t *testing.T) {
	_, err := ParseCron("*/15 * * * *")
	assert.NoError(t, err)

	hourly, err := ParseCron("@hourly")
	require.NoError(t, err)
	from := time.Date(2024, 3, 1, 7, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), hourly.Next(from))

	_, err = ParseCron("* * *")
	assert.ErrorContains(t, err, `"* * *"`)
}

func TestNewScheduler_RecoversPanics(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	scheduler := NewScheduler(logger)
	_, err := scheduler.AddFunc("@every 1s", func() {
		panic("report exploded")
	})
	require.NoError(t, err)

	// Run the job directly through the configured chain.
	scheduler.Entries()[0].WrappedJob.Run()

	assert.Contains(t, buf.String(), "report exploded")
	assert.Contains(t, buf.String(), "component=scheduler")
}
