package jobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filmstrip/internal/config"
	"filmstrip/internal/logger"
)

func TestRunnerPingsHealthcheckOnSuccess(t *testing.T) {
	pinged := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pinged <- struct{}{}
	}))
	defer server.Close()

	cfg := config.JobsConfig{
		Timezone:     "UTC",
		Healthchecks: map[string]string{"good-job": server.URL},
	}
	runner, err := NewRunner(cfg, logger.New())
	require.NoError(t, err)

	ran := false
	require.NoError(t, runner.Register(Job{
		Name:     "good-job",
		Schedule: "@daily",
		Run:      func(ctx context.Context) error { ran = true; return nil },
	}, cfg))

	require.NoError(t, runner.RunNow("good-job"))
	assert.True(t, ran)

	select {
	case <-pinged:
	case <-time.After(2 * time.Second):
		t.Fatal("healthcheck was never pinged")
	}
}

func TestRunnerSkipsHealthcheckOnFailure(t *testing.T) {
	pinged := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pinged <- struct{}{}
	}))
	defer server.Close()

	cfg := config.JobsConfig{
		Timezone:     "UTC",
		Healthchecks: map[string]string{"bad-job": server.URL},
	}
	runner, err := NewRunner(cfg, logger.New())
	require.NoError(t, err)

	require.NoError(t, runner.Register(Job{
		Name:     "bad-job",
		Schedule: "@daily",
		Run:      func(ctx context.Context) error { return errors.New("boom") },
	}, cfg))

	require.Error(t, runner.RunNow("bad-job"))

	select {
	case <-pinged:
		t.Fatal("a failed run must not ping the healthcheck")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRunnerConfigScheduleOverride(t *testing.T) {
	cfg := config.JobsConfig{
		Timezone:  "UTC",
		Schedules: map[string]string{"job": "0 3 * * *"},
	}
	runner, err := NewRunner(cfg, logger.New())
	require.NoError(t, err)

	require.NoError(t, runner.Register(Job{
		Name:     "job",
		Schedule: "@hourly",
		Run:      func(ctx context.Context) error { return nil },
	}, cfg))
	assert.Equal(t, "0 3 * * *", runner.jobs["job"].Schedule)
}

func TestRunnerRejectsUnknownJob(t *testing.T) {
	runner, err := NewRunner(config.JobsConfig{Timezone: "UTC"}, logger.New())
	require.NoError(t, err)
	assert.Error(t, runner.RunNow("no-such-job"))
}

func TestRunnerRejectsBadTimezone(t *testing.T) {
	_, err := NewRunner(config.JobsConfig{Timezone: "Mars/Olympus"}, logger.New())
	assert.Error(t, err)
}
