package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadTimings_Defaults(t *testing.T) {
	timings := LoadTimings()

	assert.Equal(t, 15*time.Second, timings.APICall)
	assert.Equal(t, 2*time.Second, timings.DrainPoll)
	assert.Equal(t, 5*time.Second, timings.ForceSettle)
	assert.Equal(t, 5*time.Second, timings.QuiescePoll)
	assert.Equal(t, 10*time.Second, timings.ServiceStopWait)
	assert.Equal(t, 3*time.Second, timings.EscalationSettle)
	assert.Equal(t, 3, timings.RetryMaxAttempts)
}

func TestLoadTimings_EnvOverrides(t *testing.T) {
	t.Setenv("NODECYCLE_DRAIN_POLL", "250ms")
	t.Setenv("NODECYCLE_QUIESCE_POLL", "1s")
	t.Setenv("NODECYCLE_RETRY_MAX_ATTEMPTS", "7")

	timings := LoadTimings()

	assert.Equal(t, 250*time.Millisecond, timings.DrainPoll)
	assert.Equal(t, time.Second, timings.QuiescePoll)
	assert.Equal(t, 7, timings.RetryMaxAttempts)
}

func TestLoadTimings_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("NODECYCLE_FORCE_SETTLE", "soon")
	t.Setenv("NODECYCLE_SERVICE_STOP_WAIT", "-5s")
	t.Setenv("NODECYCLE_RETRY_MAX_ATTEMPTS", "-1")

	timings := LoadTimings()

	assert.Equal(t, 5*time.Second, timings.ForceSettle)
	assert.Equal(t, 10*time.Second, timings.ServiceStopWait)
	assert.Equal(t, 3, timings.RetryMaxAttempts)
}
