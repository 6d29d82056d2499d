package config

import (
	"os"
	"strconv"
	"time"
)

// Timings holds the internal intervals that are not exposed as flags.
// These values can be customized via environment variables.
type Timings struct {
	APICall           time.Duration // Bound on every single API request
	DrainPoll         time.Duration // Interval between pod re-enumerations while draining
	ForceSettle       time.Duration // Pause after forced deletions before the final enumeration
	QuiescePoll       time.Duration // Interval between storage volume checks
	ServiceStopWait   time.Duration // Wait after a graceful unit stop before escalating
	EscalationSettle  time.Duration // Pause between SIGTERM and SIGKILL escalation steps
	NodeReadyWait     time.Duration // Restore: how long to wait for the node to become Ready
	NodeReadyPoll     time.Duration // Restore: interval between readiness checks
	LockTimeout       time.Duration // How long to wait for the per-node lock before failing
	RetryMaxAttempts  int           // Maximum number of API retry attempts
	RetryInitialDelay time.Duration // Initial delay between API retries
}

// LoadTimings loads timing configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - NODECYCLE_TIMEOUT_API_CALL (default: 15s)
//   - NODECYCLE_DRAIN_POLL (default: 2s)
//   - NODECYCLE_FORCE_SETTLE (default: 5s)
//   - NODECYCLE_QUIESCE_POLL (default: 5s)
//   - NODECYCLE_SERVICE_STOP_WAIT (default: 10s)
//   - NODECYCLE_ESCALATION_SETTLE (default: 3s)
//   - NODECYCLE_NODE_READY_WAIT (default: 10m)
//   - NODECYCLE_NODE_READY_POLL (default: 10s)
//   - NODECYCLE_LOCK_TIMEOUT (default: 1s)
//   - NODECYCLE_RETRY_MAX_ATTEMPTS (default: 3)
//   - NODECYCLE_RETRY_INITIAL_DELAY (default: 500ms)
func LoadTimings() *Timings {
	return &Timings{
		APICall:           parseDuration("NODECYCLE_TIMEOUT_API_CALL", 15*time.Second),
		DrainPoll:         parseDuration("NODECYCLE_DRAIN_POLL", 2*time.Second),
		ForceSettle:       parseDuration("NODECYCLE_FORCE_SETTLE", 5*time.Second),
		QuiescePoll:       parseDuration("NODECYCLE_QUIESCE_POLL", 5*time.Second),
		ServiceStopWait:   parseDuration("NODECYCLE_SERVICE_STOP_WAIT", 10*time.Second),
		EscalationSettle:  parseDuration("NODECYCLE_ESCALATION_SETTLE", 3*time.Second),
		NodeReadyWait:     parseDuration("NODECYCLE_NODE_READY_WAIT", 10*time.Minute),
		NodeReadyPoll:     parseDuration("NODECYCLE_NODE_READY_POLL", 10*time.Second),
		LockTimeout:       parseDuration("NODECYCLE_LOCK_TIMEOUT", 1*time.Second),
		RetryMaxAttempts:  parseInt("NODECYCLE_RETRY_MAX_ATTEMPTS", 3),
		RetryInitialDelay: parseDuration("NODECYCLE_RETRY_INITIAL_DELAY", 500*time.Millisecond),
	}
}

// parseDuration parses a positive duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}

	return d
}

// parseInt parses a non-negative integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}

	return i
}
