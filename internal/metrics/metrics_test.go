package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Records(t *testing.T) {
	t.Parallel()
	s := New("worker-1")

	s.ObservePhase("drain", 1500*time.Millisecond)
	s.PodsDeleted(ModeGraceful, 4)
	s.PodsDeleted(ModeForced, 1)
	s.PodsDeleted(ModeForced, 0)
	s.SetResidual(1)
	s.SetAttachedVolumes(0)
	s.Escalated("SIGTERM")
	s.Finish("completed", time.Unix(1700000000, 0))

	assert.InDelta(t, 1.5, testutil.ToFloat64(s.phaseDuration.WithLabelValues("worker-1", "drain")), 0.001)
	assert.Equal(t, 4.0, testutil.ToFloat64(s.podsDeleted.WithLabelValues("worker-1", ModeGraceful)))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.podsDeleted.WithLabelValues("worker-1", ModeForced)))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.residualPods.WithLabelValues("worker-1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.escalations.WithLabelValues("worker-1", "SIGTERM")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.outcome.WithLabelValues("worker-1", "completed")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(s.finished.WithLabelValues("worker-1")))
}

func TestSession_WriteTextfile(t *testing.T) {
	t.Parallel()
	s := New("worker-1")
	s.ObservePhase("cordon", time.Second)

	dir := filepath.Join(t.TempDir(), "textfile")
	require.NoError(t, s.WriteTextfile(dir))

	data, err := os.ReadFile(filepath.Join(dir, TextfileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), `nodecycle_session_phase_duration_seconds{node="worker-1",phase="cordon"} 1`)
}

func TestSession_WriteTextfileDisabled(t *testing.T) {
	t.Parallel()
	assert.NoError(t, New("worker-1").WriteTextfile(""))
}

func TestSession_FinishReplacesOutcome(t *testing.T) {
	t.Parallel()
	s := New("worker-1")

	s.Finish("completed", time.Now())
	s.Finish("rolled-back", time.Now())

	assert.Equal(t, 1, testutil.CollectAndCount(s.outcome))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.outcome.WithLabelValues("worker-1", "rolled-back")))
}
