package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "nodecycle"

	// TextfileName is the file written to the textfile collector directory.
	TextfileName = "nodecycle.prom"
)

// Delete modes.
const (
	ModeGraceful = "graceful"
	ModeForced   = "forced"
)

// Session holds the metrics of one maintenance session.
type Session struct {
	registry *prometheus.Registry
	node     string

	phaseDuration   *prometheus.GaugeVec
	podsDeleted     *prometheus.CounterVec
	residualPods    *prometheus.GaugeVec
	attachedVolumes *prometheus.GaugeVec
	escalations     *prometheus.CounterVec
	outcome         *prometheus.GaugeVec
	finished        *prometheus.GaugeVec
}

// New creates the metrics for a session against node.
func New(node string) *Session {
	s := &Session{
		registry: prometheus.NewRegistry(),
		node:     node,

		phaseDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "phase_duration_seconds",
				Help:      "Duration of each completed session phase",
			},
			[]string{"node", "phase"},
		),
		podsDeleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "drain",
				Name:      "pods_deleted_total",
				Help:      "Pods deleted during drain by mode",
			},
			[]string{"node", "mode"},
		),
		residualPods: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "drain",
				Name:      "residual_pods",
				Help:      "Pods still on the node after forced deletion",
			},
			[]string{"node"},
		),
		attachedVolumes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "attached_volumes",
				Help:      "Volumes still attached to the node when the quiescence wait ended",
			},
			[]string{"node"},
		),
		escalations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "service",
				Name:      "escalations_total",
				Help:      "Signals sent to the node agent after a graceful stop did not finish",
			},
			[]string{"node", "signal"},
		),
		outcome: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "outcome",
				Help:      "Set to 1 for the outcome of the last session",
			},
			[]string{"node", "outcome"},
		),
		finished: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "last_finished_timestamp_seconds",
				Help:      "Unix time the last session finished",
			},
			[]string{"node"},
		),
	}

	s.registry.MustRegister(
		s.phaseDuration,
		s.podsDeleted,
		s.residualPods,
		s.attachedVolumes,
		s.escalations,
		s.outcome,
		s.finished,
	)
	return s
}

// Registry exposes the session registry.
func (s *Session) Registry() *prometheus.Registry {
	return s.registry
}

// ObservePhase records how long phase took.
func (s *Session) ObservePhase(phase string, d time.Duration) {
	s.phaseDuration.WithLabelValues(s.node, phase).Set(d.Seconds())
}

// PodsDeleted adds n deletes of mode.
func (s *Session) PodsDeleted(mode string, n int) {
	if n > 0 {
		s.podsDeleted.WithLabelValues(s.node, mode).Add(float64(n))
	}
}

// SetResidual records the residual pod count.
func (s *Session) SetResidual(n int) {
	s.residualPods.WithLabelValues(s.node).Set(float64(n))
}

// SetAttachedVolumes records the attached volume count.
func (s *Session) SetAttachedVolumes(n int) {
	s.attachedVolumes.WithLabelValues(s.node).Set(float64(n))
}

// Escalated records a signal sent to the node agent.
func (s *Session) Escalated(signal string) {
	s.escalations.WithLabelValues(s.node, signal).Inc()
}

// Finish records the session outcome, replacing any earlier one.
func (s *Session) Finish(outcome string, at time.Time) {
	s.outcome.Reset()
	s.outcome.WithLabelValues(s.node, outcome).Set(1)
	s.finished.WithLabelValues(s.node).Set(float64(at.Unix()))
}

// WriteTextfile writes the registry to dir. An empty dir disables the
// export.
func (s *Session) WriteTextfile(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(filepath.Join(dir, TextfileName), s.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
