// Package service stops the node's orchestration agent.
//
// The k3s unit is stopped through systemd over D-Bus. When the unit is
// still active after the stop wait, the controller escalates to SIGTERM and
// then SIGKILL, each followed by a settle pause. A unit that survives the
// whole ladder is reported, never retried; the power action still runs.
package service
