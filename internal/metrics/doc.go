// Package metrics records per-session Prometheus metrics.
//
// Each session has its own registry. When a textfile directory is
// configured, the registry is written there for node-exporter's textfile
// collector at the end of the session, since the process does not outlive
// the node it is taking down.
package metrics
