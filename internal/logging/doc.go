// Package logging provides the session logger: a zerolog logger that writes
// JSON lines to an append-only file per invocation and a human readable
// console stream at the same time.
//
// Phase transitions and mutating calls are recorded as structured events
// (see [EventType]) so that the log file alone is enough to reconstruct what
// a session did to the cluster and the host.
package logging
