// Package health implements the read-only Health Auditor.
//
// [Auditor.Audit] queries API server liveness and readiness, the target
// node, cluster-wide pod phases, Argo CD sync state, Longhorn volume state
// and replica placement, and recent node warnings. The queries run
// concurrently. Every degraded condition becomes a [Warning] in the
// [Report]; the auditor itself never fails a session and never mutates
// anything.
package health
