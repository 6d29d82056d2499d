// Package preflight implements the Preflight Validator: option ranges,
// operator privilege, host tools, API reachability, node existence, role
// resolution and the per-node lock.
//
// Any violation is returned as a [*Failure]. Nothing is mutated before a
// Validator run succeeds.
package preflight
