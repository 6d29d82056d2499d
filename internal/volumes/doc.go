// Package volumes mirrors Longhorn volume state read-only and implements the
// storage quiescence wait.
//
// The [Reader] lists volumes, replicas and settings through the dynamic
// client. The [Waiter] polls until no volume is attached to a node, bounded
// by a deadline; on expiry it returns a [QuiesceTimeoutError] carrying the
// volumes that are still attached.
package volumes
