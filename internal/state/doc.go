// Package state holds everything a session persists on the node itself.
//
// The [MarkerStore] keeps one CordonMarker file per node. A marker exists
// exactly when this tool cordoned the node and has not yet confirmed it
// uncordoned; it is written atomically so a crash can never leave a torn
// file behind.
//
// The [Journal] is a per-node bbolt database. Opening it takes an exclusive
// file lock, which is what guarantees a single mutating session per node. It
// also records every session and its phase transitions for later review.
package state
