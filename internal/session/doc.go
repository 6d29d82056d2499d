// Package session runs one maintenance session against one node.
//
// A session is a sequential state machine:
//
//	Uninitialized → Validated → Audited → Confirmed → Cordoned → Draining →
//	Drained → StorageQuiescent → ServiceStopped → PoweredOff
//
// plus the terminal RolledBack phase, reachable from Cordoned or later.
// Every transition is logged and recorded in the node's journal.
//
// The [InterruptHandler] is registered when a session starts. On SIGINT,
// SIGTERM or SIGHUP it uncordons the node if this tool cordoned it, removes
// the cordon marker and exits with status 130.
package session
