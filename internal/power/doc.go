// Package power performs the terminal machine-level action.
//
// Buffers are flushed with sync(2) and the machine is rebooted or powered
// off through logind, falling back to reboot(2) when logind is unreachable.
package power
