// Package main is the entry point for the nodecycle CLI.
//
// nodecycle takes a node of a small k3s cluster out of service for
// maintenance: it cordons and drains the node, waits for Longhorn volumes to
// detach, stops the k3s service and powers the machine off or reboots it.
// An interrupted run puts the node back into service.
//
// Commands: audit, restore, history, version.
//
// For detailed usage information, run:
//
//	nodecycle --help
package main

import (
	"context"
	"os"

	"github.com/imamik/nodecycle/cmd/nodecycle/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	os.Exit(commands.Execute(context.Background(), os.Args[1:], os.Stderr))
}
