// Package main provides dmeshctl, a command-line tool for exercising a
// dmesh node: generating identities, sealing and inspecting messages,
// managing contacts, and running a sync session against a peer store.
//
// dmeshctl is a demonstration client, not part of the core's
// programmatic surface: embedding applications are expected to call the
// crypto, store, transport, and sync packages directly.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var storePath string

var rootCmd = &cobra.Command{
	Use:   "dmeshctl",
	Short: "dmeshctl manages a local dmesh node",
	Long: `dmeshctl is a reference command-line client for the dmesh messaging
core. It generates node identities, seals messages for delay-tolerant
delivery, manages contacts and trust state, and drives sync sessions
between two local stores.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "dmeshctl: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "dmesh.db", "path to the node's sqlite store (use :memory: for a scratch store)")
}
