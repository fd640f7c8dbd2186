// Package main is the entry point for the rollcall CLI.
//
// Rollcall can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	rollcall serve -c config.yaml    # Start the server
//	rollcall validate -c config.yaml # Validate configuration
//	rollcall version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "rollcall",
	Short: "A real-time classroom attendance server",
	Long: `Rollcall is a real-time classroom attendance server.

Teachers mark students as arrived or departed from any browser, and every
open page sees the change immediately over WebSocket. State is held in
memory; the pages keep a local copy and restore it after a restart.

Quick start:
  1. Create a config file (rollcall.yaml)
  2. Run: rollcall serve -c rollcall.yaml
  3. Open http://localhost:8000 in your browser

Example config:
  port: 8000
  classrooms:
    - name: 一年甲班
      path: class-1a
      students: [Bob, Alice]`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this rollcall binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rollcall %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
