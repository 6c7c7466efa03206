package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the freeslot application
var rootCmd = &cobra.Command{
	Use:   "freeslot",
	Short: "Find mutually free meeting slots across Google calendars",
	Long: `freeslot finds the earliest time that is free on a set of Google calendars
and can book the meeting there.

It can run as:
  - An MCP (Model Context Protocol) server for AI assistants
  - A CLI for one-off slot searches and credential checks`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "freeslot version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newFindSlotCmd())
	rootCmd.AddCommand(newScheduleCmd())
	rootCmd.AddCommand(newTokenStatusCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
	rootCmd.AddCommand(newVersionCmd())
}
