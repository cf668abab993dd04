package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the inboxdraft application
var rootCmd = &cobra.Command{
	Use:   "inboxdraft",
	Short: "Personal email assistant backend for Gmail",
	Long: `inboxdraft is the web backend of a personal email assistant.

It connects a mailbox through the Google OAuth2 consent flow, lists unread
messages, summarizes them and drafts replies with a completions model, and
writes drafts back to Gmail.`,
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
	rootCmd.SetVersionTemplate(`{{printf "inboxdraft version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
