// Command contactctl is the operator tool for contact-bot: it converts
// between chat markdown and rich text, shows how a message is classified,
// plays a local game on the terminal, and manages the stored Twitch token
// and the database schema.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load(".env")
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:          "contactctl",
		Short:        "Operator tool for contact-bot",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			lvl := slog.LevelWarn
			if verbose {
				lvl = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl})))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(newFormatCmd(), newRenderCmd(), newClassifyCmd(), newPlayCmd(), newTokensCmd(), newDBCmd())
	return root
}
