package cmd

import (
	"os"

	"github.com/resonatehq/syncevents/cmd/serve"
	"github.com/resonatehq/syncevents/cmd/sync"
	"github.com/resonatehq/syncevents/cmd/version"
	"github.com/resonatehq/syncevents/cmd/watch"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "syncevents",
		Short:        "Observable persistence operations",
		SilenceUsage: true,
	}

	// Flags
	cmd.PersistentFlags().StringP("config", "c", "", "config file (default syncevents.yaml)")
	cmd.PersistentFlags().String("log-level", "info", "can be one of: debug, info, warn, error, off")
	cmd.PersistentFlags().String("log-format", "text", "can be one of: text, json")
	cmd.PersistentFlags().Bool("ignore-asserts", false, "ignore-asserts mode")
	_ = viper.BindPFlag("ignore-asserts", cmd.PersistentFlags().Lookup("ignore-asserts"))

	// Add Subcommands
	cmd.AddCommand(serve.NewCmd())
	cmd.AddCommand(sync.NewCmd())
	cmd.AddCommand(watch.NewCmd())
	cmd.AddCommand(version.VersionCmd)

	// Set default output
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	return cmd
}

func Execute() {
	if err := NewCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
