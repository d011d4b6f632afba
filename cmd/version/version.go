package version

import (
	"fmt"

	"github.com/resonatehq/syncevents/internal/version"
	"github.com/spf13/cobra"
)

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the syncevents version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "syncevents version", version.Full())
	},
}
