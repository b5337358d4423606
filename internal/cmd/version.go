package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ohcupload/ohcupload/internal/config"
	"github.com/ohcupload/ohcupload/internal/server/handlers"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information. Use --extended for full details including Crucible and Go versions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		info := handlers.CurrentVersion()

		_, _ = fmt.Fprintf(out, "%s %s\n", config.AppName, info.App.Version)
		if extended, _ := cmd.Flags().GetBool("extended"); !extended {
			return nil
		}

		_, _ = fmt.Fprintf(out, "Commit: %s\n", info.App.Commit)
		_, _ = fmt.Fprintf(out, "Built: %s\n", info.App.BuildDate)
		_, _ = fmt.Fprintf(out, "Go: %s\n\n", info.App.GoVersion)
		_, _ = fmt.Fprintf(out, "Gofulmen: %s\n", info.Dependencies.Gofulmen)
		_, _ = fmt.Fprintf(out, "Crucible: %s\n", info.Dependencies.Crucible)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolP("extended", "e", false, "show extended version information")
}
