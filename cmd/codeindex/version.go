package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/dshills/codeindex/internal/storage"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "codeindex %s\n", version)
		fmt.Fprintf(out, "Build Time:    %s\n", buildTime)
		fmt.Fprintf(out, "Go:            %s\n", runtime.Version())
		fmt.Fprintf(out, "Build Mode:    %s\n", storage.BuildMode)
		fmt.Fprintf(out, "SQLite Driver: %s\n", storage.DriverName)
	},
}
