package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is overridden by the release build.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the tool version.",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println("wiznet " + version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
