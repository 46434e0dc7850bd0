// The wiznet command exercises the network coprocessor driver against
// the bundled device model.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any
// subcommands.
var rootCmd = &cobra.Command{
	Use: "wiznet",
	Short: "Drive a hardware-offloaded TCP/IP socket device through " +
		"its SPI register interface.",
	Long: `The wiznet tool runs the socket driver against a simulated ` +
		`device on a virtual-time engine. It can trace every bus ` +
		`transfer into SQLite and serve a monitoring endpoint while ` +
		`the demo runs.`,
}

func main() {
	// A .env file can preset the network addressing; missing files
	// are fine.
	_ = godotenv.Load()

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// envOr returns the environment value for key, or the fallback when
// unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
