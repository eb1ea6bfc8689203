package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	configPath string

	rootCmd = &cobra.Command{
		Use:   "serialz",
		Short: "Response payload serialization server",
		Long: `serialz runs an HTTP server whose responses are normalized by the
serialz orchestrator before they are written.

Use "serve" to start the demo routes and "schemas" to check a configuration
and list the schemas it loads.`,
		Version: version,
		PersistentPreRun: func(*cobra.Command, []string) {
			initLogging()
		},
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(schemasCmd)
}

func initLogging() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
}
