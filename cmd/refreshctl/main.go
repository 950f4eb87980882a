// Package main provides refreshctl, the operator CLI for the refresh API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"nof0-refresh/pkg/confkit"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:          "refreshctl",
	Short:        "Operate the cascading refresh orchestrator",
	Long:         "refreshctl triggers refresh cycles, reports worker outcomes by hand and inspects runs through the refresher REST API.",
	SilenceUsage: true,
}

func init() {
	defaultServer := os.Getenv("REFRESHER_URL")
	if defaultServer == "" {
		defaultServer = "http://127.0.0.1:8888"
	}
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", defaultServer, "Refresher base URL (env REFRESHER_URL)")
}

func main() {
	confkit.LoadDotenvOnce()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
