package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "oaipmh",
	Short:         "OAI-PMH data provider for a library record index",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	defaultConfig := os.Getenv("OAI_CONFIG")
	if defaultConfig == "" {
		defaultConfig = "config.yaml"
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfig, "path to the yaml configuration")

	rootCmd.AddCommand(serveCmd, migrateCmd, importCmd, deleteCmd, purgeTokensCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
