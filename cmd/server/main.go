package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/NicolasHaas/chatd/pkg/logging"
	"github.com/NicolasHaas/chatd/pkg/version"
)

var (
	// Path of the YAML config file; chatd.yaml in the working directory if empty
	configPath string

	dbPath    string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:           "chatd",
	Short:         "Line-oriented TCP chat server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "chatd", version.Full())
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML config file (default ./chatd.yaml)")
	flags.StringVar(&dbPath, "db", "", "SQLite database file path")
	flags.StringVar(&logLevel, "log-level", "", "Log level: "+logging.LevelNames())
	flags.StringVar(&logFormat, "log-format", "", "Log format: text or json")

	rootCmd.AddCommand(serveCmd, userCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "chatd:", err)
		os.Exit(1)
	}
}
