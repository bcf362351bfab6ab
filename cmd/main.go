package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"dreamer/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:   "dreamer",
	Short: "Dream analysis, illustration and animation service",
	// Running without a subcommand starts the server.
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, historyCmd, personaCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the configuration and applies its log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level, _ := log.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)
	return cfg, nil
}
