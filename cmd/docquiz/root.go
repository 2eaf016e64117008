package main

import (
	"fmt"

	"docquiz/internal/config"
	"docquiz/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "docquiz",
	Short: "Generate multiple-choice quizzes from documents",
	Long: `docquiz extracts the text of a PDF, PPTX or TXT document and asks a
language model to write multiple-choice questions about it.

Without a subcommand it starts the web server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Log level (overrides LOG_LEVEL)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(extractCmd)
}

// loadConfig reads the configuration and sets up the process logger.
func loadConfig(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	log := logger.Initialize(cfg.Log)
	if cfg.File != "" {
		log.Debug("Loaded config file", zap.String("file", cfg.File))
	}
	return cfg, log, nil
}
