package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/buddyhq/buddy/internal/config"
	"github.com/buddyhq/buddy/internal/logging"
)

var (
	logLevel  string
	logFormat string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "buddy",
	Short: "BUDDY - social media management assistant",
	Long: `BUDDY answers Instagram, YouTube and Facebook questions by classifying
what you ask and searching the web for practical tips.

Run "buddy serve" for the web chat or "buddy chat" for a terminal conversation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envErr := godotenv.Load()

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		level := cfg.Log.Level
		if logLevel != "" {
			level = logLevel
		}
		format := cfg.Log.Format
		if logFormat != "" {
			format = logFormat
		}

		logger, err = logging.New(level, format)
		if err != nil {
			return err
		}
		zap.ReplaceGlobals(logger)

		if envErr != nil {
			logger.Debug("no .env file loaded, using process environment", zap.Error(envErr))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug|info|warn|error), overrides LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json|console), overrides LOG_FORMAT")

	rootCmd.AddCommand(serveCmd, chatCmd, speechCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
