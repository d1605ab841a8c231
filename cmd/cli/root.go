package main

import (
	"os"

	"github.com/flipsave/flipsave/internal/bootstrap"
	"github.com/flipsave/flipsave/internal/config"
	"github.com/flipsave/flipsave/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	cfg *config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "flipsave",
	Short: "Extract structured offers from financial text with Gemini",
	Long: `FlipSave fetches offer and news blurbs, asks Gemini to extract a structured
record from each one, validates the answers and writes the offers dataset.

Typical flow:
  flipsave fetch      # NewsAPI -> data/raw_api_data.json
  flipsave process    # raw items -> data/processed_offers_from_api.csv
  flipsave report     # dashboard aggregates over the dataset

or simply "flipsave run" for fetch and process in one go.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}

		log = logger.Configure(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		cmd.SetContext(logger.WithContext(cmd.Context(), log))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./flipsave.yaml or ~/.flipsave/flipsave.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)",
	)

	rootCmd.AddCommand(fetchCmd, processCmd, runCmd, extractCmd, reportCmd, uploadCmd, loadBQCmd, syncNotionCmd)
}

// newApp builds the shared components for a command.
func newApp(cmd *cobra.Command) *bootstrap.App {
	return bootstrap.New(cmd.Context(), cfg, "cli")
}
