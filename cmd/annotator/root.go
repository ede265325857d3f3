package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/annotator/internal/api"
	"github.com/jackzampolin/annotator/internal/config"
	"github.com/jackzampolin/annotator/internal/home"
	"github.com/jackzampolin/annotator/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
	taskName     string
)

// Populated by the root PersistentPreRunE.
var (
	logger *slog.Logger
	homes  *home.Dir
	cfgMgr *config.Manager
)

var rootCmd = &cobra.Command{
	Use:   "annotator",
	Short: "Annotate documents with LLM-powered NER, summarization and entity linking",
	Long: `Annotator renders prompts for documents, sends them to an OpenAI-compatible
model and parses the responses back into structured annotations.

Supported tasks:
  - ner            labeled entity spans aligned to token boundaries
  - summarization  a summary written to a document field
  - entity_linker  knowledge-base ids for existing entity spans`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := api.SetOutputFormat(outputFormat); err != nil {
			return err
		}

		var level slog.Level
		if err := level.UnmarshalText([]byte(logLevel)); err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		homes = h

		mgr, err := config.NewManager(cfgFile, h.Path())
		if err != nil {
			return err
		}
		cfgMgr = mgr
		if f := mgr.ConfigFile(); f != "" {
			logger.Debug("loaded config", "path", f)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./annotator.yaml or ~/.annotator/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "annotator home directory (default: ~/.annotator)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", string(api.DefaultOutput), "output format: jsonl, json or yaml",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn or error",
	)
	rootCmd.PersistentFlags().StringVarP(
		&taskName, "task", "t", "", "saved task to load from the home directory",
	)

	rootCmd.AddCommand(versionCmd)
}
