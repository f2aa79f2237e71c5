package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"serial-monitor/internal/logging"
	"serial-monitor/internal/record"
)

var (
	replayInput      string
	replaySpeed      float64
	replayPrintOnly  bool
	replayConfigPath string
	replaySchemaPath string
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recorded sample log",
	Long:  "replay feeds samples from a JSONL recording back into the configured recording destinations or STDOUT.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		cfg, err := loadConfig(replayConfigPath, replaySchemaPath, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		// never append the replay to the file it reads
		if cfg.Recording.JSONLPath == replayInput {
			cfg.Recording.JSONLPath = ""
		}
		writer, cleanup, err := newWriters(cfg, replayPrintOnly)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		logger := logging.NewWithOptions(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
		ctx = logging.NewContext(ctx, logger)

		n, err := record.ReplayLogFile(ctx, replayInput, writer, replaySpeed)
		logger.Info("replay finished", "input", replayInput, "samples", n)
		return err
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to a JSONL sample recording")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier (0 replays without delay)")
	replayCmd.Flags().BoolVar(&replayPrintOnly, "print-only", false, "Print samples to STDOUT instead of the configured destinations")
	replayCmd.Flags().StringVar(&replayConfigPath, "config", "config/monitor.yaml", "Path to monitor configuration YAML")
	replayCmd.Flags().StringVar(&replaySchemaPath, "schema", "schemas/monitor.cue", "Path to CUE schema file")
	replayCmd.MarkFlagRequired("input")
}
