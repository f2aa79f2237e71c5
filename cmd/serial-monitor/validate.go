package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"serial-monitor/internal/config"
)

var (
	validateConfigPath string
	validateSchemaPath string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a monitor configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(validateConfigPath, validateSchemaPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (window=%s buffer=%d baud=%d)\n",
			validateConfigPath, cfg.Window, cfg.Buffer.Size, cfg.Serial.BaudRate)
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateConfigPath, "config", "config/monitor.yaml", "Path to monitor configuration YAML")
	validateCmd.Flags().StringVar(&validateSchemaPath, "schema", "schemas/monitor.cue", "Path to CUE schema file")
}
