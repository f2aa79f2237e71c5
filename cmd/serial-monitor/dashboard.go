package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"serial-monitor/internal/dashboard"
)

var (
	dashOut        string
	dashConfigPath string
	dashSchemaPath string
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Render Grafana dashboards for recorded samples",
	Long:  "dashboard renders Grafana dashboards for the GreptimeDB sample table. GREPTIMEDB_DATASOURCE_UID must be set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(dashConfigPath, dashSchemaPath, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		if err := dashboard.Render(dashOut, dashboard.Params{Table: cfg.Recording.Greptime.Table}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "dashboards written to %s\n", dashOut)
		return nil
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashOut, "out", "build", "Output directory")
	dashboardCmd.Flags().StringVar(&dashConfigPath, "config", "config/monitor.yaml", "Path to monitor configuration YAML")
	dashboardCmd.Flags().StringVar(&dashSchemaPath, "schema", "schemas/monitor.cue", "Path to CUE schema file")
}
