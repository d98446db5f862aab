package main

import (
	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "advanced",
	Short:   "Serve a live WebSocket feed of plan edits",
	Long: `Start the dashboard server together with the inbox daemon, so plans
imported through the inbox show up as they land.

WebSocket messages:
- plan_update, day_update, exercise_update, set_update: one edit
- cascade: an interrupted cascade was finished
- stats: event counts, sent after every edit and on connect

Endpoints:
  ws://HOST:PORT/ws
  http://HOST:PORT/health
  http://HOST:PORT/metrics

The port comes from dashboard.port (default 8080), or --port.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("port") {
			cfg.Dashboard.Port, _ = cmd.Flags().GetInt("port")
		}
		runDaemon(cmd, true)
	},
}

func init() {
	dashboardCmd.Flags().Int("port", 8080, "port to listen on")
	rootCmd.AddCommand(dashboardCmd)
}
