package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Guan-Eric/FitLife/internal/daemon"
	"github.com/Guan-Eric/FitLife/internal/dashboard"
	fitsync "github.com/Guan-Eric/FitLife/internal/sync"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "advanced",
	Short:   "Import plan files dropped into the inbox directory",
	Long: `Watch the inbox directory (daemon.inbox, default .fitlife/inbox) and
import every JSON or YAML plan file written there. Imported files move to
processed/, unreadable ones to failed/. Interrupted cascades are replayed
every daemon.resume_interval.

With --dashboard, edits are also streamed to WebSocket clients.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withDashboard, _ := cmd.Flags().GetBool("dashboard")
		runDaemon(cmd, withDashboard)
	},
}

// runDaemon runs the inbox daemon, and optionally the dashboard, until the
// command's context is cancelled.
func runDaemon(cmd *cobra.Command, withDashboard bool) {
	if err := cfg.RequireUser(); err != nil {
		fatalf("%v", err)
	}

	var (
		server   *dashboard.Server
		notifier fitsync.Notifier
	)
	if withDashboard {
		server = dashboard.NewServer(&dashboard.Config{
			Host:   cfg.Dashboard.Host,
			Port:   cfg.Dashboard.Port,
			Logger: logs.Logger("dashboard"),
		})
		notifier = dashboard.NewHandler(server, logs.Logger("dashboard"))
	}

	a, err := openApp(cmd.Context(), notifier)
	if err != nil {
		fatalf("%v", err)
	}
	defer a.Close()

	if server != nil {
		if err := server.Start(); err != nil {
			a.fatalf("failed to start dashboard: %v", err)
		}
		defer func() { _ = server.Stop() }()
		fmt.Printf("Dashboard on http://%s (WebSocket at /ws)\n", server.GetAddr())
	}

	d, err := daemon.NewWithConfig(a.engine, cfg.Daemon.Inbox, a.user, &daemon.Config{
		DebounceInterval: cfg.Daemon.Debounce,
		ResumeInterval:   cfg.Daemon.ResumeInterval,
		Logger:           logs.Logger("daemon"),
	})
	if err != nil {
		a.fatalf("%v", err)
	}
	if err := d.Start(cmd.Context()); err != nil {
		a.fatalf("failed to start daemon: %v", err)
	}

	fmt.Printf("Watching %s for plan files\n", cfg.Daemon.Inbox)
	fmt.Println("Press Ctrl+C to stop...")

	start := time.Now()
	<-cmd.Context().Done()

	fmt.Println("\nShutting down...")
	if err := d.Stop(); err != nil {
		fmt.Printf("Warning: daemon did not stop cleanly: %v\n", err)
	}
	st := d.Stats()
	fmt.Printf("Imported %d, failed %d, resumed %d in %v\n",
		st.Imported, st.Failed, st.Resumed, time.Since(start).Round(time.Second))
}

func init() {
	daemonCmd.Flags().Bool("dashboard", false, "also serve the live dashboard")
	rootCmd.AddCommand(daemonCmd)
}
