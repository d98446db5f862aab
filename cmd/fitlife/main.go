// Command fitlife edits workout plans stored in a local document store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Guan-Eric/FitLife/internal/config"
	"github.com/Guan-Eric/FitLife/internal/journal"
	"github.com/Guan-Eric/FitLife/internal/loader"
	"github.com/Guan-Eric/FitLife/internal/logging"
	"github.com/Guan-Eric/FitLife/internal/plan"
	"github.com/Guan-Eric/FitLife/internal/store"
	fitsync "github.com/Guan-Eric/FitLife/internal/sync"
)

var (
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logs    *logging.Factory
)

var rootCmd = &cobra.Command{
	Use:   "fitlife",
	Short: "Build and edit workout plans",
	Long: `fitlife keeps workout plans (days, exercises and sets) in a local
document store and applies every edit to the store as it is made.

Settings come from ./fitlife.yaml or ~/.fitlife/fitlife.yaml, FITLIFE_*
environment variables and the flags below, later sources winning.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		c, err := config.Load(v, cfgFile)
		if err != nil {
			fatalf("%v", err)
		}
		cfg = c

		f, err := logging.NewFactory(logging.Options{
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Verbose:    cfg.Log.Verbose,
		})
		if err != nil {
			fatalf("failed to open log file: %v", err)
		}
		logs = f
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logs != nil {
			_ = logs.Close()
		}
	},
}

func init() {
	v = config.New()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./fitlife.yaml or ~/.fitlife/fitlife.yaml)")
	flags.String("db", "", "document store path")
	flags.String("user", "", "acting user id")
	flags.BoolP("verbose", "v", false, "verbose logging")

	_ = v.BindPFlag("database", flags.Lookup("db"))
	_ = v.BindPFlag("user", flags.Lookup("user"))
	_ = v.BindPFlag("log.verbose", flags.Lookup("verbose"))

	rootCmd.AddGroup(
		&cobra.Group{ID: "plans", Title: "Plan editing:"},
		&cobra.Group{ID: "data", Title: "Catalog and settings:"},
		&cobra.Group{ID: "advanced", Title: "Advanced:"},
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// fatalf prints an error line and exits.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// app is everything a command needs to read and edit plans.
type app struct {
	store   *store.SQLite
	journal *journal.Journal
	engine  *fitsync.Engine
	loader  *loader.Loader
	user    string
}

// openApp opens the store and, when enabled, the cascade journal. Commands
// that act for a user should call requireUser first.
func openApp(ctx context.Context, notifier fitsync.Notifier) (*app, error) {
	s, err := store.OpenContext(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	a := &app{store: s, user: cfg.User}

	opts := fitsync.Options{
		Logger:           logs.Logger("sync"),
		Notifier:         notifier,
		AppendMode:       cfg.AppendMode(),
		MaxAppendRetries: cfg.Sync.MaxAppendRetries,
		Transactional:    cfg.Sync.Transactional,
	}
	if cfg.Sync.Journal {
		j, err := journal.Open(journal.Config{
			Path:       cfg.Journal,
			SyncWrites: true,
			Logger:     logs.Logger("journal"),
			GCInterval: 10 * time.Minute,
		})
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		a.journal = j
		opts.Journal = j
	}
	a.engine = fitsync.New(s, opts)

	lopts := loader.Options{
		Logger:      logs.Logger("loader"),
		Concurrency: cfg.Loader.Concurrency,
		Verbose:     cfg.Log.Verbose,
	}
	if cfg.Loader.Resume && a.journal != nil {
		lopts.Resumer = a.engine
	}
	a.loader = loader.New(s, lopts)
	return a, nil
}

// mustOpen is openApp for commands acting as the configured user.
func mustOpen(cmd *cobra.Command) *app {
	if err := cfg.RequireUser(); err != nil {
		fatalf("%v", err)
	}
	a, err := openApp(cmd.Context(), nil)
	if err != nil {
		fatalf("%v", err)
	}
	return a
}

func (a *app) Close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close journal: %v\n", err)
		}
	}
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close store: %v\n", err)
	}
}

// fatalf closes a and exits with an error line.
func (a *app) fatalf(format string, args ...any) {
	a.Close()
	fatalf(format, args...)
}

// load reads a plan tree or exits.
func (a *app) load(ctx context.Context, planID string) plan.Plan {
	p, err := a.loader.Load(ctx, a.user, planID)
	if err != nil {
		a.fatalf("%v", err)
	}
	return p
}
