package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Guan-Eric/FitLife/internal/loader"
	"github.com/Guan-Eric/FitLife/internal/loadtest"
	fitsync "github.com/Guan-Eric/FitLife/internal/sync"
	"github.com/Guan-Eric/FitLife/internal/ui"
)

var loadtestCmd = &cobra.Command{
	Use:     "loadtest",
	GroupID: "advanced",
	Short:   "Race concurrent set appends and time plan loads",
	Long: `Build a throwaway plan in a scratch database, then:

  1. start --writers goroutines that each append --appends sets to the same
     exercise from the same starting tree, and count sets that were lost
  2. start --readers goroutines that each load the plan --loads times

Compare --mode legacy and --mode versioned to see lost appends, and
--concurrency 1 against a higher value to see the day fan-out.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		modeName, _ := flags.GetString("mode")
		writers, _ := flags.GetInt("writers")
		appends, _ := flags.GetInt("appends")
		readers, _ := flags.GetInt("readers")
		loads, _ := flags.GetInt("loads")
		days, _ := flags.GetInt("days")
		exercises, _ := flags.GetInt("exercises")
		conc, _ := flags.GetInt("concurrency")

		mode, err := fitsync.ParseAppendMode(modeName)
		if err != nil {
			fatalf("%v", err)
		}

		dir, err := os.MkdirTemp("", "fitlife-loadtest-")
		if err != nil {
			fatalf("failed to create scratch directory: %v", err)
		}
		defer os.RemoveAll(dir)

		ctx := cmd.Context()
		fmt.Printf("%s Building plan with %d days of %d exercises...\n", ui.RenderAccent("→"), days, exercises)
		f, err := loadtest.CreateFixture(ctx, filepath.Join(dir, "loadtest.db"), loadtest.Options{
			AppendMode:       mode,
			MaxAppendRetries: writers * appends,
			Days:             days,
			Exercises:        exercises,
			Logger:           logs.Logger("loadtest"),
		})
		if err != nil {
			fatalf("%v", err)
		}
		defer f.Close()

		race, err := f.RunAppendRace(ctx, writers, appends)
		if err != nil {
			fatalf("append race failed: %v", err)
		}
		race.PrintResult(os.Stdout)
		if race.Lost > 0 {
			fmt.Printf("%s %d appends reported success but are not stored\n", ui.RenderFail("✗"), race.Lost)
		} else {
			fmt.Printf("%s No appends lost\n", ui.RenderPass("✓"))
		}

		l := loader.New(f.Store, loader.Options{Logger: logs.Logger("loader"), Concurrency: conc})
		stats, err := f.RunConcurrentLoads(ctx, l, readers, loads)
		if err != nil {
			fatalf("concurrent loads failed: %v", err)
		}
		fmt.Printf("\nPlan loads (concurrency %d):\n", conc)
		stats.PrintStats(os.Stdout)
	},
}

func init() {
	f := loadtestCmd.Flags()
	f.String("mode", string(fitsync.AppendVersioned), "set append mode: versioned or legacy")
	f.Int("writers", 8, "concurrent set appenders")
	f.Int("appends", 5, "appends per writer")
	f.Int("readers", 4, "concurrent plan loaders")
	f.Int("loads", 20, "loads per reader")
	f.Int("days", 5, "days in the test plan")
	f.Int("exercises", 3, "exercises per day")
	f.Int("concurrency", 4, "day lists in flight per load")
	rootCmd.AddCommand(loadtestCmd)
}
