package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Guan-Eric/FitLife/internal/ui"
)

var unitsCmd = &cobra.Command{
	Use:       "units [metric|imperial]",
	GroupID:   "data",
	Short:     "Show or set the weight units used when displaying sets",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"metric", "imperial"},
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpen(cmd)
		defer a.Close()

		if len(args) == 1 {
			if err := a.engine.SetMetricUnits(ctx, a.user, args[0] == "metric"); err != nil {
				a.fatalf("failed to save unit preference: %v", err)
			}
			fmt.Printf("%s Units set to %s\n", ui.RenderPass("✓"), args[0])
			return
		}

		metric, err := a.engine.MetricUnits(ctx, a.user)
		if err != nil {
			a.fatalf("failed to read unit preference: %v", err)
		}
		if metric {
			fmt.Println("metric")
		} else {
			fmt.Println("imperial")
		}
	},
}

func init() {
	rootCmd.AddCommand(unitsCmd)
}
