package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Guan-Eric/FitLife/internal/ui"
)

var dayCmd = &cobra.Command{
	Use:     "day",
	GroupID: "plans",
	Short:   "Add, rename and delete the days of a plan",
	Long: `Days are addressed by id or by 1-based position, as shown by
'fitlife plan show'.`,
}

var dayAddCmd = &cobra.Command{
	Use:   "add <plan-id> [name]",
	Short: "Append a day to a plan",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpen(cmd)
		defer a.Close()

		p := a.load(ctx, args[0])
		p, err := a.engine.AddDay(ctx, a.user, p)
		if err != nil {
			a.fatalf("failed to add day: %v", err)
		}
		last := len(p.Days) - 1
		if len(args) == 2 {
			if p, err = a.engine.RenameDay(ctx, a.user, p, last, args[1]); err != nil {
				a.fatalf("failed to name day %s: %v", p.Days[last].ID, err)
			}
		}
		fmt.Printf("%s Added day %d %s (%s)\n", ui.RenderPass("✓"), last+1, ui.RenderAccent(p.Days[last].ID), p.Days[last].Name)
	},
}

var dayRenameCmd = &cobra.Command{
	Use:   "rename <plan-id> <day> <name>",
	Short: "Rename a day",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpen(cmd)
		defer a.Close()

		p := a.load(ctx, args[0])
		i, err := dayRef(p, args[1])
		if err != nil {
			a.fatalf("%v", err)
		}
		if _, err := a.engine.RenameDay(ctx, a.user, p, i, args[2]); err != nil {
			a.fatalf("failed to rename day: %v", err)
		}
		fmt.Printf("%s Renamed day %s to %q\n", ui.RenderPass("✓"), p.Days[i].ID, args[2])
	},
}

var dayDeleteCmd = &cobra.Command{
	Use:   "delete <plan-id> <day>",
	Short: "Delete a day and its exercises",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		yes, _ := cmd.Flags().GetBool("yes")
		a := mustOpen(cmd)
		defer a.Close()

		p := a.load(ctx, args[0])
		i, err := dayRef(p, args[1])
		if err != nil {
			a.fatalf("%v", err)
		}
		day := p.Days[i]

		ok, err := confirm(fmt.Sprintf("delete day %q with %d exercises", day.Name, len(day.Exercises)), yes)
		if err != nil {
			a.fatalf("%v", err)
		}
		if !ok {
			fmt.Println("Cancelled")
			return
		}
		if _, err := a.engine.DeleteDay(ctx, a.user, p, day.ID); err != nil {
			a.cascadeFailed("delete day "+day.ID, err)
		}
		fmt.Printf("%s Deleted day %s\n", ui.RenderPass("✓"), day.ID)
	},
}

func init() {
	dayDeleteCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")

	dayCmd.AddCommand(dayAddCmd, dayRenameCmd, dayDeleteCmd)
	rootCmd.AddCommand(dayCmd)
}
