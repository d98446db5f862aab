package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Guan-Eric/FitLife/internal/ui"
)

var exerciseCmd = &cobra.Command{
	Use:     "exercise",
	GroupID: "plans",
	Short:   "Add catalog exercises to a day or remove them",
}

var exerciseAddCmd = &cobra.Command{
	Use:   "add <plan-id> <day> <catalog-id>",
	Short: "Copy a catalog exercise into a day",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		sets, _ := cmd.Flags().GetInt("sets")
		a := mustOpen(cmd)
		defer a.Close()

		p := a.load(ctx, args[0])
		di, err := dayRef(p, args[1])
		if err != nil {
			a.fatalf("%v", err)
		}
		dayID := p.Days[di].ID

		p, err = a.engine.AddExercise(ctx, a.user, p, dayID, args[2])
		if err != nil {
			a.fatalf("failed to add exercise: %v", err)
		}
		for i := 0; i < sets; i++ {
			if p, err = a.engine.AddSet(ctx, a.user, p, dayID, args[2]); err != nil {
				a.fatalf("failed to add set %d: %v", i+1, err)
			}
		}

		day := p.Days[di]
		ex := day.Exercises[day.ExerciseIndex(args[2])]
		fmt.Printf("%s Added %s to %s with %d sets\n", ui.RenderPass("✓"), ui.RenderAccent(ex.Name), day.Name, len(ex.Sets))
	},
}

var exerciseDeleteCmd = &cobra.Command{
	Use:   "delete <plan-id> <day> <exercise>",
	Short: "Remove an exercise and its sets from a day",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpen(cmd)
		defer a.Close()

		p := a.load(ctx, args[0])
		t, err := resolveExercise(p, args[1], args[2])
		if err != nil {
			a.fatalf("%v", err)
		}
		if _, err := a.engine.DeleteExercise(ctx, a.user, p, t.dayID, t.exerciseID); err != nil {
			a.fatalf("failed to delete exercise: %v", err)
		}
		fmt.Printf("%s Removed %s from day %s\n", ui.RenderPass("✓"), t.exerciseID, t.dayID)
	},
}

func init() {
	exerciseAddCmd.Flags().Int("sets", 0, "number of empty sets to add")

	exerciseCmd.AddCommand(exerciseAddCmd, exerciseDeleteCmd)
	rootCmd.AddCommand(exerciseCmd)
}
