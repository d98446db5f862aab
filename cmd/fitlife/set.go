package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Guan-Eric/FitLife/internal/plan"
	"github.com/Guan-Eric/FitLife/internal/ui"
)

var setCmd = &cobra.Command{
	Use:     "set",
	GroupID: "plans",
	Short:   "Append, edit and delete the sets of an exercise",
	Long: `Sets are addressed by id or by 1-based position. A position is checked
against the stored exercise, so an edit made from a stale view fails
instead of touching the wrong set.`,
}

var setAddCmd = &cobra.Command{
	Use:   "add <plan-id> <day> <exercise>",
	Short: "Append an empty set",
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
		p, err = a.engine.AddSet(ctx, a.user, p, t.dayID, t.exerciseID)
		if err != nil {
			a.fatalf("failed to add set: %v", err)
		}
		n := len(p.Days[t.day].Exercises[t.exercise].Sets)
		fmt.Printf("%s Added set %d to %s\n", ui.RenderPass("✓"), n, t.exerciseID)
	},
}

var setUpdateCmd = &cobra.Command{
	Use:   "update <plan-id> <day> <exercise> <set>",
	Short: "Change the reps or weight/duration of a set",
	Args:  cobra.ExactArgs(4),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpen(cmd)
		defer a.Close()

		var changes []change
		if cmd.Flags().Changed("reps") {
			v, _ := cmd.Flags().GetFloat64("reps")
			changes = append(changes, change{plan.PropReps, v})
		}
		if cmd.Flags().Changed("weight") {
			v, _ := cmd.Flags().GetFloat64("weight")
			changes = append(changes, change{plan.PropWeightDuration, v})
		}
		if len(changes) == 0 {
			a.fatalf("nothing to change (use --reps and/or --weight)")
		}

		p := a.load(ctx, args[0])
		t, err := resolveExercise(p, args[1], args[2])
		if err != nil {
			a.fatalf("%v", err)
		}
		ex := p.Days[t.day].Exercises[t.exercise]
		si, byID, err := setRef(ex, args[3])
		if err != nil {
			a.fatalf("%v", err)
		}
		setID := ex.Sets[si].ID

		for _, c := range changes {
			if byID {
				p, err = a.engine.UpdateSetByID(ctx, a.user, p, t.dayID, t.exerciseID, setID, c.prop, c.value)
			} else {
				p, err = a.engine.UpdateSet(ctx, a.user, p, t.day, t.exercise, si, c.prop, c.value)
			}
			if err != nil {
				a.fatalf("failed to update set: %v", err)
			}
		}

		metric, _ := a.engine.MetricUnits(ctx, a.user)
		updated, pos := setAfter(p, t, setID, si)
		fmt.Printf("%s Set %d of %s: %s\n", ui.RenderPass("✓"), pos+1, t.exerciseID,
			ui.FormatSet(ex, updated, ui.Units{Metric: metric}))
	},
}

type change struct {
	prop  plan.Property
	value float64
}

var setDeleteCmd = &cobra.Command{
	Use:   "delete <plan-id> <day> <exercise> <set>",
	Short: "Delete a set",
	Args:  cobra.ExactArgs(4),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpen(cmd)
		defer a.Close()

		p := a.load(ctx, args[0])
		t, err := resolveExercise(p, args[1], args[2])
		if err != nil {
			a.fatalf("%v", err)
		}
		ex := p.Days[t.day].Exercises[t.exercise]
		si, byID, err := setRef(ex, args[3])
		if err != nil {
			a.fatalf("%v", err)
		}

		if byID {
			_, err = a.engine.DeleteSetByID(ctx, a.user, p, t.dayID, t.exerciseID, ex.Sets[si].ID)
		} else {
			_, err = a.engine.DeleteSet(ctx, a.user, p, t.day, t.exercise, si)
		}
		if err != nil {
			a.fatalf("failed to delete set: %v", err)
		}
		fmt.Printf("%s Deleted set %d of %s\n", ui.RenderPass("✓"), si+1, t.exerciseID)
	},
}

func init() {
	setUpdateCmd.Flags().Float64("reps", 0, "repetitions")
	setUpdateCmd.Flags().Float64("weight", 0, "weight, or duration in minutes for cardio")

	setCmd.AddCommand(setAddCmd, setUpdateCmd, setDeleteCmd)
	rootCmd.AddCommand(setCmd)
}
