package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Guan-Eric/FitLife/internal/plan"
	fitsync "github.com/Guan-Eric/FitLife/internal/sync"
	"github.com/Guan-Eric/FitLife/internal/ui"
)

var planCmd = &cobra.Command{
	Use:     "plan",
	GroupID: "plans",
	Short:   "Create, inspect and remove workout plans",
}

var planCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create an empty plan",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpen(cmd)
		defer a.Close()

		p, err := a.engine.CreatePlan(ctx, a.user)
		if err != nil {
			a.fatalf("failed to create plan: %v", err)
		}
		if len(args) == 1 {
			if p, err = a.engine.RenamePlan(ctx, a.user, p, args[0]); err != nil {
				a.fatalf("failed to name plan %s: %v", p.ID, err)
			}
		}
		fmt.Printf("%s Created plan %s (%s)\n", ui.RenderPass("✓"), ui.RenderAccent(p.ID), p.Name)
	},
}

var planListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your plans",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpen(cmd)
		defer a.Close()

		plans, err := a.engine.ListPlans(cmd.Context(), a.user)
		if err != nil {
			a.fatalf("failed to list plans: %v", err)
		}
		fmt.Print(ui.RenderPlanList(plans))
	},
}

var planShowCmd = &cobra.Command{
	Use:   "show <plan-id>",
	Short: "Show a plan with all of its days, exercises and sets",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		format, _ := cmd.Flags().GetString("format")
		a := mustOpen(cmd)
		defer a.Close()

		p := a.load(ctx, args[0])
		switch format {
		case "tree":
			metric, err := a.engine.MetricUnits(ctx, a.user)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to read unit preference: %v\n", err)
			}
			fmt.Print(ui.RenderPlan(p, ui.Units{Metric: metric}))
		case "json":
			data, err := json.MarshalIndent(p, "", "  ")
			if err != nil {
				a.fatalf("%v", err)
			}
			fmt.Println(string(data))
		case "yaml":
			data, err := plan.MarshalYAML(&p)
			if err != nil {
				a.fatalf("%v", err)
			}
			fmt.Print(string(data))
		default:
			a.fatalf("unknown format %q (want tree, json or yaml)", format)
		}
	},
}

var planRenameCmd = &cobra.Command{
	Use:   "rename <plan-id> <name>",
	Short: "Rename a plan",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpen(cmd)
		defer a.Close()

		p := a.load(ctx, args[0])
		if _, err := a.engine.RenamePlan(ctx, a.user, p, args[1]); err != nil {
			a.fatalf("failed to rename plan: %v", err)
		}
		fmt.Printf("%s Renamed plan %s to %q\n", ui.RenderPass("✓"), p.ID, args[1])
	},
}

var planDeleteCmd = &cobra.Command{
	Use:   "delete <plan-id>",
	Short: "Delete a plan and everything in it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		yes, _ := cmd.Flags().GetBool("yes")
		a := mustOpen(cmd)
		defer a.Close()

		ok, err := confirm("delete plan "+args[0], yes)
		if err != nil {
			a.fatalf("%v", err)
		}
		if !ok {
			fmt.Println("Cancelled")
			return
		}
		if err := a.engine.DeletePlan(cmd.Context(), a.user, args[0]); err != nil {
			a.cascadeFailed("delete plan", err)
		}
		fmt.Printf("%s Deleted plan %s\n", ui.RenderPass("✓"), args[0])
	},
}

var planExportCmd = &cobra.Command{
	Use:   "export <plan-id>",
	Short: "Write a plan to a JSON file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir, _ := cmd.Flags().GetString("dir")
		a := mustOpen(cmd)
		defer a.Close()

		p := a.load(cmd.Context(), args[0])
		path, err := plan.WritePlanFile(dir, &p)
		if err != nil {
			a.fatalf("%v", err)
		}
		fmt.Printf("%s Exported plan %s to %s\n", ui.RenderPass("✓"), p.ID, path)
	},
}

var planImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a JSON or YAML plan file",
	Long: `Import writes the whole plan in a JSON or YAML plan file under the ids
it carries, replacing any stored documents at those ids.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpen(cmd)
		defer a.Close()

		p, err := plan.ReadPlanFile(args[0])
		if err != nil {
			a.fatalf("%v", err)
		}
		imported, err := a.engine.ImportPlan(cmd.Context(), a.user, *p)
		if err != nil {
			a.cascadeFailed("import "+filepath.Base(args[0]), err)
		}
		d, e, s := imported.Counts()
		fmt.Printf("%s Imported %s into plan %s (%d days, %d exercises, %d sets)\n",
			ui.RenderPass("✓"), filepath.Base(args[0]), ui.RenderAccent(imported.ID), d, e, s)
	},
}

var planSaveCmd = &cobra.Command{
	Use:   "save <file>",
	Short: "Write an edited plan file back over the stored plan",
	Long: `Save rewrites every day and exercise of the plan named by the file's id.
Days and exercises must already exist; use import for new plans.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpen(cmd)
		defer a.Close()

		p, err := plan.ReadPlanFile(args[0])
		if err != nil {
			a.fatalf("%v", err)
		}
		if _, err := a.engine.SavePlan(cmd.Context(), a.user, *p); err != nil {
			a.cascadeFailed("save plan "+p.ID, err)
		}
		fmt.Printf("%s Saved plan %s\n", ui.RenderPass("✓"), ui.RenderAccent(p.ID))
	},
}

// cascadeFailed reports a failed multi-document write and exits. A partial
// cascade lists what was not written.
func (a *app) cascadeFailed(what string, err error) {
	var ce *fitsync.CascadeError
	if errors.As(err, &ce) {
		fmt.Fprintf(os.Stderr, "%s %s stopped after %d of %d writes\n",
			ui.RenderWarn("⚠"), what, ce.Completed, ce.Completed+len(ce.Remaining))
		for _, p := range ce.Remaining {
			fmt.Fprintf(os.Stderr, "  not written: %s\n", p)
		}
		if ce.EntryID != "" {
			fmt.Fprintf(os.Stderr, "Run 'fitlife recover' to finish it.\n")
		}
	}
	a.fatalf("failed to %s: %v", what, err)
}

func init() {
	planShowCmd.Flags().StringP("format", "f", "tree", "output format: tree, json or yaml")
	planDeleteCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	planExportCmd.Flags().String("dir", ".", "directory to write the plan file into")

	planCmd.AddCommand(planCreateCmd, planListCmd, planShowCmd, planRenameCmd,
		planDeleteCmd, planExportCmd, planImportCmd, planSaveCmd)
	rootCmd.AddCommand(planCmd)
}
