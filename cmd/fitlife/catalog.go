package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Guan-Eric/FitLife/internal/catalog"
	"github.com/Guan-Eric/FitLife/internal/plan"
	"github.com/Guan-Eric/FitLife/internal/ui"
)

var catalogCmd = &cobra.Command{
	Use:     "catalog",
	GroupID: "data",
	Short:   "Manage the shared exercise catalog",
}

var catalogImportCmd = &cobra.Command{
	Use:   "import <file.jsonl>",
	Short: "Load exercises from a JSON Lines file",
	Long: `Each line is one exercise object with at least a name. Entries are
stored under an id derived from the name ("Barbell Squat" becomes
"Barbell_Squat") and replace any existing entry with that id.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp(cmd.Context(), nil)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()

		c := catalog.New(a.store, logs.Logger("catalog"))
		res, err := c.ImportFile(cmd.Context(), args[0])
		if err != nil {
			a.fatalf("%v", err)
		}
		fmt.Printf("%s Imported %d exercises\n", ui.RenderPass("✓"), res.Imported)
		if res.Skipped > 0 {
			fmt.Printf("%s Skipped %d entries:\n", ui.RenderWarn("⚠"), res.Skipped)
			for _, e := range res.Errors {
				fmt.Printf("  %s\n", e)
			}
		}
	},
}

var catalogSearchCmd = &cobra.Command{
	Use:   "search [muscle]",
	Short: "List catalog exercises, optionally by primary muscle",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp(cmd.Context(), nil)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()

		c := catalog.New(a.store, logs.Logger("catalog"))
		var exs []plan.Exercise
		if len(args) == 1 {
			exs, err = c.ByMuscle(cmd.Context(), args[0])
		} else {
			exs, err = c.List(cmd.Context())
		}
		if err != nil {
			a.fatalf("%v", err)
		}
		if len(exs) == 0 {
			fmt.Println(ui.RenderMuted("No exercises found"))
			return
		}
		for _, ex := range exs {
			muscles := strings.Join(ex.PrimaryMuscles, ", ")
			fmt.Printf("%-32s %s %s\n", ui.RenderAccent(ex.ID), ex.Name, ui.RenderMuted(muscles))
		}
	},
}

var catalogShowCmd = &cobra.Command{
	Use:   "show <catalog-id>",
	Short: "Show one catalog exercise",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a, err := openApp(cmd.Context(), nil)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.Close()

		ex, err := catalog.New(a.store, logs.Logger("catalog")).Get(cmd.Context(), args[0])
		if err != nil {
			a.fatalf("%v", err)
		}
		fmt.Printf("%s (%s)\n", ui.RenderAccent(ex.Name), ex.ID)
		fmt.Printf("  category:  %s\n", ex.Category)
		fmt.Printf("  equipment: %s\n", ex.Equipment)
		fmt.Printf("  level:     %s\n", ex.Level)
		fmt.Printf("  cardio:    %v\n", ex.Cardio)
		fmt.Printf("  muscles:   %s\n", strings.Join(slices.Concat(ex.PrimaryMuscles, ex.SecondaryMuscles), ", "))
		for i, step := range ex.Instructions {
			fmt.Printf("  %d. %s\n", i+1, step)
		}
	},
}

func init() {
	catalogCmd.AddCommand(catalogImportCmd, catalogSearchCmd, catalogShowCmd)
	rootCmd.AddCommand(catalogCmd)
}
