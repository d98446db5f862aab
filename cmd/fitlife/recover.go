package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Guan-Eric/FitLife/internal/ui"
)

var recoverCmd = &cobra.Command{
	Use:     "recover",
	GroupID: "advanced",
	Short:   "Finish deletes, saves and imports that stopped partway",
	Long: `Replay the unfinished multi-document writes recorded in the journal.
Entries that fail again stay in the journal for the next attempt.

With --all, cascades of every user are replayed, not just the configured one.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		all, _ := cmd.Flags().GetBool("all")
		if !cfg.Sync.Journal {
			fatalf("the journal is disabled (sync.journal = false); nothing to recover")
		}

		var a *app
		if all {
			var err error
			if a, err = openApp(cmd.Context(), nil); err != nil {
				fatalf("%v", err)
			}
			a.user = ""
		} else {
			a = mustOpen(cmd)
		}
		defer a.Close()

		n, err := a.engine.Resume(cmd.Context(), a.user)
		if n > 0 {
			fmt.Printf("%s Finished %d interrupted writes\n", ui.RenderPass("✓"), n)
		}
		if err != nil {
			a.fatalf("some writes are still pending: %v", err)
		}
		if n == 0 {
			fmt.Println("Nothing to recover")
		}
	},
}

func init() {
	recoverCmd.Flags().Bool("all", false, "replay cascades of every user")
	rootCmd.AddCommand(recoverCmd)
}
