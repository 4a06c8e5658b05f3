package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnemo-ai/mnemo/internal/memory"
)

func init() {
	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Run a consolidation pass for an owner",
		Long:  "Backfill missing embeddings, promote memories between tiers, prune low-importance short-term records, and merge near-duplicates.",
		Run:   runConsolidate,
	}

	addOwnerFlags(cmd)
	cmd.Flags().Int("max-memories", 0, "Memory ceiling before pruning (default: 100)")
	cmd.Flags().Float64("threshold", 0, "Importance threshold for long-term promotion (default: 0.7)")

	RootCmd.AddCommand(cmd)
}

func runConsolidate(cmd *cobra.Command, args []string) {
	maxMemories, _ := cmd.Flags().GetInt("max-memories")
	threshold, _ := cmd.Flags().GetFloat64("threshold")

	svc, cleanup := openService()
	defer cleanup()

	report, err := svc.Consolidate(cmd.Context(), memory.ConsolidateParams{
		Owner:               ownerFromFlags(cmd),
		MaxMemories:         maxMemories,
		ImportanceThreshold: threshold,
	})
	if err != nil {
		exitErr("consolidate", err)
	}

	b, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(b))
}
