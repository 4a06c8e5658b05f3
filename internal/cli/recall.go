package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mnemo-ai/mnemo/internal/memory"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recall [query]",
		Short: "Recall memories relevant to a query",
		Long:  "Recall the top-K memories most relevant to the query, ranked by vector similarity with an importance fallback.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRecall,
	}

	addOwnerFlags(cmd)
	cmd.Flags().String("scopes", "", "Comma-separated scopes (default: medium,long,episodic)")
	cmd.Flags().IntP("limit", "l", 0, "Max results (default: 5)")
	cmd.Flags().String("provider", "", "Embedding provider override")

	RootCmd.AddCommand(cmd)
}

func runRecall(cmd *cobra.Command, args []string) {
	scopesStr, _ := cmd.Flags().GetString("scopes")
	limit, _ := cmd.Flags().GetInt("limit")
	provider, _ := cmd.Flags().GetString("provider")

	svc, cleanup := openService()
	defer cleanup()

	results, err := svc.Recall(cmd.Context(), memory.RecallParams{
		Owner:    ownerFromFlags(cmd),
		Query:    strings.Join(args, " "),
		Scopes:   parseScopes(scopesStr),
		Limit:    limit,
		Provider: provider,
	})
	if err != nil {
		exitErr("recall", err)
	}

	if len(results) == 0 {
		fmt.Println("[]")
		return
	}

	b, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(b))
}
