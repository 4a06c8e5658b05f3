package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnemo-ai/mnemo/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List an owner's memories",
		Run:   runList,
	}

	addOwnerFlags(cmd)
	cmd.Flags().String("scopes", "", "Filter by comma-separated scopes")
	cmd.Flags().StringP("tags", "t", "", "Filter by tags (comma-separated)")
	cmd.Flags().IntP("limit", "l", 20, "Max results (0 for all)")
	cmd.Flags().Bool("ids-only", false, "Only output ids")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	scopesStr, _ := cmd.Flags().GetString("scopes")
	tagsStr, _ := cmd.Flags().GetString("tags")
	limit, _ := cmd.Flags().GetInt("limit")
	idsOnly, _ := cmd.Flags().GetBool("ids-only")

	s, _ := openStore()
	defer s.Close()

	memories, err := s.List(cmd.Context(), store.ListParams{
		Owner:  ownerFromFlags(cmd),
		Scopes: parseScopes(scopesStr),
		Tags:   splitCSV(tagsStr),
		Limit:  limit,
	})
	if err != nil {
		exitErr("list", err)
	}

	if idsOnly {
		for _, m := range memories {
			fmt.Println(m.ID)
		}
		return
	}

	b, _ := json.MarshalIndent(memories, "", "  ")
	fmt.Println(string(b))
}
