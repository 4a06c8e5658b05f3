package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "owners",
		Short: "List owners with memory counts",
		Run:   runOwners,
	}

	RootCmd.AddCommand(cmd)
}

func runOwners(cmd *cobra.Command, args []string) {
	s, cfg := openStore()
	defer s.Close()

	stats, err := s.Stats(cmd.Context(), cfg.DBPath)
	if err != nil {
		exitErr("owners", err)
	}

	if len(stats.Owners) == 0 {
		fmt.Println("[]")
		return
	}

	b, _ := json.MarshalIndent(stats.Owners, "", "  ")
	fmt.Println(string(b))
}
