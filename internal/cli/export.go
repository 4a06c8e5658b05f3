package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all memories as JSON",
		Long:  "Export every memory, including vectors and access bookkeeping, as a JSON array.",
		Run:   runExport,
	}

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	s, _ := openStore()
	defer s.Close()

	memories, err := s.ExportAll(cmd.Context())
	if err != nil {
		exitErr("export", err)
	}

	b, _ := json.MarshalIndent(memories, "", "  ")
	fmt.Println(string(b))
}
