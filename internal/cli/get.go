package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Retrieve a memory by id",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	s, _ := openStore()
	defer s.Close()

	mem, err := s.Get(cmd.Context(), args[0])
	if err != nil {
		exitErr("get", err)
	}

	b, _ := json.MarshalIndent(mem, "", "  ")
	fmt.Println(string(b))
}
