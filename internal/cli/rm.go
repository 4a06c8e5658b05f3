package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm [id...]",
		Short: "Delete memories by id",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRm,
	}

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	s, _ := openStore()
	defer s.Close()

	if err := s.Delete(cmd.Context(), args); err != nil {
		exitErr("rm", err)
	}

	fmt.Printf(`{"ok":true,"deleted":%d}`+"\n", len(args))
}
