package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mnemo-ai/mnemo/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import memories from JSON",
		Long:  "Import memories from stdin. Expects the format produced by export.",
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitErr("read stdin", err)
	}

	var memories []model.Memory
	if err := json.Unmarshal(data, &memories); err != nil {
		exitErr("parse json", err)
	}

	s, _ := openStore()
	defer s.Close()

	imported, err := s.Import(cmd.Context(), memories)
	if err != nil {
		exitErr("import", err)
	}

	fmt.Printf(`{"ok":true,"imported":%d}`+"\n", imported)
}
