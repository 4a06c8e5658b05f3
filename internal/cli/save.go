package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mnemo-ai/mnemo/internal/memory"
	"github.com/mnemo-ai/mnemo/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "save [content]",
		Short: "Save a memory",
		Long:  "Save a memory for an owner. Content can be a positional arg or piped via stdin.",
		Run:   runSave,
	}

	addOwnerFlags(cmd)
	cmd.Flags().String("scope", "short", "Scope: short, medium, long, episodic")
	cmd.Flags().String("summary", "", "Short summary used for embedding instead of content")
	cmd.Flags().Float64P("importance", "i", -1, "Importance 0-10 (default: 5)")
	cmd.Flags().StringP("tags", "t", "", "Comma-separated tags")
	cmd.Flags().String("provider", "", "Embedding provider override")

	RootCmd.AddCommand(cmd)
}

func runSave(cmd *cobra.Command, args []string) {
	scope, _ := cmd.Flags().GetString("scope")
	summary, _ := cmd.Flags().GetString("summary")
	importance, _ := cmd.Flags().GetFloat64("importance")
	tagsStr, _ := cmd.Flags().GetString("tags")
	provider, _ := cmd.Flags().GetString("provider")

	// Content: positional arg first, then stdin.
	var content string
	if len(args) > 0 {
		content = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			content = string(b)
		}
	}
	if strings.TrimSpace(content) == "" {
		exitErr("save", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	params := memory.SaveParams{
		Owner:    ownerFromFlags(cmd),
		Scope:    model.Scope(scope),
		Content:  strings.TrimSpace(content),
		Summary:  summary,
		Tags:     splitCSV(tagsStr),
		Provider: provider,
	}
	if importance >= 0 {
		params.Importance = &importance
	}

	svc, cleanup := openService()
	defer cleanup()

	mem, err := svc.Save(cmd.Context(), params)
	if err != nil {
		exitErr("save", err)
	}

	b, _ := json.Marshal(mem)
	fmt.Println(string(b))
}
