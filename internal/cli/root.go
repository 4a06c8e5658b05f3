// Package cli implements the mnemo CLI commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mnemo-ai/mnemo/internal/config"
	"github.com/mnemo-ai/mnemo/internal/embedding"
	"github.com/mnemo-ai/mnemo/internal/memory"
	"github.com/mnemo-ai/mnemo/internal/model"
	"github.com/mnemo-ai/mnemo/internal/store"
)

var (
	configPath string
	dbPath     string
	verbose    bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "mnemo",
	Short: "Tiered conversational memory",
	Long:  "Save, recall, and consolidate conversational memories. SQLite-backed, single binary.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (default: ./config.yaml or ~/.config/mnemo/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $MNEMO_DB or config db_path)")
	RootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Debug logging on stderr")
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig() *config.Config {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		exitErr("load config", err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	} else if env := os.Getenv("MNEMO_DB"); env != "" {
		cfg.DBPath = env
	}
	return cfg
}

func openStore() (*store.SQLiteStore, *config.Config) {
	cfg := loadConfig()
	s, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		exitErr("open store", err)
	}
	return s, cfg
}

// openService wires the full stack: store, embedding gateway, service.
// The returned cleanup closes both.
func openService() (*memory.Service, func()) {
	logger := newLogger()
	s, cfg := openStore()

	gw, err := buildGateway(cfg, logger)
	if err != nil {
		s.Close()
		exitErr("configure embedding providers", err)
	}

	svc := memory.NewService(s, gw, logger, memory.Defaults{
		RecallLimit:         cfg.Recall.Limit,
		MaxMemories:         cfg.Consolidation.MaxMemories,
		ImportanceThreshold: cfg.Consolidation.ImportanceThreshold,
	})
	return svc, func() {
		gw.Close()
		s.Close()
	}
}

func buildGateway(cfg *config.Config, logger *slog.Logger) (*embedding.Gateway, error) {
	// Default provider first, the rest in name order, so fallback
	// preference is stable across runs.
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		if name != cfg.DefaultProvider {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	names = append([]string{cfg.DefaultProvider}, names...)

	specs := make([]embedding.ProviderSpec, 0, len(names))
	for _, name := range names {
		p := cfg.Providers[name]
		var provider embedding.Provider
		switch p.Type {
		case "ollama":
			provider = embedding.NewBreakerProvider(
				embedding.NewOllamaProvider(name, p.BaseURL, p.Model, p.Dimensions), logger)
		case "openai":
			provider = embedding.NewBreakerProvider(
				embedding.NewOpenAIProvider(name, p.BaseURL, p.APIKey, p.Model, p.Dimensions), logger)
		case "hash":
			provider = embedding.NewHashProvider(p.Dimensions)
		default:
			return nil, fmt.Errorf("provider %q: unknown type %q", name, p.Type)
		}
		specs = append(specs, embedding.ProviderSpec{
			Provider:      provider,
			MaxInputChars: p.MaxInputChars,
			MaxRequests:   p.RateLimit.MaxRequests,
			Window:        p.RateLimit.Window,
		})
	}

	return embedding.NewGateway(embedding.GatewayConfig{
		Default:      cfg.DefaultProvider,
		CacheTTL:     cfg.Cache.TTL,
		CacheEntries: cfg.Cache.MaxEntries,
		HashFallback: cfg.HashFallback,
	}, specs, logger)
}

func addOwnerFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("session", "s", "", "Session id")
	cmd.Flags().StringP("user", "u", "", "User id")
	cmd.Flags().String("visitor", "", "Visitor id")
}

func ownerFromFlags(cmd *cobra.Command) model.OwnerKeys {
	session, _ := cmd.Flags().GetString("session")
	user, _ := cmd.Flags().GetString("user")
	visitor, _ := cmd.Flags().GetString("visitor")
	return model.OwnerKeys{SessionID: session, UserID: user, VisitorID: visitor}
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseScopes(s string) []model.Scope {
	var scopes []model.Scope
	for _, part := range splitCSV(s) {
		sc := model.Scope(part)
		if !sc.Valid() {
			exitErr("scopes", fmt.Errorf("invalid scope %q (must be short, medium, long, or episodic)", part))
		}
		scopes = append(scopes, sc)
	}
	return scopes
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
