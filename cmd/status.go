package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mstanton/ragline/internal/config"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and stored data",
		Long: `Display the current ragline status including:
  - Server and codec configuration
  - Storage backend and data locations
  - Stored conversation count`,
		RunE: runStatus,
	}
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Println("ragline Status")
	fmt.Println(strings.Repeat("─", 40))
	fmt.Println()

	fmt.Println("Connection:")
	fmt.Printf("  Server: %s\n", cfg.ServerURL)
	fmt.Printf("  Codec: %s\n", cfg.Codec)
	fmt.Printf("  Reconnect: %d attempts, %dms apart\n", cfg.Reconnect.Attempts, cfg.Reconnect.DelayMS)
	if cfg.WorkspaceID != 0 {
		fmt.Printf("  Workspace: %d\n", cfg.WorkspaceID)
	}
	fmt.Printf("  RAG type: %s\n", cfg.RAGType)
	fmt.Println()

	fmt.Println("Storage:")
	fmt.Printf("  Backend: %s\n", cfg.Storage)
	switch cfg.Storage {
	case config.StorageSQLite:
		fmt.Printf("  Database: %s\n", describePath(cfg.DatabasePath()))
	default:
		fmt.Printf("  Sessions: %s\n", describePath(cfg.SessionsPath()))
	}

	store, closer, err := openStore()
	if err == nil {
		fmt.Printf("  Conversations: %d\n", store.Len())
		closer()
	}
	fmt.Println()

	fmt.Printf("Config File: %s\n", config.GlobalConfigPath())
	return nil
}

func describePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path + " (not created yet)"
	}
	return path
}
