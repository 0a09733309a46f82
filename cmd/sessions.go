package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mstanton/ragline/internal/config"
	"github.com/mstanton/ragline/internal/session"
)

// newSessionsCmd manages stored conversations without connecting to a
// server.
func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage stored conversations",
		Long: `Inspect and edit locally stored conversations.

Examples:
  ragline sessions list
  ragline sessions rename <id> "Paper review notes"
  ragline sessions delete <id>
  ragline sessions clear`,
	}

	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsRenameCmd())
	cmd.AddCommand(newSessionsDeleteCmd())
	cmd.AddCommand(newSessionsClearCmd())

	return cmd
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored conversations",
		RunE: func(_ *cobra.Command, _ []string) error {
			store, closer, err := openStore()
			if err != nil {
				return err
			}
			defer closer()

			sessions := store.List()
			if len(sessions) == 0 {
				fmt.Println("No conversations stored.")
				return nil
			}
			for _, s := range sessions {
				synced := "local only"
				if s.BackendID != nil {
					synced = fmt.Sprintf("server #%d", *s.BackendID)
				}
				fmt.Printf("%s  %-40s  %d messages  %s  updated %s\n",
					s.ID, s.Title, len(s.Messages), synced, s.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newSessionsRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			store, closer, err := openStore()
			if err != nil {
				return err
			}
			defer closer()

			title := args[1]
			for _, extra := range args[2:] {
				title += " " + extra
			}
			if err := store.Rename(args[0], title); err != nil {
				return err
			}
			fmt.Printf("Renamed %s to %q\n", args[0], title)
			return nil
		},
	}
}

func newSessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			store, closer, err := openStore()
			if err != nil {
				return err
			}
			defer closer()

			if err := store.Delete(args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		},
	}
}

func newSessionsClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all conversations",
		RunE: func(_ *cobra.Command, _ []string) error {
			store, closer, err := openStore()
			if err != nil {
				return err
			}
			defer closer()

			store.Clear()
			fmt.Println("All conversations deleted.")
			return nil
		},
	}
}

// openStore loads the configured storage backend and a store on top of
// it, for offline session management.
func openStore() (*session.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	persister, closer, err := buildPersister(cfg)
	if err != nil {
		return nil, nil, err
	}
	if closer == nil {
		closer = func() {}
	}
	return session.NewStore(session.WithPersister(persister)), closer, nil
}
