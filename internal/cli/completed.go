package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/communitysurf/internal/store"
)

var completeCmd = &cobra.Command{
	Use:   "complete <key>...",
	Short: "Hide posts from the feed by key (e.g. reddit-abc123)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  completeAction,
}

var uncompleteCmd = &cobra.Command{
	Use:   "uncomplete <key>...",
	Short: "Restore hidden posts",
	Args:  cobra.MinimumNArgs(1),
	RunE:  uncompleteAction,
}

func openStore() (*store.Store, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return db, nil
}

func completeAction(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	now := time.Now()
	for _, key := range args {
		if err := db.MarkCompleted(cmd.Context(), key, now); err != nil {
			return fmt.Errorf("mark %s: %w", key, err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Marked %d posts completed.\n", len(args))
	return nil
}

func uncompleteAction(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	restored := 0
	for _, key := range args {
		ok, err := db.UnmarkCompleted(cmd.Context(), key)
		if err != nil {
			return fmt.Errorf("unmark %s: %w", key, err)
		}
		if ok {
			restored++
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "  not completed: %s\n", key)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Restored %d posts.\n", restored)
	return nil
}
