package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/communitysurf/internal/store"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the result cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop cached results so the next fetch goes upstream",
	RunE:  cacheClearAction,
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
}

func cacheClearAction(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a := &app{cfg: cfg, log: log, db: db}
	defer a.close()

	rc, err := a.buildCache()
	if err != nil {
		return err
	}
	rc.Clear(cmd.Context())
	fmt.Fprintf(cmd.OutOrStdout(), "Cache cleared (%s store).\n", cfg.Cache.Store)
	return nil
}
