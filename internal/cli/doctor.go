package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ppiankov/communitysurf/internal/cache"
	"github.com/ppiankov/communitysurf/internal/config"
	"github.com/ppiankov/communitysurf/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check config, storage and source wiring",
	RunE:  doctorAction,
}

func doctorAction(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	ok := true

	// Config dir
	if info, err := os.Stat(configDir); err != nil || !info.IsDir() {
		printCheck(out, false, "config directory %s", configDir)
		ok = false
	} else {
		printCheck(out, true, "config directory %s", configDir)
	}

	// Config file
	cfg, err := config.Load(configDir)
	if err != nil {
		printCheck(out, false, "config.yaml: %v", err)
		ok = false
	} else {
		printCheck(out, true, "config.yaml")
	}

	// Relevance profile is optional
	relevancePath := filepath.Join(configDir, config.DefaultRelevanceFile)
	switch rp, err := config.LoadRelevanceIn(configDir); {
	case err != nil:
		printCheck(out, false, "relevance.yaml: %v", err)
		ok = false
	case rp == nil:
		printInfo(out, "no %s, relevance scores use engagement only", relevancePath)
	default:
		printCheck(out, true, "relevance.yaml (%d high, %d low signal keywords, %d rules)",
			len(rp.Weights.HighSignal), len(rp.Weights.LowSignal), len(rp.Rules))
	}

	if cfg == nil {
		return errors.New("some checks failed")
	}

	// Sources
	adapters, err := buildAdapters(cfg.Sources, newLogger(io.Discard, "error"))
	if err != nil {
		printCheck(out, false, "sources: %v", err)
		ok = false
	}
	for _, a := range adapters {
		printCheck(out, true, "source %-7s %T", a.Name(), a)
	}

	if cfg.Classify.Mode == "llm" {
		printCheck(out, cfg.Classify.LLM.APIKey != "", "llm api key from $%s", cfg.Classify.LLM.APIKeyEnv)
	}

	// Database
	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		printCheck(out, false, "database: %v", err)
		return errors.New("some checks failed")
	}
	defer func() { _ = db.Close() }()
	printCheck(out, true, "database %s", cfg.Storage.Path)

	if done, err := db.Completed(ctx); err == nil {
		printInfo(out, "%d completed posts", len(done))
	}
	if cfg.Cache.Store == "sqlite" {
		if sn, err := db.Snapshot(cacheSnapshot); err == nil {
			switch at, err := sn.SavedAt(ctx); {
			case errors.Is(err, cache.ErrNotFound):
				printInfo(out, "result cache is empty")
			case err == nil:
				printInfo(out, "result cache saved %s", humanize.RelTime(at, time.Now(), "ago", "from now"))
			}
		}
	}

	if !ok {
		return errors.New("some checks failed")
	}
	fmt.Fprintln(out, "\nAll checks passed.")
	return nil
}

func printCheck(out io.Writer, pass bool, format string, args ...any) {
	mark := "FAIL"
	if pass {
		mark = " OK "
	}
	fmt.Fprintf(out, "[%s] %s\n", mark, fmt.Sprintf(format, args...))
}

func printInfo(out io.Writer, format string, args ...any) {
	fmt.Fprintf(out, "[INFO] %s\n", fmt.Sprintf(format, args...))
}
