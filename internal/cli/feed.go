package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/communitysurf/internal/filter"
	"github.com/ppiankov/communitysurf/internal/rank"
	"github.com/ppiankov/communitysurf/internal/render"
)

var (
	feedFormat  string
	feedSort    string
	feedLimit   int
	feedRefresh bool
	feedFilters filter.Options
	noColor     bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch every source once and report per-source status",
	RunE:  fetchAction,
}

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Fetch sources, then print the filtered and ranked feed",
	RunE:  feedAction,
}

func init() {
	fetchCmd.Flags().BoolVar(&feedRefresh, "refresh", false, "bypass the result cache")

	f := feedCmd.Flags()
	f.StringVar(&feedFormat, "format", "terminal", "output format: terminal, json")
	f.StringVar(&feedSort, "sort", "", "sort mode: new, top, engagement, hot (default from config)")
	f.IntVar(&feedLimit, "limit", -1, "max posts to print, 0 for all (default from config)")
	f.BoolVar(&feedRefresh, "refresh", false, "bypass the result cache")
	f.StringVar(&feedFilters.Search, "search", "", "free-text search")
	f.StringVar(&feedFilters.Platform, "platform", "", "reddit, social (twitter) or forum")
	f.StringVar(&feedFilters.Category, "category", "", "competitor category")
	f.StringVar(&feedFilters.Competitor, "competitor", "", "single competitor, wins over --category")
	f.StringVar(&feedFilters.Classification, "classification", "", "classification tag")
	f.BoolVar(&noColor, "no-color", false, "disable ANSI colors")
}

func fetchAction(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.coord.Sequence(cmd.Context(), feedRefresh); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, st := range a.coord.Statuses() {
		if st.Error != "" {
			failed++
			fmt.Fprintf(out, "%-7s error: %s\n", st.Source, st.Error)
			continue
		}
		cached := ""
		if st.FromCache {
			cached = " (cached)"
		}
		fmt.Fprintf(out, "%-7s %d posts%s\n", st.Source, st.Count, cached)
	}
	if failed == len(a.coord.Sources()) {
		return fmt.Errorf("all %d sources failed", failed)
	}
	return nil
}

func feedAction(cmd *cobra.Command, _ []string) error {
	var formatter render.Formatter
	switch feedFormat {
	case "json":
		formatter = render.NewJSON()
	case "terminal", "":
		formatter = render.NewTerminal(!noColor && render.ColorFor(os.Stdout))
	default:
		return fmt.Errorf("unknown format %q (want terminal or json)", feedFormat)
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	mode := rank.ParseMode(a.cfg.Feed.Sort)
	if feedSort != "" {
		mode = rank.ParseMode(feedSort)
	}
	if err := a.feed.Validate(feedFilters); err != nil {
		return err
	}
	limit := a.cfg.Feed.Limit
	if feedLimit >= 0 {
		limit = feedLimit
	}

	if err := a.coord.Sequence(cmd.Context(), feedRefresh); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	return formatter.Format(cmd.OutOrStdout(), render.Input{
		View:     a.feed.Query(mode, feedFilters),
		Statuses: a.coord.Statuses(),
		Now:      time.Now(),
		Limit:    limit,
	})
}
