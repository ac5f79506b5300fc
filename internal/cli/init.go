package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/communitysurf/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config directory with example files",
	RunE:  initAction,
}

func initAction(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	created := 0
	for name, content := range map[string]string{
		config.DefaultConfigFile:    exampleConfig,
		config.DefaultRelevanceFile: exampleRelevance,
	} {
		wrote, err := writeIfNotExists(out, filepath.Join(configDir, name), []byte(content))
		if err != nil {
			return err
		}
		if wrote {
			created++
		}
	}

	if created == 0 {
		fmt.Fprintf(out, "Config directory %s already initialized.\n", configDir)
	} else {
		fmt.Fprintf(out, "Initialized %s with %d config files.\n", configDir, created)
	}
	return nil
}

// writeIfNotExists writes data to path if the file does not exist.
// Returns true if the file was created.
func writeIfNotExists(out io.Writer, path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(out, "  exists: %s\n", path)
		return false, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(out, "  created: %s\n", path)
	return true, nil
}

const exampleConfig = `# communitysurf configuration

sources:
  backend:
    url: "http://localhost:5000"
  reddit:
    subreddits: []
    # - "cursor"
    time_filter: week
    limit: 50
  social:
    query: "cursor ai"
  forum:
    discourse: ""
    # discourse: "https://forum.cursor.com"
    feeds: []
    with_content: false

storage:
  path: .communitysurf/communitysurf.db
  retain_days: 30

cache:
  ttl: 120s
  store: sqlite

refresh:
  min_interval: 500ms
  sequence_delay: 500ms
  manual_throttle: 30s
  interval: 15m
  visibility_delay: 1s
  visibility_stale: 1m
  timeout: 30s

ranking:
  day: 24h
  three_days: 72h
  week: 168h
  comment_weight: 2
  retweet_weight: 1.5

feed:
  sort: hot
  limit: 50

classify:
  mode: heuristic
  llm:
    model: gpt-4.1-mini
    api_key_env: OPENAI_API_KEY

privacy:
  redact:
    enabled: false
    patterns: []

server:
  addr: "127.0.0.1:8080"

log_level: info
`

const exampleRelevance = `# communitysurf relevance profile

weights:
  high_signal:
    "crash": 5
    "data loss": 5
    "regression": 4
    "pricing": 3
    "composer": 2
  low_signal:
    "giveaway": -4
    "hiring": -3
    "sponsored": -3

rules:
  - if:
      contains_any: ["lost my", "deleted my", "corrupted"]
    then:
      score_add: 4
  - if:
      contains_any: ["promo code", "referral link"]
    then:
      score_add: -6
`
