package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MarkCompleted adds a post key to the completed set. Marking twice keeps
// the first time.
func (s *Store) MarkCompleted(ctx context.Context, key string, at time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("post key is required")
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO completed_posts (post_key, completed_at) VALUES (?, ?) ON CONFLICT(post_key) DO NOTHING",
		key, formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// UnmarkCompleted removes a post key. It reports whether the key was set.
func (s *Store) UnmarkCompleted(ctx context.Context, key string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM completed_posts WHERE post_key = ?", key)
	if err != nil {
		return false, fmt.Errorf("unmark completed: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Completed returns the completed set keyed by post key.
func (s *Store) Completed(ctx context.Context) (map[string]bool, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, "SELECT post_key FROM completed_posts")
	if err != nil {
		return nil, fmt.Errorf("query completed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan completed: %w", err)
		}
		out[key] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completed: %w", err)
	}
	return out, nil
}

// PruneCompleted forgets keys completed before cutoff. Returns the number
// of keys removed.
func (s *Store) PruneCompleted(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM completed_posts WHERE completed_at < ?", formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune completed: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
