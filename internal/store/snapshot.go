package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/communitysurf/internal/cache"
)

// Snapshot is a cache.Store backed by one row of cache_snapshots.
type Snapshot struct {
	store *Store
	name  string
	now   func() time.Time
}

// Snapshot returns the side-store for the cache called name.
func (s *Store) Snapshot(name string) (*Snapshot, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("snapshot name is required")
	}
	return &Snapshot{store: s, name: name, now: time.Now}, nil
}

// Load returns the saved snapshot or cache.ErrNotFound.
func (sn *Snapshot) Load(ctx context.Context) ([]byte, error) {
	var data []byte
	err := sn.store.db.QueryRowContext(ctx,
		"SELECT data FROM cache_snapshots WHERE name = ?", sn.name,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", sn.name, err)
	}
	return data, nil
}

func (sn *Snapshot) Save(ctx context.Context, data []byte) error {
	_, err := sn.store.db.ExecContext(ctx,
		`INSERT INTO cache_snapshots (name, data, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET data = excluded.data, saved_at = excluded.saved_at`,
		sn.name, data, formatTime(sn.now()),
	)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", sn.name, err)
	}
	return nil
}

// Remove deletes the snapshot. A missing snapshot is cache.ErrNotFound.
func (sn *Snapshot) Remove(ctx context.Context) error {
	res, err := sn.store.db.ExecContext(ctx, "DELETE FROM cache_snapshots WHERE name = ?", sn.name)
	if err != nil {
		return fmt.Errorf("remove snapshot %s: %w", sn.name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cache.ErrNotFound
	}
	return nil
}

// SavedAt reports when the snapshot was last written.
func (sn *Snapshot) SavedAt(ctx context.Context) (time.Time, error) {
	var value string
	err := sn.store.db.QueryRowContext(ctx,
		"SELECT saved_at FROM cache_snapshots WHERE name = ?", sn.name,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, cache.ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read snapshot time %s: %w", sn.name, err)
	}
	return parseTime(value)
}
