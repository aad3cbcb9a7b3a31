package pg

import (
	"context"
	"fmt"
	"sort"

	migrations "github.com/featherfeed/featherfeed-id/migrations/postgres"
)

// Migrate applies the embedded schema migrations in lexical order. The
// statements are idempotent so re-running on startup is safe.
func (s *Store) Migrate(ctx context.Context) error {
	entries, err := migrations.FS.ReadDir(migrations.Dir)
	if err != nil {
		return fmt.Errorf("pg: read migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		sql, err := migrations.FS.ReadFile(migrations.Dir + "/" + name)
		if err != nil {
			return fmt.Errorf("pg: read migration %s: %w", name, err)
		}
		if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("pg: apply migration %s: %w", name, err)
		}
	}
	return nil
}
