package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"pokeyen-ledger/internal/storage/postgres"
)

// RunPostgresMigrations applies the embedded ledger schema to the pool's
// database. Postgres accepts a whole file as one multi-statement Exec,
// so each file applies in a single call.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := sqlFiles(PostgresFS, "postgres")
	if err != nil {
		return fmt.Errorf("list ledger migrations: %w", err)
	}

	for _, file := range files {
		data, err := fs.ReadFile(PostgresFS, "postgres/"+file)
		if err != nil {
			return fmt.Errorf("read ledger migration %s: %w", file, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply ledger migration %s: %w", file, err)
		}
	}

	return nil
}
