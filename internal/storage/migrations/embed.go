// Package migrations applies the ledger schema: the Postgres tables
// (users, transactions, badges, badge_log) and the ClickHouse
// transaction_archive. SQL files apply in lexical order and must be
// idempotent.
package migrations

import (
	"embed"
	"io/fs"
	"sort"
	"strings"
)

//go:embed postgres/*.sql
var PostgresFS embed.FS

//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS

// sqlFiles lists the .sql entries of dir in lexical apply order.
func sqlFiles(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
