package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	chstore "pokeyen-ledger/internal/storage/clickhouse"
)

// RunClickhouseMigrations ensures the archive database exists and applies
// the embedded transaction_archive schema. Returns a connection to the
// target database for the archive store to reuse.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}

	// Bootstrap without a selected database so the target can be created.
	adminConn, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse admin: %w", err)
	}
	if err := adminConn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", dbName)); err != nil {
		adminConn.Close()
		return nil, fmt.Errorf("create archive database %s: %w", dbName, err)
	}
	if err := adminConn.Close(); err != nil {
		return nil, fmt.Errorf("close admin connection: %w", err)
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect archive database: %w", err)
	}

	files, err := sqlFiles(ClickhouseFS, "clickhouse")
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("list archive migrations: %w", err)
	}

	for _, file := range files {
		data, err := fs.ReadFile(ClickhouseFS, "clickhouse/"+file)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("read archive migration %s: %w", file, err)
		}

		if err := validateSplittable(string(data)); err != nil {
			conn.Close()
			return nil, fmt.Errorf("validate archive migration %s: %w", file, err)
		}

		// The driver's Exec takes one statement at a time.
		for _, stmt := range splitStatements(string(data)) {
			if err := conn.Exec(ctx, stmt); err != nil {
				conn.Close()
				return nil, fmt.Errorf("apply archive migration %s: %w", file, err)
			}
		}
	}

	return conn, nil
}

// splitStatements splits SQL into statements on semicolons, dropping
// -- comments first. The split is textual: archive migrations must not
// carry semicolons inside string literals or block comments, which
// validateSplittable enforces before any statement runs.
func splitStatements(input string) []string {
	var filtered []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		filtered = append(filtered, line)
	}

	var stmts []string
	for _, part := range strings.Split(strings.Join(filtered, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// validateSplittable rejects SQL whose single-quoted strings contain a
// semicolon, since splitStatements would cut the statement there.
func validateSplittable(sql string) error {
	inString := false
	for i := 0; i < len(sql); i++ {
		switch {
		case sql[i] == '\'':
			// An escaped quote '' stays inside the string.
			if inString && i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			inString = !inString
		case sql[i] == ';' && inString:
			return fmt.Errorf("semicolon inside string literal breaks statement splitting")
		}
	}
	return nil
}

// databaseFromDSN extracts the database name from a clickhouse:// DSN.
func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn missing database")
	}
	return db, nil
}
