// Package migrations embeds the database schemas and applies them.
package migrations

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed schema_postgres.sql
var postgresSchema string

//go:embed schema_clickhouse.sql
var clickhouseSchema string

// PostgresStatements returns the postgres schema split into statements.
func PostgresStatements() []string {
	return splitStatements(postgresSchema)
}

// ClickHouseStatements returns the clickhouse schema split into statements.
func ClickHouseStatements() []string {
	return splitStatements(clickhouseSchema)
}

// splitStatements splits a schema file on semicolons, dropping comments and
// blanks. Good enough for DDL-only files; no procedural SQL here.
func splitStatements(schema string) []string {
	var statements []string
	for _, stmt := range strings.Split(schema, ";") {
		var kept []string
		for _, line := range strings.Split(stmt, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			kept = append(kept, line)
		}
		joined := strings.TrimSpace(strings.Join(kept, "\n"))
		if joined != "" {
			statements = append(statements, joined)
		}
	}
	return statements
}

// Describe reports how many statements each schema carries; used by the
// migrate path of the CLI for a sanity printout.
func Describe() string {
	return fmt.Sprintf("postgres: %d statements, clickhouse: %d statements",
		len(PostgresStatements()), len(ClickHouseStatements()))
}
