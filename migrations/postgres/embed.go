// Package migrations embeds SQL migration files for the Postgres backend.
package migrations

import "embed"

//go:embed sql/*.sql
var FS embed.FS

// Dir is the directory within FS where migrations live.
const Dir = "sql"
