// Package migrations embeds the goose migration set applied against the
// Postgres-backed stores at startup.
package migrations

import "embed"

//go:embed postgres/*.sql
var PostgresMigrations embed.FS
