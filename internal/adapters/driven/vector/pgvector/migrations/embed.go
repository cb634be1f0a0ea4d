// Package migrations embeds the Postgres schema for the pgvector index.
package migrations

import "embed"

// FS holds the numbered up/down migration files.
//
//go:embed *.sql
var FS embed.FS
