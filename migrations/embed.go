// Package migrations holds the catalog's PostgreSQL schema.
package migrations

import "embed"

// FS contains the *.up.sql migration files applied at startup.
//
//go:embed *.sql
var FS embed.FS
