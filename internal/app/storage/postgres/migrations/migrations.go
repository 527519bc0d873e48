// Package migrations embeds the schema migration files for the
// postgres backend.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
