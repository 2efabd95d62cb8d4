// Package migrations embeds the SQL schema migrations for the task store.
// They are applied at startup with goose when Postgres is configured.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
