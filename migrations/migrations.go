// Package migrations embeds the SQL schema migrations for the accounts service.
package migrations

import "embed"

// FS contains all .up.sql migration files, applied in sorted filename order.
//
//go:embed *.up.sql
var FS embed.FS
