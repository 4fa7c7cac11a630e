// Package migrations embeds the SQL schema migrations applied at startup
// with goose.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
