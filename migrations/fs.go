// Package migrations embeds the SQL schema migrations for the stock service.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
