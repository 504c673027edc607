// Package migrations contains embedded SQL migrations for the SQLite store.
package migrations

import "embed"

//go:embed app/*.sql
var AppFS embed.FS
