// Package migrations embeds the local session schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
