// Package migrations embeds the goose SQL migrations for the relational
// store (games, users, game_results).
package migrations

import "embed"

// FS is handed to goose.SetBaseFS.
//
//go:embed *.sql
var FS embed.FS
