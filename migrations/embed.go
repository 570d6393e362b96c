// Package migrations embeds the SQL migration files into the binary, so the
// voice bridge can migrate its database without the files on disk.
package migrations

import "embed"

// FS holds every *.sql file in this directory at the root of the filesystem.
//
//go:embed *.sql
var FS embed.FS
