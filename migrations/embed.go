// Package migrations embeds SQL migration files into the binary, so
// schema setup needs no files on the target filesystem.
package migrations

import (
	"embed"

	"github.com/nerrad567/optoma-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "." // Files are at root of embedded FS
}
