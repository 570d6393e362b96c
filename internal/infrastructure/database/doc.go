// Package database provides SQLite connectivity for the voice bridge.
//
// The bridge keeps a small local database holding the change-report history
// of every endpoint. The package manages:
//   - Connection setup with WAL mode and busy timeout
//   - Schema migrations read from an fs.FS (normally migrations.FS)
//   - Health checks
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql.
package database
