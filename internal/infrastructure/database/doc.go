// Package database provides the SQLite handle for the Fleet Core event
// journal.
//
// Devices and rules live in memory and are rebuilt from the broker after a
// restart. SQLite only persists the activity history that outlives the
// in-memory ring buffer.
//
// The connection runs in WAL mode with a busy timeout and a single pooled
// connection. The file is created with 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
