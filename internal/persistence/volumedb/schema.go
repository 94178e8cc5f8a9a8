package volumedb

import (
	"database/sql"

	_ "modernc.org/sqlite"

	"voxelvault.ai/internal/persistence/migrate"
)

// SchemaVersion is the store layout written by this build.
const SchemaVersion = 2

// zoneMigration upgrades older stores to SchemaVersion. Add a step here for
// every new layout.
var zoneMigration = &migrate.Migration{
	Steps: []*migrate.Step{
		{
			Description: "merge per-kind metadata columns",
			Version:     2,
			Action: migrate.SQL{
				`ALTER TABLE blocks RENAME TO blocks_v1`,
				createBlocks,
				// container wins over sign, and so on down the list.
				`INSERT INTO blocks (x, y, z, type, data, metadata)
					SELECT x, y, z, type, data, coalesce(container, sign, note, record, skull, command, mobid)
					FROM blocks_v1 ORDER BY rowid`,
				`DROP TABLE blocks_v1`,
			},
		},
	},
}

const (
	createBlocks = `CREATE TABLE IF NOT EXISTS blocks (
		x BIGINT,
		y BIGINT,
		z BIGINT,
		type TEXT,
		data SMALLINT,
		metadata BLOB
	)`
	createCorners = `CREATE TABLE IF NOT EXISTS corners (
		pos INTEGER PRIMARY KEY NOT NULL UNIQUE,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		z INTEGER NOT NULL
	)`
)

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	// One owner per store file; keep everything on a single connection so
	// VACUUM and the pragmas below apply to the connection doing the work.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// initPragmas sets connection-level options only. Nothing here may write to
// the file: a store that turns out to be too new must stay byte-identical.
func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return Error.New("%s %v", p, err)
		}
	}
	return nil
}

func initSchema(tx *sql.Tx) error {
	stmts := []string{
		createBlocks,
		createCorners,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return Error.Wrap(err)
		}
	}
	return nil
}
