package volumedb_test

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelvault.ai/internal/cell"
	"voxelvault.ai/internal/persistence/volumedb"
	"voxelvault.ai/internal/volume"
	"voxelvault.ai/internal/world"
)

const v1Schema = `
CREATE TABLE blocks (
	x BIGINT, y BIGINT, z BIGINT,
	type TEXT, data SMALLINT,
	sign TEXT, container TEXT, note TEXT, record TEXT,
	skull TEXT, command TEXT, mobid TEXT
);
CREATE TABLE corners (
	pos INTEGER PRIMARY KEY NOT NULL UNIQUE,
	x INTEGER NOT NULL, y INTEGER NOT NULL, z INTEGER NOT NULL
);
INSERT INTO corners (pos, x, y, z) VALUES (1, 5, 70, 5), (2, 6, 70, 6);
PRAGMA user_version = 1;
`

// writeV1 creates a version 1 store at the path the store would use.
func writeV1(t *testing.T, s *volumedb.Store, inserts ...string) string {
	t.Helper()
	path := s.Path(zone, "legacy")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(v1Schema)
	require.NoError(t, err)
	for _, q := range inserts {
		_, err = db.Exec(q)
		require.NoError(t, err)
	}
	return path
}

func rawMetadata(t *testing.T, path string) []sql.NullString {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query(`SELECT metadata FROM blocks ORDER BY rowid`)
	require.NoError(t, err)
	defer rows.Close()

	var out []sql.NullString
	for rows.Next() {
		var m sql.NullString
		require.NoError(t, rows.Scan(&m))
		out = append(out, m)
	}
	require.NoError(t, rows.Err())
	return out
}

func tableExists(t *testing.T, path, name string) bool {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&n))
	return n > 0
}

func TestMigrate_SignOnlyRow(t *testing.T) {
	s := newStore(t, volumedb.Options{})
	path := writeV1(t, s,
		`INSERT INTO blocks (x, y, z, type, data, sign) VALUES (0, 0, 0, 'SIGN_POST', 4, 'hello' || char(10) || 'world')`,
	)

	require.NoError(t, s.Migrate(zone, "legacy"))

	info, err := s.Inspect(zone, "legacy")
	require.NoError(t, err)
	assert.Equal(t, 2, info.Version)
	assert.Equal(t, 1, info.Blocks)
	assert.Equal(t, []sql.NullString{{String: "hello\nworld", Valid: true}}, rawMetadata(t, path))
	assert.False(t, tableExists(t, path, "blocks_v1"))
}

func TestMigrate_ColumnPriority(t *testing.T) {
	s := newStore(t, volumedb.Options{})
	path := writeV1(t, s,
		`INSERT INTO blocks (x, y, z, type, data, sign, container) VALUES (0, 0, 0, 'CHEST', 0, 'stray sign', 'items: []')`,
		`INSERT INTO blocks (x, y, z, type, data, record, mobid) VALUES (0, 0, 1, 'JUKEBOX', 0, 'RECORD_3', 'PIG')`,
		`INSERT INTO blocks (x, y, z, type, data) VALUES (1, 0, 0, 'STONE', 0)`,
		`INSERT INTO blocks (x, y, z, type, data, mobid) VALUES (1, 0, 1, 'MOB_SPAWNER', 0, 'ZOMBIE')`,
	)

	require.NoError(t, s.Migrate(zone, "legacy"))
	assert.Equal(t, []sql.NullString{
		{String: "items: []", Valid: true},
		{String: "RECORD_3", Valid: true},
		{},
		{String: "ZOMBIE", Valid: true},
	}, rawMetadata(t, path))
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newStore(t, volumedb.Options{})
	path := writeV1(t, s,
		`INSERT INTO blocks (x, y, z, type, data, note) VALUES (0, 0, 0, 'NOTE_BLOCK', 0, 'C' || char(10) || '1' || char(10) || 'false')`,
	)
	require.NoError(t, s.Migrate(zone, "legacy"))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, s.Migrate(zone, "legacy"))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestInspect_DoesNotMigrate(t *testing.T) {
	s := newStore(t, volumedb.Options{})
	writeV1(t, s, `INSERT INTO blocks (x, y, z, type, data) VALUES (0, 0, 0, 'STONE', 0)`)

	info, err := s.Inspect(zone, "legacy")
	require.NoError(t, err)
	assert.Equal(t, 1, info.Version)
	assert.Equal(t, [3]int{5, 70, 5}, info.CornerOne)

	err = s.Rows(zone, "legacy", 0, 0, func(volumedb.BlockRow) error { return nil })
	require.Error(t, err)
	assert.True(t, volumedb.Error.Has(err))
}

func TestLoad_MigratesV1Store(t *testing.T) {
	s := newStore(t, volumedb.Options{})
	writeV1(t, s,
		`INSERT INTO blocks (x, y, z, type, data, skull) VALUES (0, 0, 0, 'SKULL', 1, 'Notch' || char(10) || 'PLAYER' || char(10) || 'NORTH')`,
		`INSERT INTO blocks (x, y, z, type, data, command) VALUES (1, 0, 1, 'COMMAND', 0, '@' || char(10) || 'time set day')`,
	)

	w := world.NewMem("overworld", nil)
	vol := &volume.Volume{Name: "legacy"}
	n, err := s.Load(vol, zone, w, false, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "overworld", vol.World)

	st, err := w.CellAt(volume.Vec3i{X: 5, Y: 70, Z: 5})
	require.NoError(t, err)
	assert.Equal(t, cell.Skull{Owner: "Notch", Type: cell.SkullPlayer, Facing: cell.FaceNorth}, st.Meta)

	st, err = w.CellAt(volume.Vec3i{X: 6, Y: 70, Z: 6})
	require.NoError(t, err)
	assert.Equal(t, cell.CommandBlock{Name: "@", Command: "time set day"}, st.Meta)

	info, err := s.Inspect(zone, "legacy")
	require.NoError(t, err)
	assert.Equal(t, volumedb.SchemaVersion, info.Version)
}
