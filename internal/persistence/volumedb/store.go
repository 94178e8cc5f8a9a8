// Package volumedb persists zone volumes to one SQLite file per volume and
// restores them into a live world.
//
// A store holds the schema version in `PRAGMA user_version`, two corner rows,
// and one row per block in scan order. Block coordinates are local to corner
// one so a volume can be restored anywhere.
package volumedb

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"voxelvault.ai/internal/cell"
	"voxelvault.ai/internal/persistence/migrate"
	"voxelvault.ai/internal/volume"
)

var (
	// Error is the class of store I/O failures.
	Error = errs.Class("volumedb")
	// ErrUnsupportedVersion marks stores written by a newer build.
	ErrUnsupportedVersion = &migrate.ErrUnsupportedVersion
)

const (
	DefaultBatchSize = 1000
	// maxBatchSize keeps a batch under SQLite's bound-parameter limit.
	maxBatchSize = 5000
)

// World is the live block world a volume is read from and written to.
type World interface {
	ID() string
	CellAt(pos volume.Vec3i) (cell.State, error)
	SetCellAt(pos volume.Vec3i, st cell.State) error
}

// LegacyLoader reads volumes saved in the pre-database file layout. It is
// consulted only when no store file exists.
type LegacyLoader interface {
	LoadLegacy(vol *volume.Volume, zoneID string, w World, onlyCorners bool) (int, error)
}

type Options struct {
	DataDir   string
	BatchSize int
	Codec     cell.Codec
	Legacy    LegacyLoader
	Log       *zap.Logger
}

type Store struct {
	dataDir   string
	batchSize int
	codec     cell.Codec
	legacy    LegacyLoader
	log       *zap.Logger
}

func New(opts Options) *Store {
	s := &Store{
		dataDir:   opts.DataDir,
		batchSize: opts.BatchSize,
		codec:     opts.Codec,
		legacy:    opts.Legacy,
		log:       opts.Log,
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}
	if s.batchSize > maxBatchSize {
		s.batchSize = maxBatchSize
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// Path is the store file for a zone's volume.
func (s *Store) Path(zoneID, volumeName string) string {
	return filepath.Join(s.dataDir, "dat", "warzone-"+zoneID, "volume-"+volumeName+".sl3")
}

// Exists reports whether a current-format store file is present.
func (s *Store) Exists(zoneID, volumeName string) (bool, error) {
	_, err := os.Stat(s.Path(zoneID, volumeName))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, Error.Wrap(err)
}

// Load restores vol's corners and, unless onlyCorners is set, up to limit
// blocks starting at row start. A limit <= 0 reads every remaining row. It
// returns the number of blocks applied to w.
//
// Blocks whose metadata cannot be decoded keep their type and variant, are
// counted, and are reported on the store's logger.
func (s *Store) Load(vol *volume.Volume, zoneID string, w World, onlyCorners bool, start, limit int) (changed int, err error) {
	log := s.log.With(zap.String("zone", zoneID), zap.String("volume", vol.Name))

	exists, err := s.Exists(zoneID, vol.Name)
	if err != nil {
		return 0, err
	}
	if !exists {
		return s.convertLegacy(log, vol, zoneID, w, onlyCorners)
	}

	db, err := s.openCurrent(log, s.Path(zoneID, vol.Name))
	if err != nil {
		return 0, err
	}
	defer func() { err = errs.Combine(err, Error.Wrap(db.Close())) }()

	one, two, err := readCorners(db)
	if err != nil {
		return 0, err
	}
	vol.World = w.ID()
	vol.CornerOne = one
	vol.CornerTwo = two
	if onlyCorners {
		return 0, nil
	}

	origin := vol.Origin()
	err = s.scanBlocks(db, start, limit, func(b BlockRow) error {
		pos := volume.Delocalize(origin, b.Pos).Pos
		if err := s.applyRow(log, w, pos, b.Row); err != nil {
			return err
		}
		changed++
		return nil
	})
	return changed, err
}

func (s *Store) convertLegacy(log *zap.Logger, vol *volume.Volume, zoneID string, w World, onlyCorners bool) (int, error) {
	if s.legacy == nil {
		return 0, Error.New("no store at %s", s.Path(zoneID, vol.Name))
	}
	changed, err := s.legacy.LoadLegacy(vol, zoneID, w, onlyCorners)
	if err != nil {
		return 0, Error.New("legacy load: %w", err)
	}
	if _, err := s.Save(vol, zoneID, w); err != nil {
		return 0, err
	}
	log.Info("converted legacy volume", zap.Int("changed", changed), zap.Int("version", SchemaVersion))
	return changed, nil
}

// openCurrent opens an existing store and upgrades it to SchemaVersion.
func (s *Store) openCurrent(log *zap.Logger, path string) (*sql.DB, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := zoneMigration.Run(log.Named("migrate"), db); err != nil {
		return nil, errs.Combine(storeErr(err), Error.Wrap(db.Close()))
	}
	return db, nil
}

// applyRow writes the block's type and variant, then restores metadata for
// whatever capability the placed block turned out to have.
func (s *Store) applyRow(log *zap.Logger, w World, pos volume.Vec3i, row cell.Row) error {
	if err := w.SetCellAt(pos, cell.State{Type: row.Type, Variant: row.Variant}); err != nil {
		return Error.New("set block at %v: %v", pos.ToArray(), err)
	}
	if !row.Metadata.Valid {
		return nil
	}
	placed, err := w.CellAt(pos)
	if err != nil {
		return Error.New("read block at %v: %v", pos.ToArray(), err)
	}

	meta, err := s.codec.Decode(placed.Kind, row.Metadata)
	if err == nil && meta != nil {
		placed.Meta = meta
		err = w.SetCellAt(pos, placed)
	}
	if err != nil {
		log.Warn("could not restore block metadata",
			zap.Int("x", pos.X), zap.Int("y", pos.Y), zap.Int("z", pos.Z),
			zap.String("type", row.Type),
			zap.Int16("variant", row.Variant),
			zap.Stringer("kind", placed.Kind),
			zap.Error(err))
	}
	return nil
}

// Save overwrites the store with vol's corners and every block inside it.
// The whole rewrite is one transaction. It returns the number of blocks saved.
func (s *Store) Save(vol *volume.Volume, zoneID string, w World) (changed int, err error) {
	origin := vol.Origin()
	if _, err := volume.Rebase(origin, volume.Location{World: w.ID(), Pos: vol.CornerOne}); err != nil {
		return 0, err
	}

	path := s.Path(zoneID, vol.Name)
	existed, err := s.Exists(zoneID, vol.Name)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, Error.Wrap(err)
	}
	log := s.log.With(zap.String("zone", zoneID), zap.String("volume", vol.Name))

	db, err := openDB(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		err = errs.Combine(err, Error.Wrap(db.Close()))
		if err != nil && !existed {
			_ = os.Remove(path)
		}
	}()

	version, err := migrate.Version(db)
	if err != nil {
		return 0, storeErr(err)
	}
	if err := zoneMigration.Check(version); err != nil {
		return 0, err
	}
	if version > 0 && version < SchemaVersion {
		if err := zoneMigration.Run(log.Named("migrate"), db); err != nil {
			return 0, storeErr(err)
		}
	}

	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		return 0, Error.Wrap(err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := migrate.SetVersion(tx, SchemaVersion); err != nil {
		return 0, storeErr(err)
	}
	if err := initSchema(tx); err != nil {
		return 0, err
	}
	for _, q := range []string{`DELETE FROM blocks`, `DELETE FROM corners`} {
		if _, err := tx.Exec(q); err != nil {
			return 0, Error.Wrap(err)
		}
	}
	one, two := vol.CornerOne, vol.CornerTwo
	if _, err := tx.Exec(`INSERT INTO corners (pos, x, y, z) VALUES (1, ?, ?, ?), (2, ?, ?, ?)`,
		one.X, one.Y, one.Z, two.X, two.Y, two.Z); err != nil {
		return 0, Error.Wrap(err)
	}

	ins, err := newBlockInserter(tx, s.batchSize)
	if err != nil {
		return 0, err
	}
	defer func() { err = errs.Combine(err, ins.Close()) }()

	err = vol.Scan(func(p volume.Vec3i) error {
		st, err := w.CellAt(p)
		if err != nil {
			return Error.New("read block at %v: %v", p.ToArray(), err)
		}
		local, err := volume.Rebase(origin, volume.Location{World: w.ID(), Pos: p})
		if err != nil {
			return err
		}
		row, err := s.codec.Encode(st)
		if err != nil {
			return Error.New("encode block at %v: %w", p.ToArray(), err)
		}
		if err := ins.Add(BlockRow{Pos: local, Row: row}); err != nil {
			return err
		}
		changed++
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := ins.Flush(); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, Error.Wrap(err)
	}
	log.Debug("saved volume", zap.Int("blocks", changed))
	return changed, nil
}

// Migrate upgrades an existing store without loading it.
func (s *Store) Migrate(zoneID, volumeName string) (err error) {
	exists, err := s.Exists(zoneID, volumeName)
	if err != nil {
		return err
	}
	if !exists {
		return Error.New("no store at %s", s.Path(zoneID, volumeName))
	}
	log := s.log.With(zap.String("zone", zoneID), zap.String("volume", volumeName))
	db, err := s.openCurrent(log, s.Path(zoneID, volumeName))
	if err != nil {
		return err
	}
	return Error.Wrap(db.Close())
}

// storeErr puts migration failures in the store's class. A too-new store
// keeps only ErrUnsupportedVersion.
func storeErr(err error) error {
	if err == nil || ErrUnsupportedVersion.Has(err) {
		return err
	}
	return Error.Wrap(err)
}

func readCorners(db *sql.DB) (one, two volume.Vec3i, err error) {
	rows, err := db.Query(`SELECT x, y, z FROM corners ORDER BY pos`)
	if err != nil {
		return one, two, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	var corners []volume.Vec3i
	for rows.Next() && len(corners) < 2 {
		var c volume.Vec3i
		if err := rows.Scan(&c.X, &c.Y, &c.Z); err != nil {
			return one, two, Error.Wrap(err)
		}
		corners = append(corners, c)
	}
	if err := rows.Err(); err != nil {
		return one, two, Error.Wrap(err)
	}
	if len(corners) != 2 {
		return one, two, Error.New("store has %d corners, want 2", len(corners))
	}
	return corners[0], corners[1], nil
}
