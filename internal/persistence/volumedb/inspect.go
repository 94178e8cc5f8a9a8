package volumedb

import (
	"github.com/zeebo/errs"

	"voxelvault.ai/internal/persistence/migrate"
)

// Info summarizes a store without loading or migrating it.
type Info struct {
	Path      string `json:"path"`
	Version   int    `json:"version"`
	CornerOne [3]int `json:"corner_one"`
	CornerTwo [3]int `json:"corner_two"`
	Blocks    int    `json:"blocks"`
}

func (s *Store) Inspect(zoneID, volumeName string) (info Info, err error) {
	info.Path = s.Path(zoneID, volumeName)
	exists, err := s.Exists(zoneID, volumeName)
	if err != nil {
		return info, err
	}
	if !exists {
		return info, Error.New("no store at %s", info.Path)
	}

	db, err := openDB(info.Path)
	if err != nil {
		return info, err
	}
	defer func() { err = errs.Combine(err, Error.Wrap(db.Close())) }()

	if info.Version, err = migrate.Version(db); err != nil {
		return info, storeErr(err)
	}
	if err := zoneMigration.Check(info.Version); err != nil {
		return info, err
	}
	one, two, err := readCorners(db)
	if err != nil {
		return info, err
	}
	info.CornerOne, info.CornerTwo = one.ToArray(), two.ToArray()
	if err := db.QueryRow(`SELECT COUNT(*) FROM blocks`).Scan(&info.Blocks); err != nil {
		return info, Error.Wrap(err)
	}
	return info, nil
}

// Rows calls fn for up to limit stored blocks starting at row start, without
// touching any world. The store must already be at SchemaVersion.
func (s *Store) Rows(zoneID, volumeName string, start, limit int, fn func(BlockRow) error) (err error) {
	path := s.Path(zoneID, volumeName)
	exists, err := s.Exists(zoneID, volumeName)
	if err != nil {
		return err
	}
	if !exists {
		return Error.New("no store at %s", path)
	}

	db, err := openDB(path)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, Error.Wrap(db.Close())) }()

	version, err := migrate.Version(db)
	if err != nil {
		return storeErr(err)
	}
	if err := zoneMigration.Check(version); err != nil {
		return err
	}
	if version != SchemaVersion {
		return Error.New("store is at version %d, migrate it to %d first", version, SchemaVersion)
	}
	return s.scanBlocks(db, start, limit, fn)
}
