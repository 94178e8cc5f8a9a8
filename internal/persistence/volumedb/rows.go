package volumedb

import (
	"database/sql"
	"strings"

	"github.com/zeebo/errs"

	"voxelvault.ai/internal/cell"
	"voxelvault.ai/internal/volume"
)

// BlockRow is one stored block; Pos is local to corner one.
type BlockRow struct {
	Pos volume.Vec3i
	cell.Row
}

// scanBlocks calls fn for up to limit rows starting at row start, in
// insertion order.
func (s *Store) scanBlocks(db *sql.DB, start, limit int, fn func(BlockRow) error) (err error) {
	if start < 0 {
		start = 0
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`SELECT x, y, z, type, data, metadata FROM blocks ORDER BY rowid LIMIT ? OFFSET ?`, limit, start)
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(rows.Close())) }()

	for rows.Next() {
		var b BlockRow
		if err := rows.Scan(&b.Pos.X, &b.Pos.Y, &b.Pos.Z, &b.Type, &b.Variant, &b.Metadata); err != nil {
			return Error.Wrap(err)
		}
		if err := fn(b); err != nil {
			return err
		}
	}
	return Error.Wrap(rows.Err())
}

const blockTuple = "(?, ?, ?, ?, ?, ?)"

func insertBlocksSQL(n int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO blocks (x, y, z, type, data, metadata) VALUES ")
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(blockTuple)
	}
	return b.String()
}

// blockInserter buffers rows and writes them as multi-row inserts of size
// rows each. Flush writes the remainder.
type blockInserter struct {
	tx   *sql.Tx
	size int
	full *sql.Stmt

	args []any
	n    int
}

func newBlockInserter(tx *sql.Tx, size int) (*blockInserter, error) {
	full, err := tx.Prepare(insertBlocksSQL(size))
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &blockInserter{
		tx:   tx,
		size: size,
		full: full,
		args: make([]any, 0, size*6),
	}, nil
}

func (b *blockInserter) Add(r BlockRow) error {
	b.args = append(b.args, r.Pos.X, r.Pos.Y, r.Pos.Z, r.Type, r.Variant, r.Metadata)
	b.n++
	if b.n < b.size {
		return nil
	}
	if _, err := b.full.Exec(b.args...); err != nil {
		return Error.Wrap(err)
	}
	b.reset()
	return nil
}

func (b *blockInserter) Flush() error {
	if b.n == 0 {
		return nil
	}
	if _, err := b.tx.Exec(insertBlocksSQL(b.n), b.args...); err != nil {
		return Error.Wrap(err)
	}
	b.reset()
	return nil
}

func (b *blockInserter) reset() {
	b.args = b.args[:0]
	b.n = 0
}

func (b *blockInserter) Close() error {
	return Error.Wrap(b.full.Close())
}
