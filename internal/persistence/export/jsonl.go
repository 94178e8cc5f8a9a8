// Package export writes stored volume rows as JSON lines, zstd compressed
// when the target ends in .zst.
package export

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/errs"

	"voxelvault.ai/internal/persistence/volumedb"
)

// Error is the class of export errors.
var Error = errs.Class("export")

// Block is one exported row. Metadata is absent for plain blocks.
type Block struct {
	X        int     `json:"x"`
	Y        int     `json:"y"`
	Z        int     `json:"z"`
	Type     string  `json:"type"`
	Variant  int16   `json:"data"`
	Metadata *string `json:"metadata,omitempty"`
}

func FromRow(r volumedb.BlockRow) Block {
	b := Block{X: r.Pos.X, Y: r.Pos.Y, Z: r.Pos.Z, Type: r.Type, Variant: r.Variant}
	if r.Metadata.Valid {
		m := r.Metadata.String
		b.Metadata = &m
	}
	return b
}

func compressed(path string) bool { return strings.HasSuffix(path, ".zst") }

type JSONLWriter struct {
	mu  sync.Mutex
	f   io.Closer
	enc *zstd.Encoder
	w   *bufio.Writer
}

// Create truncates path and opens it for writing.
func Create(path string) (*JSONLWriter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, Error.Wrap(err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	jw := &JSONLWriter{f: f}
	if !compressed(path) {
		jw.w = bufio.NewWriterSize(f, 128*1024)
		return jw, nil
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, Error.Wrap(err)
	}
	jw.enc = enc
	jw.w = bufio.NewWriterSize(enc, 128*1024)
	return jw, nil
}

// NewJSONLWriter writes uncompressed lines to w. Close flushes but does not
// close w.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{w: bufio.NewWriter(w)}
}

func (w *JSONLWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil {
		return Error.New("writer closed")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return Error.Wrap(err)
	}
	if _, err := w.w.Write(b); err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(w.w.WriteByte('\n'))
}

func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var group errs.Group
	if w.w != nil {
		group.Add(w.w.Flush())
		w.w = nil
	}
	if w.enc != nil {
		group.Add(w.enc.Close())
		w.enc = nil
	}
	if w.f != nil {
		group.Add(w.f.Close())
		w.f = nil
	}
	return Error.Wrap(group.Err())
}

// ReadBlocks reads a file written by Create.
func ReadBlocks(path string) (out []Block, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(f.Close())) }()

	var r io.Reader = f
	if compressed(path) {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		defer dec.Close()
		r = dec
	}

	jd := json.NewDecoder(r)
	for jd.More() {
		var b Block
		if err := jd.Decode(&b); err != nil {
			return out, Error.Wrap(err)
		}
		out = append(out, b)
	}
	return out, nil
}

// Dump writes up to limit rows of a store, starting at row start, and
// returns how many were written.
func Dump(s *volumedb.Store, zoneID, volumeName string, start, limit int, w *JSONLWriter) (n int, err error) {
	err = s.Rows(zoneID, volumeName, start, limit, func(r volumedb.BlockRow) error {
		if err := w.Write(FromRow(r)); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}
