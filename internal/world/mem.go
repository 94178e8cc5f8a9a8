// Package world provides an in-memory block world used by tools and tests
// to stage and inspect volumes.
package world

import (
	_ "embed"
	"sort"

	"github.com/zeebo/errs"
	"gopkg.in/yaml.v3"

	"voxelvault.ai/internal/cell"
	"voxelvault.ai/internal/volume"
)

// Error is the class of world errors.
var Error = errs.Class("world")

// Air is the type of every unset position.
const Air = "AIR"

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog maps block types to their special capability.
type Catalog struct {
	kinds map[string]cell.Kind
}

func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

func ParseCatalog(raw []byte) (*Catalog, error) {
	var doc struct {
		Blocks map[string]string `yaml:"blocks"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, Error.New("catalog: %v", err)
	}
	c := &Catalog{kinds: make(map[string]cell.Kind, len(doc.Blocks))}
	for typ, name := range doc.Blocks {
		k, err := cell.ParseKind(name)
		if err != nil {
			return nil, Error.New("catalog %s: %v", typ, err)
		}
		c.kinds[typ] = k
	}
	return c, nil
}

func (c *Catalog) KindOf(typ string) cell.Kind { return c.kinds[typ] }

// Mem is a sparse map-backed world.
type Mem struct {
	id      string
	catalog *Catalog
	cells   map[volume.Vec3i]cell.State
}

func NewMem(id string, catalog *Catalog) *Mem {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Mem{
		id:      id,
		catalog: catalog,
		cells:   map[volume.Vec3i]cell.State{},
	}
}

func (w *Mem) ID() string { return w.id }

func (w *Mem) CellAt(pos volume.Vec3i) (cell.State, error) {
	st, ok := w.cells[pos]
	if !ok {
		return cell.State{Type: Air}, nil
	}
	return st, nil
}

// SetCellAt places a block. Metadata must match the capability the catalog
// gives the block type.
func (w *Mem) SetCellAt(pos volume.Vec3i, st cell.State) error {
	if st.Type == "" {
		return Error.New("empty block type at %v", pos.ToArray())
	}
	st.Kind = w.catalog.KindOf(st.Type)
	if st.Meta != nil && st.Meta.Kind() != st.Kind {
		return Error.New("%s metadata on %s (%s) at %v", st.Meta.Kind(), st.Type, st.Kind, pos.ToArray())
	}
	if st.Type == Air && st.Variant == 0 {
		delete(w.cells, pos)
		return nil
	}
	w.cells[pos] = st
	return nil
}

// Fill sets every block of vol to typ.
func (w *Mem) Fill(vol *volume.Volume, typ string) error {
	return vol.Scan(func(p volume.Vec3i) error {
		return w.SetCellAt(p, cell.State{Type: typ})
	})
}

// Positions lists occupied positions in scan order.
func (w *Mem) Positions() []volume.Vec3i {
	out := make([]volume.Vec3i, 0, len(w.cells))
	for p := range w.cells {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].Z < out[j].Z
	})
	return out
}

func (w *Mem) Len() int { return len(w.cells) }
