// Package volume holds the block geometry shared by the persistence layer:
// integer positions, world-tagged locations, and the axis-aligned volume box.
package volume

import (
	"github.com/zeebo/errs"
)

// ErrPrecondition marks caller programming errors, such as rebasing a point
// against an origin in another world.
var ErrPrecondition = errs.Class("precondition")

type Vec3i struct {
	X int
	Y int
	Z int
}

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }
func (v Vec3i) Sub(o Vec3i) Vec3i { return Vec3i{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }

func (v Vec3i) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

// Location is a block position tagged with the world it belongs to.
type Location struct {
	World string
	Pos   Vec3i
}

// Rebase converts an absolute location into coordinates local to origin.
func Rebase(origin, point Location) (Vec3i, error) {
	if origin.World != point.World {
		return Vec3i{}, ErrPrecondition.New("locations must be in the same world (%q != %q)", origin.World, point.World)
	}
	return point.Pos.Sub(origin.Pos), nil
}

// Delocalize is the inverse of Rebase.
func Delocalize(origin Location, local Vec3i) Location {
	return Location{World: origin.World, Pos: origin.Pos.Add(local)}
}

// Volume is a named, closed box of blocks inside one world. Corner one is the
// anchor for local coordinates; corner two may lie on any side of it.
type Volume struct {
	Name  string
	World string

	CornerOne Vec3i
	CornerTwo Vec3i
}

func (v *Volume) Origin() Location { return Location{World: v.World, Pos: v.CornerOne} }

func (v *Volume) Min() Vec3i {
	return Vec3i{
		X: min(v.CornerOne.X, v.CornerTwo.X),
		Y: min(v.CornerOne.Y, v.CornerTwo.Y),
		Z: min(v.CornerOne.Z, v.CornerTwo.Z),
	}
}

func (v *Volume) Max() Vec3i {
	return Vec3i{
		X: max(v.CornerOne.X, v.CornerTwo.X),
		Y: max(v.CornerOne.Y, v.CornerTwo.Y),
		Z: max(v.CornerOne.Z, v.CornerTwo.Z),
	}
}

// Size is the extent along each axis; every component is at least 1.
func (v *Volume) Size() Vec3i {
	lo, hi := v.Min(), v.Max()
	return Vec3i{X: hi.X - lo.X + 1, Y: hi.Y - lo.Y + 1, Z: hi.Z - lo.Z + 1}
}

func (v *Volume) Cells() int {
	s := v.Size()
	return s.X * s.Y * s.Z
}

func (v *Volume) Contains(p Vec3i) bool {
	lo, hi := v.Min(), v.Max()
	return p.X >= lo.X && p.X <= hi.X &&
		p.Y >= lo.Y && p.Y <= hi.Y &&
		p.Z >= lo.Z && p.Z <= hi.Z
}

// Scan visits every absolute position inside the volume once, x outermost and
// z innermost. It stops at the first error fn returns.
func (v *Volume) Scan(fn func(p Vec3i) error) error {
	lo, hi := v.Min(), v.Max()
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for z := lo.Z; z <= hi.Z; z++ {
				if err := fn(Vec3i{X: x, Y: y, Z: z}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
