package cell

import (
	"regexp"
)

// Metadata is the auxiliary state carried by special cells. The set of
// implementations is closed; Codec switches over all of them.
type Metadata interface {
	Kind() Kind
	isMetadata()
}

// SignLines is the number of text lines on a sign.
const SignLines = 4

type Sign struct {
	Lines [SignLines]string
}

// ItemStack is one occupied inventory slot.
type ItemStack struct {
	Type   string `yaml:"type"`
	Amount int    `yaml:"amount"`
	Damage int16  `yaml:"damage,omitempty"`
}

type Container struct {
	Items []ItemStack
}

type Note struct {
	Tone    Tone
	Octave  int
	Sharped bool
}

// Record is the disc playing in a jukebox.
type Record struct {
	Item string
}

type Skull struct {
	Owner  string
	Type   SkullType
	Facing BlockFace
}

type CommandBlock struct {
	Name    string
	Command string
}

type Spawner struct {
	Entity string
}

func (Sign) Kind() Kind         { return KindSign }
func (Container) Kind() Kind    { return KindContainer }
func (Note) Kind() Kind         { return KindNote }
func (Record) Kind() Kind       { return KindRecord }
func (Skull) Kind() Kind        { return KindSkull }
func (CommandBlock) Kind() Kind { return KindCommandBlock }
func (Spawner) Kind() Kind      { return KindSpawner }

func (Sign) isMetadata()         {}
func (Container) isMetadata()    {}
func (Note) isMetadata()         {}
func (Record) isMetadata()       {}
func (Skull) isMetadata()        {}
func (CommandBlock) isMetadata() {}
func (Spawner) isMetadata()      {}

type Tone string

const (
	ToneA Tone = "A"
	ToneB Tone = "B"
	ToneC Tone = "C"
	ToneD Tone = "D"
	ToneE Tone = "E"
	ToneF Tone = "F"
	ToneG Tone = "G"
)

// MaxOctave is the highest octave a note block can play.
const MaxOctave = 2

type SkullType string

const (
	SkullSkeleton SkullType = "SKELETON"
	SkullWither   SkullType = "WITHER"
	SkullZombie   SkullType = "ZOMBIE"
	SkullPlayer   SkullType = "PLAYER"
	SkullCreeper  SkullType = "CREEPER"
	SkullDragon   SkullType = "DRAGON"
)

type BlockFace string

const (
	FaceNorth          BlockFace = "NORTH"
	FaceEast           BlockFace = "EAST"
	FaceSouth          BlockFace = "SOUTH"
	FaceWest           BlockFace = "WEST"
	FaceUp             BlockFace = "UP"
	FaceDown           BlockFace = "DOWN"
	FaceNorthEast      BlockFace = "NORTH_EAST"
	FaceNorthWest      BlockFace = "NORTH_WEST"
	FaceSouthEast      BlockFace = "SOUTH_EAST"
	FaceSouthWest      BlockFace = "SOUTH_WEST"
	FaceWestNorthWest  BlockFace = "WEST_NORTH_WEST"
	FaceNorthNorthWest BlockFace = "NORTH_NORTH_WEST"
	FaceNorthNorthEast BlockFace = "NORTH_NORTH_EAST"
	FaceEastNorthEast  BlockFace = "EAST_NORTH_EAST"
	FaceEastSouthEast  BlockFace = "EAST_SOUTH_EAST"
	FaceSouthSouthEast BlockFace = "SOUTH_SOUTH_EAST"
	FaceSouthSouthWest BlockFace = "SOUTH_SOUTH_WEST"
	FaceWestSouthWest  BlockFace = "WEST_SOUTH_WEST"
	FaceSelf           BlockFace = "SELF"
)

var (
	knownTones = map[Tone]struct{}{
		ToneA: {}, ToneB: {}, ToneC: {}, ToneD: {}, ToneE: {}, ToneF: {}, ToneG: {},
	}
	knownSkullTypes = map[SkullType]struct{}{
		SkullSkeleton: {}, SkullWither: {}, SkullZombie: {},
		SkullPlayer: {}, SkullCreeper: {}, SkullDragon: {},
	}
	knownFaces = map[BlockFace]struct{}{
		FaceNorth: {}, FaceEast: {}, FaceSouth: {}, FaceWest: {}, FaceUp: {}, FaceDown: {},
		FaceNorthEast: {}, FaceNorthWest: {}, FaceSouthEast: {}, FaceSouthWest: {},
		FaceWestNorthWest: {}, FaceNorthNorthWest: {}, FaceNorthNorthEast: {}, FaceEastNorthEast: {},
		FaceEastSouthEast: {}, FaceSouthSouthEast: {}, FaceSouthSouthWest: {}, FaceWestSouthWest: {},
		FaceSelf: {},
	}
)

func ParseTone(s string) (Tone, error) {
	if _, ok := knownTones[Tone(s)]; !ok {
		return "", Error.New("unknown tone %q", s)
	}
	return Tone(s), nil
}

func ParseSkullType(s string) (SkullType, error) {
	if _, ok := knownSkullTypes[SkullType(s)]; !ok {
		return "", Error.New("unknown skull type %q", s)
	}
	return SkullType(s), nil
}

func ParseBlockFace(s string) (BlockFace, error) {
	if _, ok := knownFaces[BlockFace(s)]; !ok {
		return "", Error.New("unknown block face %q", s)
	}
	return BlockFace(s), nil
}

var identPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// ParseIdentifier checks a block, item, or entity type identifier.
func ParseIdentifier(s string) (string, error) {
	if !identPattern.MatchString(s) {
		return "", Error.New("bad identifier %q", s)
	}
	return s, nil
}
