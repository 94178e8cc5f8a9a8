// Package cell encodes a block's type, variant and special metadata into the
// row form kept by volume stores, and decodes it back.
//
// Metadata is text. Multi-field kinds join their fields with '\n', so only a
// command block's command may itself contain newlines. Containers are a YAML
// document with an `items` list.
package cell

import (
	"database/sql"
	"strconv"
	"strings"

	"github.com/zeebo/errs"
	"gopkg.in/yaml.v3"
)

// Error is the class of metadata encode and decode failures.
var Error = errs.Class("cell")

// State is a live cell as the world reports it. Kind is the capability of
// the placed block; Meta is nil for plain cells.
type State struct {
	Type    string
	Variant int16
	Kind    Kind
	Meta    Metadata
}

// Row is the persisted form of a cell, without its position.
type Row struct {
	Type     string
	Variant  int16
	Metadata sql.NullString
}

// ContainerPolicy decides what happens to container entries that are not
// valid item stacks.
type ContainerPolicy int

const (
	// DropMalformedItems skips bad entries and keeps the rest.
	DropMalformedItems ContainerPolicy = iota
	// RejectMalformedItems fails the whole container.
	RejectMalformedItems
)

func (p ContainerPolicy) String() string {
	if p == RejectMalformedItems {
		return "reject"
	}
	return "drop"
}

func ParseContainerPolicy(s string) (ContainerPolicy, error) {
	switch s {
	case "", "drop":
		return DropMalformedItems, nil
	case "reject":
		return RejectMalformedItems, nil
	}
	return DropMalformedItems, Error.New("unknown container policy %q", s)
}

type Codec struct {
	Containers ContainerPolicy
}

type containerDoc struct {
	Items []ItemStack `yaml:"items"`
}

// Encode renders a live cell as a row. Plain cells get NULL metadata. A
// special cell without metadata stores the Empty value for its kind.
func (c Codec) Encode(st State) (Row, error) {
	row := Row{Type: st.Type, Variant: st.Variant}
	meta := st.Meta
	switch {
	case meta != nil && meta.Kind() != st.Kind:
		return Row{}, Error.New("%s metadata on %s block %s", meta.Kind(), st.Kind, st.Type)
	case st.Kind == KindNone:
		return row, nil
	case meta == nil:
		if meta = Empty(st.Kind); meta == nil {
			return Row{}, Error.New("unsupported kind %s", st.Kind)
		}
	}
	text, err := c.EncodeMetadata(meta)
	if err != nil {
		return Row{}, err
	}
	row.Metadata = text
	return row, nil
}

// Empty is the metadata a freshly placed block of kind k carries, or nil
// for KindNone.
func Empty(k Kind) Metadata {
	switch k {
	case KindSign:
		return Sign{}
	case KindContainer:
		return Container{Items: []ItemStack{}}
	case KindNote:
		return Note{Tone: ToneF, Sharped: true}
	case KindRecord:
		return Record{Item: "AIR"}
	case KindSkull:
		return Skull{Type: SkullSkeleton, Facing: FaceSelf}
	case KindCommandBlock:
		return CommandBlock{}
	case KindSpawner:
		return Spawner{Entity: "PIG"}
	}
	return nil
}

// EncodeMetadata renders m as stored text; nil becomes NULL. Values that
// would not decode back are rejected.
func (c Codec) EncodeMetadata(m Metadata) (sql.NullString, error) {
	var text string
	switch m := m.(type) {
	case nil:
		return sql.NullString{}, nil
	case Sign:
		for i, line := range m.Lines {
			if err := singleLine("sign line "+strconv.Itoa(i), line); err != nil {
				return sql.NullString{}, err
			}
		}
		text = strings.Join(m.Lines[:], "\n")
	case Container:
		items := m.Items
		if items == nil {
			items = []ItemStack{}
		}
		for i, it := range items {
			if err := validItemStack(it); err != nil {
				return sql.NullString{}, Error.New("container: item %d: %v", i, err)
			}
		}
		b, err := yaml.Marshal(containerDoc{Items: items})
		if err != nil {
			return sql.NullString{}, Error.Wrap(err)
		}
		text = string(b)
	case Note:
		if _, err := ParseTone(string(m.Tone)); err != nil {
			return sql.NullString{}, err
		}
		if m.Octave < 0 || m.Octave > MaxOctave {
			return sql.NullString{}, Error.New("note octave %d out of range", m.Octave)
		}
		text = string(m.Tone) + "\n" + strconv.Itoa(m.Octave) + "\n" + strconv.FormatBool(m.Sharped)
	case Record:
		if _, err := ParseIdentifier(m.Item); err != nil {
			return sql.NullString{}, err
		}
		text = m.Item
	case Skull:
		if err := singleLine("skull owner", m.Owner); err != nil {
			return sql.NullString{}, err
		}
		if _, err := ParseSkullType(string(m.Type)); err != nil {
			return sql.NullString{}, err
		}
		if _, err := ParseBlockFace(string(m.Facing)); err != nil {
			return sql.NullString{}, err
		}
		text = m.Owner + "\n" + string(m.Type) + "\n" + string(m.Facing)
	case CommandBlock:
		if err := singleLine("command block name", m.Name); err != nil {
			return sql.NullString{}, err
		}
		text = m.Name + "\n" + m.Command
	case Spawner:
		if _, err := ParseIdentifier(m.Entity); err != nil {
			return sql.NullString{}, err
		}
		text = m.Entity
	default:
		return sql.NullString{}, Error.New("unsupported metadata %T", m)
	}
	return sql.NullString{String: text, Valid: true}, nil
}

func singleLine(field, s string) error {
	if strings.Contains(s, "\n") {
		return Error.New("%s contains a newline", field)
	}
	return nil
}

// Decode parses stored metadata for a cell whose live capability is kind.
// KindNone and NULL metadata decode to nil.
func (c Codec) Decode(kind Kind, metadata sql.NullString) (Metadata, error) {
	if kind == KindNone || !metadata.Valid {
		return nil, nil
	}
	text := metadata.String
	switch kind {
	case KindSign:
		return decodeSign(text)
	case KindContainer:
		return c.decodeContainer(text)
	case KindNote:
		return decodeNote(text)
	case KindRecord:
		item, err := ParseIdentifier(text)
		if err != nil {
			return nil, err
		}
		return Record{Item: item}, nil
	case KindSkull:
		return decodeSkull(text)
	case KindCommandBlock:
		parts := strings.SplitN(text, "\n", 2)
		if len(parts) != 2 {
			return nil, Error.New("command block: want name and command, got %d fields", len(parts))
		}
		return CommandBlock{Name: parts[0], Command: parts[1]}, nil
	case KindSpawner:
		entity, err := ParseIdentifier(text)
		if err != nil {
			return nil, err
		}
		return Spawner{Entity: entity}, nil
	default:
		return nil, Error.New("unsupported kind %s", kind)
	}
}

func decodeSign(text string) (Metadata, error) {
	lines := strings.Split(text, "\n")
	if len(lines) > SignLines {
		return nil, Error.New("sign: %d lines, max %d", len(lines), SignLines)
	}
	var s Sign
	copy(s.Lines[:], lines)
	return s, nil
}

func (c Codec) decodeContainer(text string) (Metadata, error) {
	var doc struct {
		Items yaml.Node `yaml:"items"`
	}
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, Error.New("container: %v", err)
	}
	if doc.Items.Kind != yaml.SequenceNode {
		return nil, Error.New("container: missing items list")
	}

	items := make([]ItemStack, 0, len(doc.Items.Content))
	for i, n := range doc.Items.Content {
		if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
			// Empty slot.
			continue
		}
		var it ItemStack
		err := n.Decode(&it)
		if err == nil {
			err = validItemStack(it)
		}
		if err != nil {
			if c.Containers == RejectMalformedItems {
				return nil, Error.New("container: item %d: %v", i, err)
			}
			continue
		}
		items = append(items, it)
	}
	return Container{Items: items}, nil
}

func validItemStack(it ItemStack) error {
	if _, err := ParseIdentifier(it.Type); err != nil {
		return err
	}
	if it.Amount <= 0 {
		return Error.New("amount %d", it.Amount)
	}
	return nil
}

func decodeNote(text string) (Metadata, error) {
	parts := strings.Split(text, "\n")
	if len(parts) != 3 {
		return nil, Error.New("note: want 3 fields, got %d", len(parts))
	}
	tone, err := ParseTone(parts[0])
	if err != nil {
		return nil, err
	}
	octave, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, Error.New("note octave: %v", err)
	}
	if octave < 0 || octave > MaxOctave {
		return nil, Error.New("note octave %d out of range", octave)
	}
	sharped, err := strconv.ParseBool(parts[2])
	if err != nil {
		return nil, Error.New("note sharped: %v", err)
	}
	return Note{Tone: tone, Octave: octave, Sharped: sharped}, nil
}

func decodeSkull(text string) (Metadata, error) {
	parts := strings.Split(text, "\n")
	if len(parts) != 3 {
		return nil, Error.New("skull: want 3 fields, got %d", len(parts))
	}
	st, err := ParseSkullType(parts[1])
	if err != nil {
		return nil, err
	}
	face, err := ParseBlockFace(parts[2])
	if err != nil {
		return nil, err
	}
	return Skull{Owner: parts[0], Type: st, Facing: face}, nil
}
