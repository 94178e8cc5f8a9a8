package cell

import (
	"fmt"
)

// Kind is the special capability of a live cell. It decides which metadata
// payload, if any, the cell carries.
type Kind uint8

const (
	KindNone Kind = iota
	KindSign
	KindContainer
	KindNote
	KindRecord
	KindSkull
	KindCommandBlock
	KindSpawner
)

var kindNames = [...]string{
	KindNone:         "none",
	KindSign:         "sign",
	KindContainer:    "container",
	KindNote:         "note",
	KindRecord:       "record",
	KindSkull:        "skull",
	KindCommandBlock: "command_block",
	KindSpawner:      "spawner",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return KindNone, Error.New("unknown cell kind %q", s)
}

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }
