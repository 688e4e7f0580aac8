package domain

import "fmt"

// Kind identifies one member of the closed value taxonomy.
type Kind uint8

const (
	// KindPlain is copied data: nil, bool, number, string, plain arrays and objects.
	KindPlain Kind = iota
	// KindText is a collaborative rune sequence.
	KindText
	// KindList is a collaborative ordered sequence of values.
	KindList
	// KindMap is a collaborative string-keyed map of values.
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindText:
		return "text"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// IsContainer reports whether values of this kind are runtime-managed containers.
func (k Kind) IsContainer() bool {
	return k == KindText || k == KindList || k == KindMap
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "plain":
		return KindPlain, nil
	case "text":
		return KindText, nil
	case "list", "array":
		return KindList, nil
	case "map":
		return KindMap, nil
	default:
		return KindPlain, fmt.Errorf("%w: unknown kind %q", ErrShapeViolation, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
