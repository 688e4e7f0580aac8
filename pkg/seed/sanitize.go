package seed

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/loom/pkg/domain"
)

var (
	// DefaultMaxTextSize is 64KB per text seed
	DefaultMaxTextSize = 64 << 10
	// EnvMaxTextSize is the environment variable to override the default
	EnvMaxTextSize = "LOOM_MAX_TEXT_SIZE"
)

var (
	ErrTextTooLarge = errors.New("text exceeds maximum allowed size")
	ErrInvalidUTF8  = errors.New("text contains invalid UTF-8 sequences")
)

// Sanitize returns a copy of s in which every text seed has been checked
// against the size limit and UTF-8 validity and stripped of control characters.
// Plain values are left untouched.
func Sanitize(s Seed) (Seed, error) {
	return sanitize(normalize(s), nil)
}

// SanitizeDocument applies Sanitize to every top-level entry.
func SanitizeDocument(entries []Field) ([]Field, error) {
	out := make([]Field, len(entries))
	for i, e := range entries {
		s, err := sanitize(normalize(e.Seed), []string{e.Key})
		if err != nil {
			return nil, err
		}
		out[i] = Field{Key: e.Key, Seed: s}
	}
	return out, nil
}

func sanitize(s Seed, path []string) (Seed, error) {
	switch s := s.(type) {
	case TextSeed:
		clean, err := SanitizeText(s.Text)
		if err != nil {
			if len(path) > 0 {
				return nil, fmt.Errorf("%s: %w", strings.Join(path, "."), err)
			}
			return nil, err
		}
		return TextSeed{Text: clean}, nil
	case ListSeed:
		items := make([]Seed, len(s.Items))
		for i, it := range s.Items {
			c, err := sanitize(normalize(it), domain.JoinPath(path, fmt.Sprint(i)))
			if err != nil {
				return nil, err
			}
			items[i] = c
		}
		return ListSeed{Items: items}, nil
	case MapSeed:
		fields := make([]Field, len(s.Fields))
		for i, f := range s.Fields {
			c, err := sanitize(normalize(f.Seed), domain.JoinPath(path, f.Key))
			if err != nil {
				return nil, err
			}
			fields[i] = Field{Key: f.Key, Seed: c}
		}
		return MapSeed{Fields: fields}, nil
	default:
		return s, nil
	}
}

// SanitizeText enforces the size limit, validates UTF-8 and strips
// control characters other than newline, tab and carriage return.
func SanitizeText(input string) (string, error) {
	limit := maxTextSize()
	if len(input) > limit {
		// Reject rather than truncate so seeded state stays deterministic.
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrTextTooLarge, len(input), limit)
	}

	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	clean := true
	for _, r := range input {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

func maxTextSize() int {
	if val := os.Getenv(EnvMaxTextSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxTextSize
}
