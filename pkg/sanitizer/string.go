package sanitizer

import (
	"strings"
	"unicode"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

func NormalizeName(name string) string {
	return TrimAndNormalize(name)
}

// NormalizeID trims an identifier. UUIDs are additionally lowercased so that the
// same id typed in either case maps to one stored key.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	if looksLikeUUID(id) {
		return strings.ToLower(id)
	}
	return id
}

func looksLikeUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	for i, r := range s {
		switch i {
		case 8, 13, 18, 23:
			if r != '-' {
				return false
			}
		default:
			if !unicode.Is(unicode.ASCII_Hex_Digit, r) {
				return false
			}
		}
	}
	return true
}

func NormalizeCurrency(code string) string {
	return Pipeline{strings.TrimSpace, strings.ToUpper}.Apply(code)
}

// NormalizeEnum maps s case-insensitively onto one of allowed, returning s trimmed
// when nothing matches.
func NormalizeEnum(s string, allowed ...string) string {
	s = strings.TrimSpace(s)
	for _, a := range allowed {
		if strings.EqualFold(s, a) {
			return a
		}
	}
	return s
}
