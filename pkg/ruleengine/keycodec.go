package ruleengine

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/cellrules/engine/pkg/logging"
)

// DummyKey is the sentinel substituted for a literal null component of a
// compound key before parsing, so that keys with nullable parts (e.g. an
// unlinked rule's box name) round-trip through the codec instead of
// failing to parse.
const DummyKey = "__dummy__"

var (
	firstParenPair  = regexp.MustCompile(`^[^()]*\(([^()]*)\)`)
	secondParenPair = regexp.MustCompile(`^[^()]*\([^()]*\)[^()]*\(([^()]*)\)`)
	complexPair     = regexp.MustCompile(`^\s*([A-Za-z0-9_.]+)\s*=\s*'((?:[^']|'')*)'\s*$`)
)

// ReplaceNullToDummy substitutes the literal value null with DummyKey so a
// key fragment like "(Name='R',_Box.Name=null)" parses instead of failing
// on the bare, unquoted null token.
func ReplaceNullToDummy(key string) string {
	return strings.ReplaceAll(key, "=null", "='"+DummyKey+"'")
}

// ParseFirstKey extracts the first "(...)" group from a fragment of the
// form "Entity(key)" or "Entity(key)/NavProp(key2)". A parse failure (no
// parenthesized group found) is logged and reported via ok=false, which
// the caller must treat as "skip this control event".
func ParseFirstKey(s string) (key string, ok bool) {
	m := firstParenPair.FindStringSubmatch(s)
	if m == nil {
		logging.Logger.Error().Str("input", s).Msg("malformed key: no first parenthesized group")
		return "", false
	}
	return m[1], true
}

// ParseSecondKey extracts the second "(...)" group from a fragment of the
// form "Entity(key)/NavProp(key2)".
func ParseSecondKey(s string) (key string, ok bool) {
	m := secondParenPair.FindStringSubmatch(s)
	if m == nil {
		logging.Logger.Error().Str("input", s).Msg("malformed key: no second parenthesized group")
		return "", false
	}
	return m[1], true
}

// ComplexValue parses a key fragment (already run through
// ReplaceNullToDummy) in either Single mode (a bare quoted value) or
// Complex mode (a comma-separated name='value' list) and returns the value
// for fieldName. In Single mode fieldName is ignored: the sole value is
// returned regardless of its implied name. Parse failures are logged and
// yield ok=false.
func ComplexValue(key, fieldName string) (value string, ok bool) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return "", false
	}

	// Single mode: a bare quoted value with no '=' at the top level.
	if !strings.Contains(trimmed, "=") {
		if len(trimmed) >= 2 && trimmed[0] == '\'' && trimmed[len(trimmed)-1] == '\'' {
			return unescapeSingleQuoted(trimmed[1 : len(trimmed)-1]), true
		}
		logging.Logger.Error().Str("key", key).Msg("malformed key: single value must be quoted")
		return "", false
	}

	// Complex mode: split on top-level commas (none of our values contain
	// unescaped commas, so a naive split is sufficient here).
	for _, part := range splitTopLevelCommas(trimmed) {
		m := complexPair.FindStringSubmatch(part)
		if m == nil {
			logging.Logger.Error().Str("part", part).Msg("malformed key: expected name='value'")
			continue
		}
		if m[1] == fieldName {
			return unescapeSingleQuoted(m[2]), true
		}
	}
	return "", false
}

// BuildComplexKey serializes a compound key back into "Entity(k1='v1',k2='v2')"
// form, fields sorted by name, with an empty value written as DummyKey. The
// subscriber does not call it: it reads rules from the store by bare name.
func BuildComplexKey(entity string, fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s='%s'", name, escapeSingleQuoted(fields[name])))
	}
	return fmt.Sprintf("%s(%s)", entity, strings.Join(parts, ","))
}

func splitTopLevelCommas(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '\'':
			depth ^= 1 // toggle "inside quotes"; commas inside quotes are rare in these keys
		case ',':
			if depth == 0 {
				out = append(out, s[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, s[start:])
	return out
}

func unescapeSingleQuoted(s string) string {
	if s == DummyKey {
		return ""
	}
	return strings.ReplaceAll(s, "''", "'")
}

func escapeSingleQuoted(s string) string {
	if s == "" {
		return DummyKey
	}
	return strings.ReplaceAll(s, "'", "''")
}
