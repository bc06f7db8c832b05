// Package codec decodes the serialized embedding and keyword payloads
// written by the normalization service. It is a strict typed boundary with
// safe fallbacks: decoding never fails, it degrades, so one malformed row
// cannot abort a clustering cycle.
package codec

import (
	"strings"
	"unicode"

	"github.com/goccy/go-json"
)

// KeywordOptions controls keyword token cleaning.
type KeywordOptions struct {
	// MinRunes drops tokens shorter than this after cleaning.
	MinRunes int
	// HangulOnly strips every non-Hangul rune from each token before the
	// length check. Used by Korean deployments to drop mixed-language and
	// symbol contamination.
	HangulOnly bool
}

// ParseVector decodes a stored embedding into a vector of exactly dim
// elements. Malformed input, empty input, or a dimension mismatch all
// degrade to a zero vector with degraded=true.
func ParseVector(raw string, dim int) (vec []float32, degraded bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return make([]float32, dim), true
	}
	var parsed []float32
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil || len(parsed) != dim {
		return make([]float32, dim), true
	}
	return parsed, false
}

// ParseKeywords decodes a stored keyword collection into a cleaned token
// set. The canonical encoding is a JSON string array; a Python set-literal
// shim ({'a', 'b'}) is kept for rows written by the legacy preprocessing
// scripts. Unparsable input yields an empty set with degraded=true; an
// explicitly empty collection is not degraded.
func ParseKeywords(raw string, opts KeywordOptions) (set map[string]bool, degraded bool) {
	set = make(map[string]bool)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return set, false
	}

	var tokens []string
	if err := json.Unmarshal([]byte(raw), &tokens); err != nil {
		var ok bool
		tokens, ok = parseSetLiteral(raw)
		if !ok {
			return set, true
		}
	}

	for _, tok := range tokens {
		cleaned := cleanToken(tok, opts)
		if cleaned != "" {
			set[cleaned] = true
		}
	}
	return set, false
}

// cleanToken normalizes one keyword token. Returns "" when the token does
// not survive cleaning.
func cleanToken(tok string, opts KeywordOptions) string {
	tok = strings.TrimSpace(tok)
	if opts.HangulOnly {
		var b strings.Builder
		for _, r := range tok {
			if unicode.Is(unicode.Hangul, r) {
				b.WriteRune(r)
			}
		}
		tok = b.String()
	} else {
		tok = strings.ToLower(tok)
	}

	minRunes := opts.MinRunes
	if minRunes <= 0 {
		minRunes = 2
	}
	if len([]rune(tok)) < minRunes {
		return ""
	}
	return tok
}

// parseSetLiteral parses the Python repr of a set of strings,
// e.g. {'노후', '도로'} or {"a", "b"}. It only has to handle what the
// legacy scripts actually produced: single-level, quoted elements.
func parseSetLiteral(raw string) ([]string, bool) {
	if !strings.HasPrefix(raw, "{") || !strings.HasSuffix(raw, "}") {
		return nil, false
	}
	inner := strings.TrimSpace(raw[1 : len(raw)-1])
	if inner == "" {
		return nil, true
	}

	var tokens []string
	for _, part := range strings.Split(inner, ",") {
		part = strings.TrimSpace(part)
		if len(part) >= 2 {
			if (part[0] == '\'' && part[len(part)-1] == '\'') ||
				(part[0] == '"' && part[len(part)-1] == '"') {
				part = part[1 : len(part)-1]
			}
		}
		if part != "" {
			tokens = append(tokens, part)
		}
	}
	return tokens, true
}
