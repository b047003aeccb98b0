// Package facemap translates QQ built-in face codes into Unicode emoji.
package facemap

import (
	"fmt"
	"strings"
)

// DefaultFallback is used when no fallback format is configured
const DefaultFallback = "[face:%s]"

// Table resolves face codes. It is read-only after construction.
type Table struct {
	glyphs   map[string]string
	fallback string
}

// New builds a table from the built-in glyphs with overrides applied on top.
// fallback is a format with one %s verb for the code.
func New(overrides map[string]string, fallback string) *Table {
	glyphs := make(map[string]string, len(builtin)+len(overrides))
	for code, glyph := range builtin {
		glyphs[code] = glyph
	}
	for code, glyph := range overrides {
		glyphs[strings.TrimSpace(code)] = glyph
	}
	if !ValidFallback(fallback) {
		fallback = DefaultFallback
	}
	return &Table{glyphs: glyphs, fallback: fallback}
}

// ValidFallback reports whether format holds exactly one verb and that verb
// is a bare %s. A literal percent sign is written %%.
func ValidFallback(format string) bool {
	verbs := 0
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		i++
		if i == len(format) {
			return false
		}
		switch format[i] {
		case '%':
		case 's':
			verbs++
		default:
			return false
		}
	}
	return verbs == 1
}

// Lookup returns the glyph for code
func (t *Table) Lookup(code string) (string, bool) {
	glyph, ok := t.glyphs[code]
	return glyph, ok
}

// Render returns the glyph for code, or the fallback label. The bool is
// false when the fallback was used.
func (t *Table) Render(code string) (string, bool) {
	if glyph, ok := t.glyphs[code]; ok {
		return glyph, true
	}
	return fmt.Sprintf(t.fallback, code), false
}

func (t *Table) Len() int {
	return len(t.glyphs)
}
