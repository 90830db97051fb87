// Package selector builds and resolves the CSS selectors that address
// rendered chart elements.
//
// The supported grammar is deliberately small:
//
//	selector = "#" id [ combinator tag [ ":nth-of-type(" n ")" ] ]
//	combinator = " " | " > "
//
// where id is a node name escaped as a CSS identifier. A selector built by
// [Build] or [NthOfType] always parses back to the node name it was built
// from.
package selector

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/matzehuels/maidr/pkg/errors"
)

// Selector is a parsed selector.
type Selector struct {
	// ID is the unescaped node name.
	ID string
	// Tag restricts the match to elements of this tag below ID. Empty
	// selects the ID node itself.
	Tag string
	// Child restricts Tag matches to direct children.
	Child bool
	// Nth, when positive, keeps only the element that is the Nth of its
	// tag among its siblings.
	Nth int
}

// Build returns a selector for a node, optionally descending to elements
// of tag.
func Build(name, tag string) string {
	return Selector{ID: name, Tag: tag}.String()
}

// NthOfType returns a selector for the nth (1-based) child of tag under
// the named node.
func NthOfType(name, tag string, n int) string {
	return Selector{ID: name, Tag: tag, Child: true, Nth: n}.String()
}

// String formats the selector.
func (s Selector) String() string {
	var b strings.Builder
	b.WriteByte('#')
	b.WriteString(Escape(s.ID))
	if s.Tag == "" {
		return b.String()
	}
	if s.Child {
		b.WriteString(" > ")
	} else {
		b.WriteByte(' ')
	}
	b.WriteString(s.Tag)
	if s.Nth > 0 {
		fmt.Fprintf(&b, ":nth-of-type(%d)", s.Nth)
	}
	return b.String()
}

// Escape escapes a string for use as a CSS identifier.
func Escape(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == 0:
			b.WriteRune(utf8.RuneError)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, "\\%x ", r)
		case i == 0 && r >= '0' && r <= '9':
			fmt.Fprintf(&b, "\\%x ", r)
		case i == 1 && r >= '0' && r <= '9' && s[0] == '-':
			fmt.Fprintf(&b, "\\%x ", r)
		case i == 0 && r == '-' && len(s) == 1:
			b.WriteString("\\-")
		case r >= 0x80, r == '-', r == '_',
			r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Unescape reverses [Escape] and also accepts any valid CSS escape.
func Unescape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			i++
			continue
		}
		r, n := readEscape(s[i+1:])
		b.WriteRune(r)
		i += 1 + n
	}
	return b.String()
}

// readEscape decodes the escape following a backslash and returns the rune
// and the number of bytes consumed.
func readEscape(s string) (rune, int) {
	n := 0
	for n < len(s) && n < 6 && isHex(s[n]) {
		n++
	}
	if n == 0 {
		r, size := utf8.DecodeRuneInString(s)
		return r, size
	}
	v, _ := strconv.ParseUint(s[:n], 16, 32)
	if n < len(s) && isSpace(s[n]) {
		n++
	}
	r := rune(v)
	if r == 0 || r > utf8.MaxRune || (r >= 0xd800 && r <= 0xdfff) {
		r = utf8.RuneError
	}
	return r, n
}

// Parse parses a selector in the supported grammar.
func Parse(sel string) (Selector, error) {
	if !strings.HasPrefix(sel, "#") {
		return Selector{}, errors.New(errors.ErrCodeInvalidSelector, "selector %q does not start with #", sel)
	}

	i := 1
	for i < len(sel) {
		c := sel[i]
		if c == '\\' && i+1 < len(sel) {
			_, n := readEscape(sel[i+1:])
			i += 1 + n
			continue
		}
		if isSpace(c) || c == '>' || c == ':' || c == '.' || c == '[' {
			break
		}
		i++
	}
	s := Selector{ID: Unescape(sel[1:i])}
	if s.ID == "" {
		return Selector{}, errors.New(errors.ErrCodeInvalidSelector, "selector %q has an empty id", sel)
	}

	rest := sel[i:]
	if rest == "" {
		return s, nil
	}
	trimmed := strings.TrimLeft(rest, " \t")
	if trimmed == rest {
		return Selector{}, errors.New(errors.ErrCodeInvalidSelector, "unsupported selector %q", sel)
	}
	if strings.HasPrefix(trimmed, ">") {
		s.Child = true
		trimmed = strings.TrimLeft(trimmed[1:], " \t")
	}

	tag := trimmed
	if j := strings.IndexByte(trimmed, ':'); j >= 0 {
		tag = trimmed[:j]
		pseudo := trimmed[j:]
		if !strings.HasPrefix(pseudo, ":nth-of-type(") || !strings.HasSuffix(pseudo, ")") {
			return Selector{}, errors.New(errors.ErrCodeInvalidSelector, "unsupported pseudo-class in %q", sel)
		}
		n, err := strconv.Atoi(pseudo[len(":nth-of-type(") : len(pseudo)-1])
		if err != nil || n < 1 {
			return Selector{}, errors.New(errors.ErrCodeInvalidSelector, "invalid nth-of-type index in %q", sel)
		}
		s.Nth = n
	}
	if !isTag(tag) {
		return Selector{}, errors.New(errors.ErrCodeInvalidSelector, "invalid tag %q in %q", tag, sel)
	}
	s.Tag = tag
	return s, nil
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func isTag(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' && i > 0) {
			return false
		}
	}
	return true
}
