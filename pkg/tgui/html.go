package tgui

import (
	"html"
	"strings"
)

// H is HTML that is safe to send with ParseMode=HTML.
// Values of type H are already escaped.
type H string

func (h H) String() string { return string(h) }

// Esc escapes text for HTML parse mode.
func Esc(s string) H { return H(html.EscapeString(s)) }

func wrap(tag string, inner H) H { return H("<" + tag + ">" + inner.String() + "</" + tag + ">") }

func B(s string) H    { return wrap("b", Esc(s)) }
func I(s string) H    { return wrap("i", Esc(s)) }
func Code(s string) H { return wrap("code", Esc(s)) }

// Pre renders a preformatted block.
func Pre(s string) H {
	return H("<pre>" + html.EscapeString(s) + "</pre>")
}

// Join joins safe parts with sep, skipping blank ones.
func Join(sep string, parts ...H) H {
	ss := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p.String()) == "" {
			continue
		}
		ss = append(ss, p.String())
	}
	return H(strings.Join(ss, sep))
}

// Builder accumulates a multi-line message.
type Builder struct {
	lines []H
}

// Line appends one line made of parts joined by a space.
func (b *Builder) Line(parts ...H) *Builder {
	b.lines = append(b.lines, Join(" ", parts...))
	return b
}

// Field appends "<b>label:</b> value" with value escaped.
func (b *Builder) Field(label, value string) *Builder {
	return b.Line(B(label+":"), Esc(value))
}

func (b *Builder) HTML() H { return Join("\n", b.lines...) }
