// Package descriptor parses JVM method descriptors such as
// "(ILjava/lang/String;[[J)V" and rewrites the class names inside them.
package descriptor

import (
	"strings"

	"mcmappings/internal/core/errors"
)

// Type is one field type of a descriptor. Class is the internal class name
// for object types and empty for primitives; Dims counts array dimensions.
type Type struct {
	Primitive byte
	Class     string
	Dims      int
}

func (t Type) IsClass() bool { return t.Class != "" }

func (t Type) String() string {
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t Type) write(b *strings.Builder) {
	for i := 0; i < t.Dims; i++ {
		b.WriteByte('[')
	}
	if t.Class != "" {
		b.WriteByte('L')
		b.WriteString(t.Class)
		b.WriteByte(';')
		return
	}
	b.WriteByte(t.Primitive)
}

// Method is a parsed method descriptor. A void return is the primitive 'V'.
type Method struct {
	Params []Type
	Return Type
}

func (m Method) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for _, p := range m.Params {
		p.write(&b)
	}
	b.WriteByte(')')
	m.Return.write(&b)
	return b.String()
}

// Classes returns every class name referenced by m, in order of appearance.
func (m Method) Classes() []string {
	var out []string
	for _, p := range m.Params {
		if p.IsClass() {
			out = append(out, p.Class)
		}
	}
	if m.Return.IsClass() {
		out = append(out, m.Return.Class)
	}
	return out
}

// Renamer maps an internal class name to its new name. ok=false leaves the
// name untouched.
type Renamer func(class string) (renamed string, ok bool)

// Remap returns a copy of m with every class name passed through rename.
func (m Method) Remap(rename Renamer) Method {
	out := Method{Params: make([]Type, len(m.Params)), Return: remapType(m.Return, rename)}
	for i, p := range m.Params {
		out.Params[i] = remapType(p, rename)
	}
	return out
}

func remapType(t Type, rename Renamer) Type {
	if !t.IsClass() {
		return t
	}
	if renamed, ok := rename(t.Class); ok {
		t.Class = renamed
	}
	return t
}

// MapRenamer adapts a lookup table to a Renamer.
func MapRenamer(names map[string]string) Renamer {
	return func(class string) (string, bool) {
		renamed, ok := names[class]
		return renamed, ok
	}
}

func ParseMethod(raw string) (Method, error) {
	p := parser{src: raw}
	if !p.consume('(') {
		return Method{}, p.fail("expected '('")
	}
	var m Method
	for !p.consume(')') {
		if p.done() {
			return Method{}, p.fail("unterminated parameter list")
		}
		t, err := p.fieldType()
		if err != nil {
			return Method{}, err
		}
		if t.Primitive == 'V' {
			return Method{}, p.fail("void parameter")
		}
		m.Params = append(m.Params, t)
	}
	if p.consume('V') {
		m.Return = Type{Primitive: 'V'}
	} else {
		t, err := p.fieldType()
		if err != nil {
			return Method{}, err
		}
		m.Return = t
	}
	if !p.done() {
		return Method{}, p.fail("trailing characters")
	}
	return m, nil
}

// ParseField parses a single field descriptor such as "[Lnet/minecraft/a;".
func ParseField(raw string) (Type, error) {
	p := parser{src: raw}
	t, err := p.fieldType()
	if err != nil {
		return Type{}, err
	}
	if !p.done() {
		return Type{}, p.fail("trailing characters")
	}
	return t, nil
}

// RemapMethod parses raw, remaps it and formats it again.
func RemapMethod(raw string, rename Renamer) (string, error) {
	m, err := ParseMethod(raw)
	if err != nil {
		return "", err
	}
	return m.Remap(rename).String(), nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) done() bool { return p.pos >= len(p.src) }

func (p *parser) consume(c byte) bool {
	if !p.done() && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) fail(reason string) error {
	return errors.Newf(errors.CodeValidationError, "invalid descriptor %q at %d: %s", p.src, p.pos, reason)
}

func (p *parser) fieldType() (Type, error) {
	var t Type
	for p.consume('[') {
		t.Dims++
	}
	if p.done() {
		return Type{}, p.fail("unexpected end")
	}
	c := p.src[p.pos]
	p.pos++
	switch c {
	case 'Z', 'B', 'C', 'S', 'I', 'J', 'F', 'D':
		t.Primitive = c
	case 'V':
		if t.Dims > 0 {
			return Type{}, p.fail("array of void")
		}
		t.Primitive = c
	case 'L':
		end := strings.IndexByte(p.src[p.pos:], ';')
		if end <= 0 {
			return Type{}, p.fail("unterminated class name")
		}
		t.Class = p.src[p.pos : p.pos+end]
		p.pos += end + 1
	default:
		return Type{}, p.fail("unknown type " + string(c))
	}
	return t, nil
}
