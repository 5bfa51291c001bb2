package ndps

import (
	"github.com/geekxflood/ndpsdecode/internal/cursor"
)

// attribute decodes an attribute name followed by its value. The resolved
// name becomes the scope for the value.
func attribute(d *Decoder, c *cursor.Cursor, s scope) (Value, error) {
	name, err := decodeOID(c)
	if err != nil {
		return Value{}, err
	}

	inner := s
	inner.attribute = ""
	if name.OID != nil && name.OID.Resolved {
		inner.attribute = name.OID.Name
	}

	v, err := attributeValue(d, c, inner)
	if err != nil {
		return Value{}, err
	}

	out := composite("attribute", Field{Name: "name", Value: name})
	out.Fields = append(out.Fields, v.Fields...)
	out.Partial = v.Partial
	return out, nil
}

// attributeValue reads a syntax tag and the value it selects. An unknown tag
// is consumed but its payload is not: the caller cannot continue past it.
func attributeValue(d *Decoder, c *cursor.Cursor, s scope) (Value, error) {
	if s.depth >= d.opts.MaxDepth {
		return Value{}, ErrNestingTooDeep
	}
	s.depth++

	tag, err := c.ReadU32()
	if err != nil {
		return Value{}, err
	}
	syntax := integer32(tag)

	def, ok := syntaxes[tag]
	if !ok {
		out := composite("attribute_value",
			Field{Name: "syntax", Value: syntax},
			Field{Name: "value", Value: unknown(tag)},
		)
		out.Partial = true
		return out, nil
	}
	syntax.Label = def.Name

	v, err := def.dec(d, c, s)
	if err != nil {
		return Value{}, err
	}
	out := composite("attribute_value",
		Field{Name: "syntax", Value: syntax},
		Field{Name: "value", Value: v},
	)
	out.Partial = v.HasUnknown()
	return out, nil
}
