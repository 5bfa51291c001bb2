package ndps

import (
	"errors"

	"github.com/geekxflood/ndpsdecode/internal/cursor"
)

// scope carries per-call decode context down the recursion.
type scope struct {
	// attribute is the resolved name of the innermost enclosing attribute.
	attribute string
	depth     int
}

// recipe decodes one grammar element at the cursor.
type recipe func(d *Decoder, c *cursor.Cursor, s scope) (Value, error)

// field is a named member of a composite recipe.
type field struct {
	name string
	dec  recipe
}

func f(name string, dec recipe) field { return field{name: name, dec: dec} }

// leaf lifts a context-free decoder into a recipe.
func leaf(fn func(c *cursor.Cursor) (Value, error)) recipe {
	return func(_ *Decoder, c *cursor.Cursor, _ scope) (Value, error) {
		return fn(c)
	}
}

var (
	stringField   = leaf(decodeString)
	objectID      = leaf(decodeOID)
	nameOrID      = leaf(decodeNameOrID)
	qualifiedName = leaf(decodeQualifiedName)
	netAddress    = leaf(decodeNetworkAddress)

	u32     = leaf(decodeU32)
	u64     = leaf(decodeU64)
	flag    = leaf(decodeBool)
	range32 = leaf(decodeRange32)
	range64 = leaf(decodeRange64)
	octets  = leaf(decodeOctets)
	blob    = leaf(decodeBlob)

	none = leaf(func(*cursor.Cursor) (Value, error) { return absent(), nil })
)

func decodeU32(c *cursor.Cursor) (Value, error) {
	v, err := c.ReadU32()
	if err != nil {
		return Value{}, err
	}
	return integer32(v), nil
}

func decodeU64(c *cursor.Cursor) (Value, error) {
	v, err := c.ReadU64()
	if err != nil {
		return Value{}, err
	}
	return integer64(v), nil
}

func decodeBool(c *cursor.Cursor) (Value, error) {
	v, err := c.ReadU32()
	if err != nil {
		return Value{}, err
	}
	return boolean(v), nil
}

func decodeRange32(c *cursor.Cursor) (Value, error) {
	lower, err := c.ReadU32()
	if err != nil {
		return Value{}, err
	}
	upper, err := c.ReadU32()
	if err != nil {
		return Value{}, err
	}
	return Value{Kind: KindRange, Range: &Range{Lower: uint64(lower), Upper: uint64(upper)}}, nil
}

func decodeRange64(c *cursor.Cursor) (Value, error) {
	lower, err := c.ReadU64()
	if err != nil {
		return Value{}, err
	}
	upper, err := c.ReadU64()
	if err != nil {
		return Value{}, err
	}
	return Value{Kind: KindRange, Range: &Range{Lower: lower, Upper: upper, Wide: true}}, nil
}

// decodeOctets reads a u32-length octet string padded to an even length.
func decodeOctets(c *cursor.Cursor) (Value, error) {
	n, err := c.ReadLength()
	if err != nil {
		return Value{}, err
	}
	b, err := c.ReadBytes(n)
	if err != nil {
		return Value{}, err
	}
	c.SkipPad(n % 2)
	return bytesValue(b), nil
}

// decodeBlob reads a u32-length byte string with no padding.
func decodeBlob(c *cursor.Cursor) (Value, error) {
	n, err := c.ReadLength()
	if err != nil {
		return Value{}, err
	}
	b, err := c.ReadBytes(n)
	if err != nil {
		return Value{}, err
	}
	return bytesValue(b), nil
}

// Printer security levels
var securityLevels = map[uint32]string{
	1: "Low",
	2: "Medium",
	3: "High",
}

// scalar reads a u32 and labels it as a security level when the enclosing
// attribute is the printer security level.
func scalar(_ *Decoder, c *cursor.Cursor, s scope) (Value, error) {
	v, err := c.ReadU32()
	if err != nil {
		return Value{}, err
	}
	out := integer32(v)
	if s.attribute == PrinterSecurityLevelAttribute {
		if label, ok := securityLevels[v]; ok {
			out.Label = label
		} else {
			out.Label = "Unknown"
		}
	}
	return out, nil
}

// fields decodes members in order into a named composite. A member that
// reaches an unknown syntax ends the composite, which is then marked partial.
func fields(name string, members ...field) recipe {
	return func(d *Decoder, c *cursor.Cursor, s scope) (Value, error) {
		out := composite(name)
		out.Fields = make([]Field, 0, len(members))
		for _, m := range members {
			v, err := m.dec(d, c, s)
			if err != nil {
				return Value{}, err
			}
			out.Fields = append(out.Fields, Field{Name: m.name, Value: v})
			if v.HasUnknown() {
				out.Partial = true
				break
			}
		}
		return out, nil
	}
}

// seqOf decodes a count-prefixed sequence of elem.
func seqOf(elem recipe) recipe {
	return func(d *Decoder, c *cursor.Cursor, s scope) (Value, error) {
		return d.sequence(c, s, elem)
	}
}

// sequence reads a u32 count and at most MaxItems elements. A count above the
// cap marks the sequence partial; running out of input while reading such an
// over-declared sequence ends it instead of failing the decode.
func (d *Decoder) sequence(c *cursor.Cursor, s scope, elem recipe) (Value, error) {
	count, err := c.ReadU32()
	if err != nil {
		return Value{}, err
	}

	limit := int(min(count, uint32(d.opts.MaxItems)))
	out := Value{
		Kind:     KindSequence,
		Declared: count,
		Partial:  count > uint32(d.opts.MaxItems),
		Items:    make([]Value, 0, limit),
	}

	for i := 0; i < limit; i++ {
		mark := c.Offset()
		v, err := elem(d, c, s)
		if err != nil {
			if out.Partial && errors.Is(err, ErrTruncatedInput) {
				_ = c.Seek(mark)
				break
			}
			return Value{}, err
		}
		out.Items = append(out.Items, v)
		if v.HasUnknown() {
			out.Partial = true
			break
		}
	}
	return out, nil
}

// branch pairs a discriminant with the recipe it selects.
type branch struct {
	when uint32
	dec  recipe
}

func on(when uint32, dec recipe) branch { return branch{when: when, dec: dec} }

// choice reads a u32 discriminant and decodes the matching branch, or def
// when none matches. The result is a composite with "type" and "value".
func choice(name string, def recipe, branches ...branch) recipe {
	return func(d *Decoder, c *cursor.Cursor, s scope) (Value, error) {
		disc, err := c.ReadU32()
		if err != nil {
			return Value{}, err
		}
		dec := def
		for _, b := range branches {
			if b.when == disc {
				dec = b.dec
				break
			}
		}
		v, err := dec(d, c, s)
		if err != nil {
			return Value{}, err
		}
		out := composite(name, Field{Name: "type", Value: integer32(disc)}, Field{Name: "value", Value: v})
		out.Partial = v.HasUnknown()
		return out, nil
	}
}
