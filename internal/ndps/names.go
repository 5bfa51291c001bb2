package ndps

import "github.com/geekxflood/ndpsdecode/internal/cursor"

// NameOrId discriminants
const (
	nameOrIDNone   = 0
	nameOrIDGlobal = 1
	nameOrIDLocal  = 2
)

// decodeNameOrID reads a NameOrId and pads it to a 4-byte boundary measured
// from its discriminant.
func decodeNameOrID(c *cursor.Cursor) (Value, error) {
	start := c.Offset()
	d, err := c.ReadU32()
	if err != nil {
		return Value{}, err
	}

	n := &NameOrID{Tag: d}
	switch d {
	case nameOrIDGlobal:
		v, err := decodeOID(c)
		if err != nil {
			return Value{}, err
		}
		n.Form = NameOrIDGlobal
		n.Global = v.OID
	case nameOrIDLocal:
		v, err := decodeString(c)
		if err != nil {
			return Value{}, err
		}
		n.Form = NameOrIDLocal
		n.Local = v.Text
	default:
		n.Form = NameOrIDAbsent
	}

	c.AlignFrom(start, 4)
	return Value{Kind: KindNameOrID, NameOrID: n}, nil
}

// decodeQualifiedName reads a QualifiedName. Every discriminant other than
// 0 and 1 selects the NDS form.
func decodeQualifiedName(c *cursor.Cursor) (Value, error) {
	d, err := c.ReadU32()
	if err != nil {
		return Value{}, err
	}

	q := &QualifiedName{Tag: d}
	switch d {
	case 0:
		q.Form = QualifiedNameNone
	case 1:
		name, err := decodeString(c)
		if err != nil {
			return Value{}, err
		}
		q.Form = QualifiedNameSimple
		q.Name = name.Text
	default:
		context, err := decodeString(c)
		if err != nil {
			return Value{}, err
		}
		tree, err := decodeString(c)
		if err != nil {
			return Value{}, err
		}
		q.Form = QualifiedNameNDS
		q.Context = context.Text
		q.Tree = tree.Text
	}
	return Value{Kind: KindQualifiedName, QualifiedName: q}, nil
}
