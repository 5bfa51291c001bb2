// Package ndps decodes the NDPS attribute-value wire grammar.
//
// Every decoder in this package reads from a cursor positioned at a length
// field, discriminant or syntax tag and returns a Value tree. Reads past the
// end of the buffer fail with ErrTruncatedInput; unknown discriminants and
// oversized repeat counts are recovered locally and marked in the tree.
package ndps

import (
	"fmt"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind int

// Value kinds
const (
	KindAbsent Kind = iota
	KindText
	KindBytes
	KindInteger32
	KindInteger64
	KindBoolean
	KindObjectID
	KindNameOrID
	KindQualifiedName
	KindRange
	KindSequence
	KindComposite
	KindUnknown
)

var kindNames = map[Kind]string{
	KindAbsent:        "absent",
	KindText:          "text",
	KindBytes:         "bytes",
	KindInteger32:     "integer32",
	KindInteger64:     "integer64",
	KindBoolean:       "boolean",
	KindObjectID:      "object_id",
	KindNameOrID:      "name_or_id",
	KindQualifiedName: "qualified_name",
	KindRange:         "range",
	KindSequence:      "sequence",
	KindComposite:     "composite",
	KindUnknown:       "unknown",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// NotSpecified is the text of a zero-length StringField.
const NotSpecified = "<Not Specified>"

// UnknownID labels an ObjectIdentifier whose well-known id is not in its symbol table.
const UnknownID = "Unknown ID"

// Value is one node of a decoded tree. Kind selects which fields are meaningful.
type Value struct {
	Kind Kind `json:"kind"`

	Text  string `json:"text,omitempty"`
	Bytes []byte `json:"bytes,omitempty"`
	// Num holds Integer32, Integer64 and Boolean payloads as raw unsigned bits.
	Num  uint64 `json:"num,omitempty"`
	Bool bool   `json:"bool,omitempty"`
	// Label is a symbolic rendering of Num when one is known (enumerations).
	Label string `json:"label,omitempty"`

	OID           *ObjectID      `json:"oid,omitempty"`
	NameOrID      *NameOrID      `json:"name_or_id,omitempty"`
	QualifiedName *QualifiedName `json:"qualified_name,omitempty"`
	Range         *Range         `json:"range,omitempty"`

	Items    []Value `json:"items,omitempty"`
	Declared uint32  `json:"declared,omitempty"`
	Partial  bool    `json:"partial,omitempty"`

	Name   string  `json:"name,omitempty"` // composite name
	Fields []Field `json:"fields,omitempty"`

	Tag uint32 `json:"tag,omitempty"` // syntax tag or discriminant of an Unknown value
}

// Field is a named member of a Composite.
type Field struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// ObjectID is a decoded NDPS object identifier.
type ObjectID struct {
	Size     uint32 `json:"size"`
	ID       uint32 `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Resolved bool   `json:"resolved"`
	ASN1Type uint8  `json:"asn1_type,omitempty"`
	Payload  []byte `json:"payload,omitempty"`
	SubIDs   []uint `json:"sub_ids,omitempty"`
}

// Dotted returns the sub-identifiers in dotted notation, or "" if they were not decoded.
func (o *ObjectID) Dotted() string {
	if o == nil || len(o.SubIDs) == 0 {
		return ""
	}
	parts := make([]string, len(o.SubIDs))
	for i, id := range o.SubIDs {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ".")
}

// NameOrIDForm selects the NameOrID variant.
type NameOrIDForm int

// NameOrID forms
const (
	NameOrIDAbsent NameOrIDForm = iota
	NameOrIDGlobal
	NameOrIDLocal
)

// NameOrID is either a global object identifier or a local name.
type NameOrID struct {
	Form   NameOrIDForm `json:"form"`
	Global *ObjectID    `json:"global,omitempty"`
	Local  string       `json:"local,omitempty"`
	Tag    uint32       `json:"tag"`
}

// QualifiedNameForm selects the QualifiedName variant.
type QualifiedNameForm int

// QualifiedName forms
const (
	QualifiedNameNone QualifiedNameForm = iota
	QualifiedNameSimple
	QualifiedNameNDS
)

// QualifiedName is absent, a simple name, or an NDS name qualified by tree.
type QualifiedName struct {
	Form    QualifiedNameForm `json:"form"`
	Name    string            `json:"name,omitempty"`    // Simple
	Context string            `json:"context,omitempty"` // NDS
	Tree    string            `json:"tree,omitempty"`    // NDS
	Tag     uint32            `json:"tag"`
}

// Range is a lower/upper pair of 32- or 64-bit bounds.
type Range struct {
	Lower uint64 `json:"lower"`
	Upper uint64 `json:"upper"`
	Wide  bool   `json:"wide"`
}

// Constructors keep the decoders terse.

func absent() Value { return Value{Kind: KindAbsent} }

func text(s string) Value { return Value{Kind: KindText, Text: s} }

func bytesValue(b []byte) Value { return Value{Kind: KindBytes, Bytes: b} }

func integer32(v uint32) Value { return Value{Kind: KindInteger32, Num: uint64(v)} }

func integer64(v uint64) Value { return Value{Kind: KindInteger64, Num: v} }

func boolean(v uint32) Value { return Value{Kind: KindBoolean, Num: uint64(v), Bool: v != 0} }

func unknown(tag uint32) Value { return Value{Kind: KindUnknown, Tag: tag} }

func composite(name string, fields ...Field) Value {
	return Value{Kind: KindComposite, Name: name, Fields: fields}
}

// Field returns the first field called name, if v is a Composite.
func (v Value) Field(name string) (Value, bool) {
	for _, f := range v.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Int32 returns the payload of an Integer32 as a signed value.
func (v Value) Int32() int32 {
	return int32(uint32(v.Num))
}

// IsPartial reports whether v or any value below it was clamped or cut short.
func (v Value) IsPartial() bool {
	if v.Partial {
		return true
	}
	for _, item := range v.Items {
		if item.IsPartial() {
			return true
		}
	}
	for _, f := range v.Fields {
		if f.Value.IsPartial() {
			return true
		}
	}
	return false
}

// HasUnknown reports whether v or any value below it is an unrecognised syntax.
func (v Value) HasUnknown() bool {
	if v.Kind == KindUnknown {
		return true
	}
	for _, item := range v.Items {
		if item.HasUnknown() {
			return true
		}
	}
	for _, f := range v.Fields {
		if f.Value.HasUnknown() {
			return true
		}
	}
	return false
}

// Walk calls fn for v and every value below it, depth first.
func (v Value) Walk(fn func(Value)) {
	fn(v)
	for _, item := range v.Items {
		item.Walk(fn)
	}
	for _, f := range v.Fields {
		f.Value.Walk(fn)
	}
}

// String returns a one-line rendering of scalar values.
func (v Value) String() string {
	switch v.Kind {
	case KindAbsent:
		return "(absent)"
	case KindText:
		return v.Text
	case KindBytes:
		return fmt.Sprintf("% x", v.Bytes)
	case KindInteger32, KindInteger64:
		if v.Label != "" {
			return fmt.Sprintf("%s (%d)", v.Label, v.Num)
		}
		return fmt.Sprintf("%d", v.Num)
	case KindBoolean:
		return fmt.Sprintf("%t", v.Bool)
	case KindObjectID:
		return v.OID.String()
	case KindNameOrID:
		return v.NameOrID.String()
	case KindQualifiedName:
		return v.QualifiedName.String()
	case KindRange:
		return fmt.Sprintf("%d..%d", v.Range.Lower, v.Range.Upper)
	case KindSequence:
		return fmt.Sprintf("%d of %d items", len(v.Items), v.Declared)
	case KindComposite:
		return v.Name
	case KindUnknown:
		return fmt.Sprintf("unknown (0x%08x)", v.Tag)
	default:
		return fmt.Sprintf("%v", v.Kind)
	}
}

func (o *ObjectID) String() string {
	if o == nil {
		return "(absent)"
	}
	if dotted := o.Dotted(); dotted != "" {
		return fmt.Sprintf("%s [%s]", o.Name, dotted)
	}
	return o.Name
}

func (n *NameOrID) String() string {
	if n == nil {
		return "(absent)"
	}
	switch n.Form {
	case NameOrIDGlobal:
		return "global: " + n.Global.String()
	case NameOrIDLocal:
		return "local: " + n.Local
	default:
		return "(absent)"
	}
}

func (q *QualifiedName) String() string {
	if q == nil {
		return "(none)"
	}
	switch q.Form {
	case QualifiedNameSimple:
		return q.Name
	case QualifiedNameNDS:
		return q.Context + "." + q.Tree
	default:
		return "(none)"
	}
}
