package ndps

import (
	"fmt"
	"sort"

	"github.com/geekxflood/ndpsdecode/internal/cursor"
)

// Decode limits
const (
	// MaxItems caps the number of elements read from any count-prefixed sequence.
	MaxItems = 100
	// DefaultMaxDepth caps nested attribute values.
	DefaultMaxDepth = 16
)

// Options configures a Decoder.
type Options struct {
	MaxItems int
	MaxDepth int
}

// DefaultOptions returns the standard decode limits.
func DefaultOptions() Options {
	return Options{
		MaxItems: MaxItems,
		MaxDepth: DefaultMaxDepth,
	}
}

// Decoder decodes NDPS grammar elements. It holds no mutable state and is
// safe for concurrent use.
type Decoder struct {
	opts Options
}

// NewDecoder creates a decoder. Non-positive limits fall back to the defaults.
func NewDecoder(opts Options) *Decoder {
	def := DefaultOptions()
	if opts.MaxItems <= 0 {
		opts.MaxItems = def.MaxItems
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = def.MaxDepth
	}
	return &Decoder{opts: opts}
}

// Options returns the limits in effect.
func (d *Decoder) Options() Options {
	return d.opts
}

// Grammar names a top-level element the decoder can start from.
type Grammar string

// Decodable grammar elements
const (
	GrammarAttribute            Grammar = "attribute"
	GrammarAttributeValue       Grammar = "attribute-value"
	GrammarAttributeSet         Grammar = "attribute-set"
	GrammarString               Grammar = "string"
	GrammarObjectID             Grammar = "oid"
	GrammarNameOrID             Grammar = "name-or-id"
	GrammarQualifiedName        Grammar = "qualified-name"
	GrammarAddressItem          Grammar = "address-item"
	GrammarCredentials          Grammar = "credentials"
	GrammarObjectIdentification Grammar = "object-identification"
	GrammarEventObjectSet       Grammar = "event-object-set"
	GrammarEventProfile         Grammar = "event-handling-profile"
	GrammarResultsProfile       Grammar = "results-profile"
	GrammarServerEntry          Grammar = "server-entry"
	GrammarResubmit             Grammar = "resubmit"
	GrammarResourceInput        Grammar = "resource-input"
)

var grammars = map[Grammar]recipe{
	GrammarAttribute:            attribute,
	GrammarAttributeValue:       attributeValue,
	GrammarAttributeSet:         attributeSet,
	GrammarString:               stringField,
	GrammarObjectID:             objectID,
	GrammarNameOrID:             nameOrID,
	GrammarQualifiedName:        qualifiedName,
	GrammarAddressItem:          addressItem,
	GrammarCredentials:          credentials,
	GrammarObjectIdentification: objectIdentification,
	GrammarEventObjectSet:       eventObjectSet,
	GrammarEventProfile:         eventHandlingProfile,
	GrammarResultsProfile:       resultsProfile,
	GrammarServerEntry:          serverEntry,
	GrammarResubmit:             resubmitRecord,
	GrammarResourceInput:        resourceInputData,
}

// Grammars returns the names accepted by Decode, sorted.
func Grammars() []Grammar {
	out := make([]Grammar, 0, len(grammars))
	for g := range grammars {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseGrammar validates a grammar name.
func ParseGrammar(name string) (Grammar, error) {
	g := Grammar(name)
	if _, ok := grammars[g]; !ok {
		return "", fmt.Errorf("unknown grammar %q", name)
	}
	return g, nil
}

// Decode decodes grammar element g from data starting at offset and returns
// the value with the offset just past it.
func (d *Decoder) Decode(g Grammar, data []byte, offset int) (Value, int, error) {
	dec, ok := grammars[g]
	if !ok {
		return Value{}, offset, fmt.Errorf("unknown grammar %q", g)
	}
	c, err := cursor.At(data, offset)
	if err != nil {
		return Value{}, offset, wrap(string(g), offset, err)
	}
	v, err := dec(d, c, scope{})
	if err != nil {
		return Value{}, offset, wrap(string(g), offset, err)
	}
	return v, c.Offset(), nil
}

// DecodeAttribute decodes an attribute name and value at offset.
func (d *Decoder) DecodeAttribute(data []byte, offset int) (Value, int, error) {
	return d.Decode(GrammarAttribute, data, offset)
}

// DecodeAttributeValue decodes a syntax tag and its value at offset.
func (d *Decoder) DecodeAttributeValue(data []byte, offset int) (Value, int, error) {
	return d.Decode(GrammarAttributeValue, data, offset)
}

var defaultDecoder = NewDecoder(DefaultOptions())

// Decode decodes with the default limits.
func Decode(g Grammar, data []byte, offset int) (Value, int, error) {
	return defaultDecoder.Decode(g, data, offset)
}
