package ndps

import (
	"fmt"
	"sort"
)

// Shape is the decode category of an attribute syntax.
type Shape string

// Syntax shapes
const (
	ShapeNull      Shape = "null"
	ShapeScalar    Shape = "scalar"
	ShapeRange     Shape = "range"
	ShapeString    Shape = "string"
	ShapeNameOrID  Shape = "name_or_id"
	ShapeObjectID  Shape = "object_id"
	ShapeSequence  Shape = "sequence"
	ShapeChoice    Shape = "choice"
	ShapeComposite Shape = "composite"
)

// Syntax describes one attribute syntax tag.
type Syntax struct {
	Tag   uint32 `json:"tag"`
	Name  string `json:"name"`
	Shape Shape  `json:"shape"`

	dec recipe
}

// syntaxes is filled by init; its recipes refer back to attribute decoding.
var syntaxes map[uint32]Syntax

func init() {
	syntaxes = make(map[uint32]Syntax, len(syntaxTable))
	for _, s := range syntaxTable {
		if _, dup := syntaxes[s.Tag]; dup {
			panic(fmt.Sprintf("ndps: duplicate syntax tag %d", s.Tag))
		}
		syntaxes[s.Tag] = s
	}
}

// LookupSyntax returns the syntax registered for tag.
func LookupSyntax(tag uint32) (Syntax, bool) {
	s, ok := syntaxes[tag]
	return s, ok
}

// SyntaxName returns the name of tag, or "Unknown" if it is not registered.
func SyntaxName(tag uint32) string {
	if s, ok := syntaxes[tag]; ok {
		return s.Name
	}
	return "Unknown"
}

// Syntaxes returns every registered syntax ordered by tag.
func Syntaxes() []Syntax {
	out := make([]Syntax, 0, len(syntaxes))
	for _, s := range syntaxes {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}

func syn(tag uint32, name string, shape Shape, dec recipe) Syntax {
	return Syntax{Tag: tag, Name: name, Shape: shape, dec: dec}
}

// syntaxTable is the attribute syntax wire contract, tags 0x00 through 0x6d.
var syntaxTable = []Syntax{
	syn(0x00, "Null", ShapeNull, none),
	syn(0x01, "Text", ShapeString, stringField),
	syn(0x02, "Descriptive Name", ShapeString, stringField),
	syn(0x03, "Descriptor", ShapeString, stringField),
	syn(0x04, "Message", ShapeNameOrID, nameOrID),
	syn(0x05, "Error Message", ShapeNameOrID, nameOrID),
	syn(0x06, "Simple Name", ShapeString, stringField),
	syn(0x07, "Distinguished Name String", ShapeComposite, distinguishedNameString),
	syn(0x08, "Distinguished Name String Seq", ShapeSequence, seqOf(distinguishedNameString)),
	syn(0x09, "Delta Time", ShapeScalar, scalar),
	syn(0x0a, "Time", ShapeScalar, scalar),
	syn(0x0b, "Integer", ShapeScalar, scalar),
	syn(0x0c, "Integer Seq", ShapeSequence, seqOf(u32)),
	syn(0x0d, "Cardinal", ShapeScalar, scalar),
	syn(0x0e, "Cardinal Seq", ShapeSequence, seqOf(u32)),
	syn(0x0f, "Positive Integer", ShapeScalar, scalar),
	syn(0x10, "Integer Range", ShapeRange, range32),
	syn(0x11, "Cardinal Range", ShapeRange, range32),
	syn(0x12, "Maximum Integer", ShapeScalar, scalar),
	syn(0x13, "Minimum Integer", ShapeScalar, scalar),
	syn(0x14, "Integer 64", ShapeScalar, u64),
	syn(0x15, "Integer 64 Seq", ShapeSequence, seqOf(u64)),
	syn(0x16, "Cardinal 64", ShapeScalar, u64),
	syn(0x17, "Cardinal 64 Seq", ShapeSequence, seqOf(u64)),
	syn(0x18, "Positive Integer 64", ShapeScalar, u64),
	syn(0x19, "Integer 64 Range", ShapeRange, range64),
	syn(0x1a, "Cardinal 64 Range", ShapeRange, range64),
	syn(0x1b, "Maximum Integer 64", ShapeScalar, u64),
	syn(0x1c, "Minimum Integer 64", ShapeScalar, u64),
	syn(0x1d, "Real", ShapeScalar, u64),
	syn(0x1e, "Real Seq", ShapeSequence, seqOf(u64)),
	syn(0x1f, "Non-Negative Real", ShapeScalar, u64),
	syn(0x20, "Real Range", ShapeRange, range64),
	syn(0x21, "Non-Negative Real Range", ShapeRange, range64),
	syn(0x22, "Boolean", ShapeScalar, flag),
	syn(0x23, "Percent", ShapeScalar, scalar),
	syn(0x24, "Object Identifier", ShapeObjectID, objectID),
	syn(0x25, "Object Identifier Seq", ShapeSequence, seqOf(objectID)),
	syn(0x26, "Name or OID", ShapeNameOrID, nameOrID),
	syn(0x27, "Name or OID Seq", ShapeSequence, seqOf(nameOrID)),
	syn(0x28, "Distinguished Name", ShapeString, stringField),
	syn(0x29, "Relative Distinguished Name Seq", ShapeSequence, seqOf(stringField)),
	syn(0x2a, "Realization", ShapeScalar, u32),
	syn(0x2b, "Medium Dimensions", ShapeComposite, xy64),
	syn(0x2c, "Dimension", ShapeChoice, dimension),
	syn(0x2d, "XY Dimensions", ShapeChoice, xyDimensions),
	syn(0x2e, "Locations", ShapeChoice, locations),
	syn(0x2f, "Area", ShapeComposite, area),
	syn(0x30, "Area Seq", ShapeSequence, seqOf(area)),
	syn(0x31, "Edge", ShapeScalar, u32),
	syn(0x32, "Font Reference", ShapeString, stringField),
	syn(0x33, "Cardinal or OID", ShapeChoice, choice("cardinal_or_oid", objectID, on(0, u32))),
	syn(0x34, "OID Cardinal Map", ShapeComposite, fields("oid_cardinal_map", f("oid", objectID), f("cardinal", u32))),
	syn(0x35, "Cardinal or Name or OID", ShapeChoice, choice("cardinal_or_name_or_oid", nameOrID, on(0, u32))),
	syn(0x36, "Positive Integer or OID", ShapeChoice, choice("positive_integer_or_oid", u32, on(0, objectID))),
	syn(0x37, "Event Handling Profile", ShapeComposite, eventHandlingProfile),
	syn(0x38, "Octet String", ShapeString, octets),
	syn(0x39, "Priority", ShapeScalar, scalar),
	syn(0x3a, "Locale", ShapeString, stringField),
	syn(0x3b, "Method Delivery Address", ShapeChoice, methodDeliveryAddress),
	syn(0x3c, "Object Identification", ShapeChoice, objectIdentification),
	syn(0x3d, "Results Profile", ShapeComposite, resultsProfile),
	syn(0x3e, "Criteria", ShapeComposite, criteria),
	syn(0x3f, "Job Password", ShapeString, octets),
	syn(0x40, "Job Level", ShapeScalar, u32),
	syn(0x41, "Job Categories", ShapeSequence, seqOf(nameOrID)),
	syn(0x42, "Print Checkpoint", ShapeString, octets),
	syn(0x43, "Ignored Attribute", ShapeObjectID, objectID),
	syn(0x44, "Resource", ShapeChoice, resource),
	syn(0x45, "Medium Substitution", ShapeComposite, fields("medium_substitution", f("old", nameOrID), f("new", nameOrID))),
	syn(0x46, "Font Substitution", ShapeComposite, fields("font_substitution", f("old", stringField), f("new", stringField))),
	syn(0x47, "Resource Context Seq", ShapeSequence, seqOf(resource)),
	syn(0x48, "Sides", ShapeScalar, scalar),
	syn(0x49, "Page Select Seq", ShapeSequence, seqOf(pageSelect)),
	syn(0x4a, "Page Media Select", ShapeComposite, pageMediaSelect),
	syn(0x4b, "Document Content", ShapeChoice, documentContent),
	syn(0x4c, "Page Size", ShapeChoice, choice("page_size", stringField, on(0, objectID))),
	syn(0x4d, "Presentation Direction", ShapeScalar, u32),
	syn(0x4e, "Page Order", ShapeScalar, u32),
	syn(0x4f, "File Reference", ShapeComposite, distinguishedNameString),
	syn(0x50, "Medium Source Size", ShapeComposite, mediumSourceSize),
	syn(0x51, "Input Tray Medium", ShapeComposite, fields("input_tray_medium", f("tray", nameOrID), f("medium", nameOrID))),
	syn(0x52, "Output Bins Chars", ShapeSequence, seqOf(fields("output_bin", f("type", u32), f("capacity", u32)))),
	syn(0x53, "Page ID Type", ShapeScalar, u32),
	syn(0x54, "Level Range", ShapeRange, range32),
	syn(0x55, "Category Set", ShapeSequence, seqOf(nameOrID)),
	syn(0x56, "Numbers Up Supported", ShapeChoice, choice("numbers_up", none, on(0, u32), on(1, nameOrID), on(2, range32))),
	syn(0x57, "Finishing", ShapeSequence, seqOf(objectID)),
	syn(0x58, "Print Contained Object ID", ShapeComposite, fields("print_contained_object_id", f("printer", stringField), f("object", objectID))),
	syn(0x59, "Print Config Object ID", ShapeComposite, fields("print_config_object_id", f("printer", stringField), f("qualified_name", qualifiedName))),
	syn(0x5a, "Typed Name", ShapeComposite, fields("typed_name", f("name", qualifiedName), f("name_type", u32))),
	syn(0x5b, "Network Address", ShapeComposite, netAddress),
	syn(0x5c, "XY Dimensions Value", ShapeChoice, choice("xy_dimensions_value", none, on(1, xy64), on(2, xy32))),
	syn(0x5d, "Name or OID Dimensions Map", ShapeComposite, fields("name_or_oid_dimensions_map", f("name", nameOrID), f("x", u32), f("y", u32))),
	syn(0x5e, "Printer State Reason", ShapeComposite, printerStateReason),
	syn(0x5f, "Enumeration", ShapeScalar, scalar),
	syn(0x60, "Qualified Name", ShapeComposite, qualifiedName),
	syn(0x61, "Qualified Name Set", ShapeSequence, seqOf(qualifiedName)),
	syn(0x62, "Colorant Set", ShapeSequence, seqOf(nameOrID)),
	syn(0x63, "Resource Printer ID Type", ShapeComposite, fields("resource_printer_id", f("printer", stringField), f("id_type", u32))),
	syn(0x64, "Event Object ID", ShapeComposite, fields("event_object_id", f("printer", stringField), f("qualified_name", qualifiedName), f("event", objectID))),
	syn(0x65, "Qualified Name Map", ShapeComposite, fields("qualified_name_map", f("old", qualifiedName), f("new", qualifiedName))),
	syn(0x66, "File Path", ShapeString, stringField),
	syn(0x67, "Uniform Resource Identifier", ShapeString, stringField),
	syn(0x68, "Cardinal or Enum or Time", ShapeComposite, fields("cardinal_or_enum_or_time", f("type", u32), f("value", u32))),
	syn(0x69, "Print Contained Object ID", ShapeComposite, fields("print_contained_object_id", f("printer", stringField), f("object", objectID))),
	syn(0x6a, "Octet String Pair", ShapeComposite, fields("octet_string_pair", f("first", octets), f("second", octets))),
	syn(0x6b, "Octet String Integer Pair", ShapeComposite, fields("octet_string_integer_pair", f("octets", octets), f("integer", u32))),
	syn(0x6c, "Extended Resource Identifier", ShapeString, stringField),
	syn(0x6d, "Event Handling Profile 2", ShapeComposite, eventHandlingProfile2),
}

var distinguishedNameString = fields("distinguished_name_string",
	f("name", stringField),
	f("qualified_name", qualifiedName),
)

// Dimension, XY Dimensions and Locations share a trailing unit flag and size.

var dimension = fields("dimension",
	f("size", choice("dimension_size", nameOrID, on(0, u64))),
	f("units", u32),
	f("unit_size", u64),
)

var xyDimensions = fields("xy_dimensions",
	f("size", choice("xy_dimensions_size", xy64, on(1, nameOrID))),
	f("units", u32),
	f("unit_size", u64),
)

var locations = fields("locations",
	f("locations", choice("location_list", nameOrID, on(0, seqOf(u64)))),
	f("units", u32),
	f("unit_size", u64),
)

var pageMediaSelect = fields("page_media_select",
	f("pages", choice("page_range", none,
		on(0, fields("page_range", f("start", u32), f("end", u32))),
		on(1, stringField),
	)),
	f("medium", nameOrID),
)

var documentContent = choice("document_content",
	fields("document_reference", f("name", stringField), f("format", nameOrID)),
	on(0, octets),
)

var mediumSourceSize = fields("medium_source_size",
	f("medium", nameOrID),
	f("size", choice("medium_size", nameOrID, on(0, xy64))),
	f("units", u32),
	f("unit_size", u64),
)
