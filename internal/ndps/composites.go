package ndps

import "github.com/geekxflood/ndpsdecode/internal/cursor"

// Object identification types
var objectIdentification = choice("object_identification", none,
	on(1, fields("printer_contained_object_id", f("printer", stringField), f("object", objectID))),
	on(2, u32), // document identifier
	on(3, objectID),
	on(4, stringField), // object name
	on(5, nameOrID),
	on(6, stringField), // simple name
	on(7, fields("printer_config_object_id", f("printer", stringField), f("qualified_name", qualifiedName))),
	on(8, qualifiedName),
	on(9, fields("event_object_id", f("printer", stringField), f("qualified_name", qualifiedName), f("event", objectID))),
)

var eventObjectSet = seqOf(fields("event_object",
	f("event_type", u32),
	f("event", objectID),
	f("object_id", objectIdentification),
	f("object_op", u32),
	f("object_class", choice("event_object_kind", none,
		on(1, objectID),
		on(2, seqOf(objectID)),
	)),
))

var deliveryMethodSet = seqOf(fields("delivery_method",
	f("method", objectID),
	f("addresses", seqOf(addressItem)),
))

var eventHandlingProfileFields = []field{
	f("profile_id", u32),
	f("persistence", u32),
	f("consumer", qualifiedName),
	f("printer_agent", stringField),
	f("object_class", objectID),
	f("language", u32),
	f("delivery_methods", deliveryMethodSet),
	f("events", eventObjectSet),
}

var eventHandlingProfile = fields("event_handling_profile", eventHandlingProfileFields...)

var eventHandlingProfile2 = fields("event_handling_profile_2",
	append(append([]field{}, eventHandlingProfileFields...), f("attributes", attributeSet))...)

var resultsProfile = fields("results_profile",
	f("method", objectID),
	f("recipient", qualifiedName),
	f("printer_agent", stringField),
	f("object_class", objectID),
	f("language", u32),
)

var criteria = fields("criteria",
	f("attribute_id", objectID),
	f("operator", u32),
	f("attribute", attribute),
)

var methodDeliveryAddress = choice("method_delivery_address", none,
	on(0, blob),
	on(1, blob),
	on(2, blob),
	on(3, blob),
	on(4, fields("distinguished_name", f("name", stringField), f("qualified_name", qualifiedName))),
	on(5, netAddress),
)

var resource = choice("resource", none,
	on(0, objectID),
	on(1, stringField),
	on(2, fields("resource_pair", f("name", stringField), f("type", stringField))),
)

var xy64 = fields("xy", f("x", u64), f("y", u64))

var xy32 = fields("xy", f("x", u32), f("y", u32))

var area = fields("area", f("x_min", u64), f("x_max", u64), f("y_min", u64), f("y_max", u64))

var pageIdentifier = choice("page_identifier", none,
	on(0, u32),
	on(1, stringField),
	on(2, nameOrID),
)

var pageSelect = fields("page_select",
	f("lower_closed", u32),
	f("lower", pageIdentifier),
	f("upper_closed", u32),
	f("upper", pageIdentifier),
)

var printerStateReason = fields("printer_state_reason",
	f("reason", objectID),
	f("severity", u32),
	f("training", u32),
	f("object_class", objectID),
	f("object", nameOrID),
)

// attributeSet is a count-guarded sequence of nested attributes.
var attributeSet = seqOf(attribute)

var resubmitRecord = fields("resubmit_record",
	f("job_id", u32),
	f("destination", qualifiedName),
	f("attributes", attributeSet),
)

var resourceInputData = choice("resource_input_data", none,
	on(0, fields("print_drivers", f("os", u32), f("directory", stringField), f("file", stringField))),
	on(1, fields("printer_definitions", f("vendor_directory", stringField), f("file", stringField))),
	on(2, fields("banner_page_files", f("name", stringField))),
	on(3, fields("font_types", f("os", u32), f("font_type", u32), f("font_file", stringField))),
	on(4, fields("generic_files", f("os", u32), f("directory", stringField), f("archive_type", u32))),
	on(5, fields("printer_driver_archive", f("os", u32), f("directory", stringField), f("archive_type", u32))),
)

// Server entry data item types
var serverDataItem = choice("data_item", none,
	on(0, leaf(decodeU8)),
	on(1, leaf(decodeU16)),
	on(2, u32),
	on(3, flag),
	on(4, stringField),
	on(5, stringField),
)

var serverEntry = fields("server_entry",
	f("name", stringField),
	f("server_type", u32),
	f("print_address", leaf(decodePrintAddress)),
	f("data", seqOf(serverDataItem)),
)

func decodeU8(c *cursor.Cursor) (Value, error) {
	v, err := c.ReadU8()
	if err != nil {
		return Value{}, err
	}
	return integer32(uint32(v)), nil
}

func decodeU16(c *cursor.Cursor) (Value, error) {
	v, err := c.ReadU16()
	if err != nil {
		return Value{}, err
	}
	return integer32(uint32(v)), nil
}

// decodePrintAddress reads a server print address. Unlike the network
// address of an AddressItem it is followed by len mod 4 bytes of padding.
func decodePrintAddress(c *cursor.Cursor) (Value, error) {
	transport, err := c.ReadU32()
	if err != nil {
		return Value{}, err
	}
	n, err := c.ReadLength()
	if err != nil {
		return Value{}, err
	}
	raw, err := c.ReadBytes(n)
	if err != nil {
		return Value{}, err
	}
	c.SkipPad(n % 4)
	return networkAddress(transport, raw), nil
}
