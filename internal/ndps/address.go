package ndps

import (
	"fmt"
	"net/netip"

	"github.com/geekxflood/ndpsdecode/internal/cursor"
)

// Transport types of a network address
const (
	TransportIPX = 0
	TransportIP  = 1
)

var transportNames = map[uint32]string{
	TransportIPX: "IPX",
	TransportIP:  "IP",
}

// addressItem selects the payload of an AddressItem by its discriminant.
// 0..7 are qualified names, 13 a boolean, 14 an integer and 15 a network
// address; every other value carries a string.
var addressItem = choice("address_item", stringField,
	on(0, qualifiedName),
	on(1, qualifiedName),
	on(2, qualifiedName),
	on(3, qualifiedName),
	on(4, qualifiedName),
	on(5, qualifiedName),
	on(6, qualifiedName),
	on(7, qualifiedName),
	on(13, flag),
	on(14, u32),
	on(15, netAddress),
)

// decodeNetworkAddress reads a transport type, a byte count and that many
// address bytes. No padding follows.
func decodeNetworkAddress(c *cursor.Cursor) (Value, error) {
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
	return networkAddress(transport, raw), nil
}

// networkAddress builds the composite for a transport-tagged address.
func networkAddress(transport uint32, raw []byte) Value {
	kind := integer32(transport)
	kind.Label = transportNames[transport]

	out := composite("network_address",
		Field{Name: "transport", Value: kind},
		Field{Name: "address", Value: bytesValue(raw)},
	)
	if s := FormatAddress(transport, raw); s != "" {
		out.Fields = append(out.Fields, Field{Name: "text", Value: text(s)})
	}
	return out
}

// FormatAddress renders IPX addresses as net:node:socket and IPv4 addresses
// as a dotted quad. Other transports and short addresses return "".
func FormatAddress(transport uint32, raw []byte) string {
	switch transport {
	case TransportIPX:
		if len(raw) < 12 {
			return ""
		}
		return fmt.Sprintf("%x:%x:%x", raw[0:4], raw[4:10], raw[10:12])
	case TransportIP:
		if len(raw) < 4 {
			return ""
		}
		return netip.AddrFrom4([4]byte(raw[:4])).String()
	default:
		return ""
	}
}
