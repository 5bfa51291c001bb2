package ndps

import (
	"encoding/binary"

	"codello.dev/asn1"
	"codello.dev/asn1/ber"

	"github.com/geekxflood/ndpsdecode/internal/cursor"
)

// asn1TagOID is the universal tag of an ASN.1 OBJECT IDENTIFIER.
const asn1TagOID = 0x06

// decodeOID reads an ObjectIdentifier. Encodings whose structure size has a
// symbol table carry a header, a type byte, a length byte and a payload padded
// to an even length; any other size is an opaque blob padded the same way.
func decodeOID(c *cursor.Cursor) (Value, error) {
	size, err := c.ReadU32()
	if err != nil {
		return Value{}, err
	}
	if size == 0 {
		return absent(), nil
	}

	oid := &ObjectID{Size: size, Name: UnknownID}

	table, ok := symbolTables[size]
	if !ok {
		payload, err := c.ReadBytes(int(size))
		if err != nil {
			return Value{}, err
		}
		c.SkipPad(int(size % 2))
		oid.Payload = payload
		return Value{Kind: KindObjectID, OID: oid}, nil
	}

	header, err := c.ReadBytes(int(size - 4))
	if err != nil {
		return Value{}, err
	}
	oid.ID = binary.BigEndian.Uint32(header[len(header)-4:])
	if name, found := table[oid.ID]; found {
		oid.Name = name
		oid.Resolved = true
	}

	typ, err := c.ReadU8()
	if err != nil {
		return Value{}, err
	}
	length, err := c.ReadU8()
	if err != nil {
		return Value{}, err
	}
	payload, err := c.ReadBytes(int(length))
	if err != nil {
		return Value{}, err
	}
	c.SkipPad(int(length % 2))

	oid.ASN1Type = typ
	oid.Payload = payload
	if typ == asn1TagOID {
		oid.SubIDs = subIdentifiers(payload)
	}
	return Value{Kind: KindObjectID, OID: oid}, nil
}

// subIdentifiers decodes BER OID content octets. Malformed content yields nil.
func subIdentifiers(content []byte) []uint {
	if len(content) == 0 || len(content) > 0x7f {
		return nil
	}
	encoded := make([]byte, 0, len(content)+2)
	encoded = append(encoded, asn1TagOID, byte(len(content)))
	encoded = append(encoded, content...)

	var oid asn1.ObjectIdentifier
	if err := ber.Unmarshal(encoded, &oid); err != nil {
		return nil
	}
	return []uint(oid)
}
