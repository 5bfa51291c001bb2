package ndps

import "github.com/geekxflood/ndpsdecode/internal/cursor"

// Credential types
const (
	CredentialSimple    = 0
	CredentialCertified = 1
	CredentialSessionV0 = 2
	CredentialSessionV1 = 3
	CredentialSessionV2 = 4
)

var credentialNames = map[uint32]string{
	CredentialSimple:    "Simple",
	CredentialCertified: "Certified",
	CredentialSessionV0: "NDS Server Session",
	CredentialSessionV1: "NDS Server Session (v1)",
	CredentialSessionV2: "NDS Server Session (v2)",
}

// credentials decodes a Credentials union. Unknown types carry no fields.
func credentials(d *Decoder, c *cursor.Cursor, s scope) (Value, error) {
	typ, err := c.ReadU32()
	if err != nil {
		return Value{}, err
	}
	kind := integer32(typ)
	kind.Label = credentialNames[typ]
	out := composite("credentials", Field{Name: "type", Value: kind})

	var members []Field
	switch typ {
	case CredentialSimple:
		members, err = simpleCredentials(d, c, s)
	case CredentialCertified:
		var v Value
		v, err = decodeBlob(c)
		members = []Field{{Name: "certificate", Value: v}}
	case CredentialSessionV0:
		members, err = sessionV0(c)
	case CredentialSessionV1:
		members, err = sessionV1(c)
	case CredentialSessionV2:
		members, err = sessionV2(c)
	}
	if err != nil {
		return Value{}, err
	}
	out.Fields = append(out.Fields, members...)
	return out, nil
}

func simpleCredentials(d *Decoder, c *cursor.Cursor, s scope) ([]Field, error) {
	user, err := decodeString(c)
	if err != nil {
		return nil, err
	}
	passwords, err := d.sequence(c, s, blob)
	if err != nil {
		return nil, err
	}
	return []Field{
		{Name: "user", Value: user},
		{Name: "passwords", Value: passwords},
	}, nil
}

func sessionV0(c *cursor.Cursor) ([]Field, error) {
	server, err := decodeString(c)
	if err != nil {
		return nil, err
	}
	if err := c.Skip(2); err != nil {
		return nil, err
	}
	conn, err := c.ReadU16()
	if err != nil {
		return nil, err
	}
	return []Field{
		{Name: "server", Value: server},
		{Name: "connection", Value: integer32(uint32(conn))},
	}, nil
}

// sessionV1 tolerates both NDPS 1.0 and 1.1 layouts. An empty server name is
// followed by two extra bytes; a zero word before the connection number marks
// the four-byte 1.1 gap, anything else the two-byte 1.0 gap.
func sessionV1(c *cursor.Cursor) ([]Field, error) {
	server, declared, err := readString(c)
	if err != nil {
		return nil, err
	}
	if declared == 0 {
		if err := c.Skip(2); err != nil {
			return nil, err
		}
	}

	gap, err := c.PeekU16()
	if err != nil {
		return nil, err
	}
	layout := "NDPS 1.0"
	skip := 2
	if gap == 0 {
		layout = "NDPS 1.1"
		skip = 4
	}
	if err := c.Skip(skip); err != nil {
		return nil, err
	}

	conn, err := c.ReadU16()
	if err != nil {
		return nil, err
	}
	user, err := decodeString(c)
	if err != nil {
		return nil, err
	}
	return []Field{
		{Name: "server", Value: server},
		{Name: "layout", Value: text(layout)},
		{Name: "connection", Value: integer32(uint32(conn))},
		{Name: "user", Value: user},
	}, nil
}

func sessionV2(c *cursor.Cursor) ([]Field, error) {
	server, err := decodeString(c)
	if err != nil {
		return nil, err
	}
	user, err := decodeString(c)
	if err != nil {
		return nil, err
	}
	reserved, err := c.ReadBytes(8)
	if err != nil {
		return nil, err
	}
	count, err := c.ReadU32()
	if err != nil {
		return nil, err
	}
	agent, err := decodeString(c)
	if err != nil {
		return nil, err
	}
	tree, err := decodeString(c)
	if err != nil {
		return nil, err
	}
	return []Field{
		{Name: "server", Value: server},
		{Name: "user", Value: user},
		{Name: "reserved", Value: bytesValue(reserved)},
		{Name: "count", Value: integer32(count)},
		{Name: "printer_agent", Value: agent},
		{Name: "tree", Value: tree},
	}, nil
}
