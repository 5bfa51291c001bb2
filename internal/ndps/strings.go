package ndps

import (
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/geekxflood/ndpsdecode/internal/cursor"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// readString decodes a StringField and returns its value together with the
// declared length N. The field is padded to a multiple of 4 bytes counted
// from the length word.
func readString(c *cursor.Cursor) (Value, int, error) {
	start := c.Offset()
	n, err := c.ReadLength()
	if err != nil {
		return Value{}, 0, err
	}
	if n == 0 {
		return text(NotSpecified), 0, nil
	}

	raw, err := c.ReadBytes(n)
	if err != nil {
		return Value{}, 0, err
	}
	c.AlignFrom(start, 4)

	return text(decodeText(raw)), n, nil
}

// decodeText applies the Latin-1/UTF-16LE heuristic. Short, odd-length and
// non-zero-second-byte strings are Latin-1; everything else is UTF-16LE.
func decodeText(raw []byte) string {
	var (
		out []byte
		err error
	)
	if len(raw) <= 2 || len(raw)%2 != 0 || raw[1] != 0 {
		out, err = charmap.ISO8859_1.NewDecoder().Bytes(raw)
	} else {
		out, err = utf16le.NewDecoder().Bytes(raw)
	}
	if err != nil {
		// both decoders replace invalid input; an error here means a broken transformer
		out = raw
	}
	return strings.TrimRight(string(out), "\x00")
}

// decodeString is the recipe form of readString.
func decodeString(c *cursor.Cursor) (Value, error) {
	v, _, err := readString(c)
	return v, err
}
