package agentx

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/gosnmp/gosnmp"

	"github.com/geekxflood/ndpsdecode/internal/cursor"
)

// MaxVarbinds caps the varbinds decoded from one PDU.
const MaxVarbinds = 100

// internetPrefix is 1.3.6.1, implied by a non-zero OID prefix.
var internetPrefix = []uint32{1, 3, 6, 1}

// Errors
var (
	ErrBadVersion = errors.New("unsupported agentx version")
)

// Decoder decodes AgentX PDUs.
type Decoder struct {
	maxVarbinds int
}

// NewDecoder creates a decoder that reads at most maxVarbinds varbinds per
// PDU. Non-positive values use MaxVarbinds.
func NewDecoder(maxVarbinds int) *Decoder {
	if maxVarbinds <= 0 {
		maxVarbinds = MaxVarbinds
	}
	return &Decoder{maxVarbinds: maxVarbinds}
}

// DecodeHeader reads the fixed header and returns it with a cursor in the
// byte order it announces, positioned at the payload.
func DecodeHeader(data []byte) (Header, *cursor.Cursor, error) {
	if len(data) < HeaderSize {
		return Header{}, nil, fmt.Errorf("failed to read header: %w",
			&cursor.Error{Offset: 0, Want: HeaderSize, Have: len(data)})
	}

	h := Header{
		Version: data[0],
		Type:    data[1],
		Flags:   data[2],
	}
	if h.Version != Version {
		return Header{}, nil, fmt.Errorf("%w: %d", ErrBadVersion, h.Version)
	}

	var order binary.ByteOrder = binary.LittleEndian
	if h.NetworkByteOrder() {
		order = binary.BigEndian
	}
	c, err := cursor.At(data, 4)
	if err != nil {
		return Header{}, nil, err
	}
	c = c.WithOrder(order)

	// four fixed-width fields; the length check above covers them
	h.SessionID, _ = c.ReadU32()
	h.TransactionID, _ = c.ReadU32()
	h.PacketID, _ = c.ReadU32()
	h.PayloadLength, _ = c.ReadU32()

	return h, c, nil
}

// Decode decodes one PDU from the start of data.
func (d *Decoder) Decode(data []byte) (*Packet, error) {
	h, c, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	if uint64(h.PayloadLength) > uint64(c.Remaining()) {
		return nil, fmt.Errorf("failed to read payload: %w",
			&cursor.Error{Offset: HeaderSize, Want: int(h.PayloadLength), Have: c.Remaining()})
	}

	end := HeaderSize + int(h.PayloadLength)
	body := cursor.New(data[:end]).WithOrder(c.Order())
	if err := body.Seek(HeaderSize); err != nil {
		return nil, err
	}

	p := &Packet{Header: h, Length: end}
	if err := d.decodePayload(body, p); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", GetPDUTypeName(int(h.Type)), err)
	}
	return p, nil
}

func (d *Decoder) decodePayload(c *cursor.Cursor, p *Packet) error {
	typ := int(p.Header.Type)

	if p.Header.NonDefaultContext() && hasContext(typ) {
		ctx, err := readOctetString(c)
		if err != nil {
			return err
		}
		p.Context = string(ctx)
	}

	switch typ {
	case PDUTypeResponse:
		upTime, err := c.ReadU32()
		if err != nil {
			return err
		}
		code, err := c.ReadU16()
		if err != nil {
			return err
		}
		index, err := c.ReadU16()
		if err != nil {
			return err
		}
		p.Response = &ResponseInfo{SysUpTime: upTime, Error: code, Index: index}
		return d.decodeVarbinds(c, p)

	case PDUTypeNotify, PDUTypeTestSet, PDUTypeIndexAllocate, PDUTypeIndexDeallocate:
		return d.decodeVarbinds(c, p)

	case PDUTypeGetBulk:
		nonRepeaters, err := c.ReadU16()
		if err != nil {
			return err
		}
		maxRepetitions, err := c.ReadU16()
		if err != nil {
			return err
		}
		p.NonRepeaters = nonRepeaters
		p.MaxRepetitions = maxRepetitions
		return d.decodeRanges(c, p)

	case PDUTypeGet, PDUTypeGetNext:
		return d.decodeRanges(c, p)
	}
	return nil
}

// hasContext reports whether a PDU type may carry a non-default context.
func hasContext(typ int) bool {
	switch typ {
	case PDUTypeOpen, PDUTypeClose, PDUTypeResponse, PDUTypeCommitSet,
		PDUTypeUndoSet, PDUTypeCleanupSet:
		return false
	}
	return true
}

func (d *Decoder) decodeRanges(c *cursor.Cursor, p *Packet) error {
	for c.Remaining() > 0 {
		if len(p.Ranges) >= d.maxVarbinds {
			p.Partial = true
			return nil
		}
		start, include, err := readOID(c)
		if err != nil {
			return err
		}
		end, _, err := readOID(c)
		if err != nil {
			return err
		}
		p.Ranges = append(p.Ranges, SearchRange{Start: start, End: end, Include: include})
	}
	return nil
}

func (d *Decoder) decodeVarbinds(c *cursor.Cursor, p *Packet) error {
	for c.Remaining() > 0 {
		if len(p.Varbinds) >= d.maxVarbinds {
			p.Partial = true
			return nil
		}
		vb, ok, err := readVarbind(c)
		if err != nil {
			return err
		}
		if !ok {
			// unknown value type: the rest of the list cannot be framed
			p.Partial = true
			return nil
		}
		p.Varbinds = append(p.Varbinds, vb)
	}
	return nil
}

// readVarbind reads one varbind. ok is false for an unknown value type, in
// which case the cursor is left after the name.
func readVarbind(c *cursor.Cursor) (gosnmp.SnmpPDU, bool, error) {
	typ, err := c.ReadU16()
	if err != nil {
		return gosnmp.SnmpPDU{}, false, err
	}
	if err := c.Skip(2); err != nil {
		return gosnmp.SnmpPDU{}, false, err
	}
	name, _, err := readOID(c)
	if err != nil {
		return gosnmp.SnmpPDU{}, false, err
	}

	pdu := gosnmp.SnmpPDU{Name: name, Type: gosnmp.Asn1BER(typ)}
	switch typ {
	case TypeInteger:
		v, err := c.ReadU32()
		if err != nil {
			return pdu, false, err
		}
		pdu.Value = int(int32(v))
	case TypeCounter32, TypeGauge32:
		v, err := c.ReadU32()
		if err != nil {
			return pdu, false, err
		}
		pdu.Value = uint(v)
	case TypeTimeTicks:
		v, err := c.ReadU32()
		if err != nil {
			return pdu, false, err
		}
		pdu.Value = v
	case TypeCounter64:
		v, err := c.ReadU64()
		if err != nil {
			return pdu, false, err
		}
		pdu.Value = v
	case TypeOctetString, TypeOpaque:
		v, err := readOctetString(c)
		if err != nil {
			return pdu, false, err
		}
		pdu.Value = v
	case TypeIPAddress:
		v, err := readOctetString(c)
		if err != nil {
			return pdu, false, err
		}
		if len(v) == 4 {
			pdu.Value = netip.AddrFrom4([4]byte(v)).String()
		} else {
			pdu.Value = v
		}
	case TypeObjectIdentifier:
		v, _, err := readOID(c)
		if err != nil {
			return pdu, false, err
		}
		pdu.Value = v
	case TypeNull, TypeNoSuchObject, TypeNoSuchInstance, TypeEndOfMibView:
		pdu.Value = nil
	default:
		return pdu, false, nil
	}
	return pdu, true, nil
}

// readOID reads an AgentX object identifier and returns it in dotted form
// with a leading dot. The null OID is returned as "".
func readOID(c *cursor.Cursor) (string, bool, error) {
	n, err := c.ReadU8()
	if err != nil {
		return "", false, err
	}
	prefix, err := c.ReadU8()
	if err != nil {
		return "", false, err
	}
	include, err := c.ReadU8()
	if err != nil {
		return "", false, err
	}
	if err := c.Skip(1); err != nil {
		return "", false, err
	}

	subIDs := make([]uint32, 0, int(n)+5)
	if prefix != 0 {
		subIDs = append(subIDs, internetPrefix...)
		subIDs = append(subIDs, uint32(prefix))
	}
	for i := 0; i < int(n); i++ {
		v, err := c.ReadU32()
		if err != nil {
			return "", false, err
		}
		subIDs = append(subIDs, v)
	}
	return formatOID(subIDs), include != 0, nil
}

func formatOID(subIDs []uint32) string {
	if len(subIDs) == 0 {
		return ""
	}
	var b strings.Builder
	for _, id := range subIDs {
		b.WriteByte('.')
		b.WriteString(strconv.FormatUint(uint64(id), 10))
	}
	return b.String()
}

// readOctetString reads a length-prefixed octet string padded to 4 bytes.
func readOctetString(c *cursor.Cursor) ([]byte, error) {
	n, err := c.ReadLength()
	if err != nil {
		return nil, err
	}
	b, err := c.ReadBytes(n)
	if err != nil {
		return nil, err
	}
	c.SkipPad((4 - n%4) % 4)
	return b, nil
}
