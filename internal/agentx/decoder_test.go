package agentx

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geekxflood/ndpsdecode/internal/cursor"
)

type byteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// pdu builds AgentX fixtures in either byte order.
type pdu struct {
	order byteOrder
	b     []byte
}

func newPDU(order byteOrder) *pdu { return &pdu{order: order} }

func (p *pdu) u16(v uint16) *pdu { p.b = p.order.AppendUint16(p.b, v); return p }
func (p *pdu) u32(v uint32) *pdu { p.b = p.order.AppendUint32(p.b, v); return p }
func (p *pdu) u64(v uint64) *pdu { p.b = p.order.AppendUint64(p.b, v); return p }
func (p *pdu) raw(b ...byte) *pdu { p.b = append(p.b, b...); return p }

func (p *pdu) oid(prefix, include byte, subIDs ...uint32) *pdu {
	p.raw(byte(len(subIDs)), prefix, include, 0)
	for _, id := range subIDs {
		p.u32(id)
	}
	return p
}

func (p *pdu) octets(s string) *pdu {
	p.u32(uint32(len(s)))
	p.b = append(p.b, s...)
	p.b = append(p.b, make([]byte, (4-len(s)%4)%4)...)
	return p
}

func (p *pdu) varbind(typ uint16) *pdu { return p.u16(typ).u16(0) }

// packet prefixes payload with a header.
func packet(order byteOrder, typ, flags byte, payload []byte) []byte {
	if order == binary.BigEndian {
		flags |= FlagNetworkByteOrder
	}
	h := newPDU(order).raw(Version, typ, flags, 0).u32(7).u32(8).u32(9).u32(uint32(len(payload)))
	return append(h.b, payload...)
}

func TestDecodeHeader(t *testing.T) {
	for _, order := range []byteOrder{binary.BigEndian, binary.LittleEndian} {
		t.Run(order.String(), func(t *testing.T) {
			data := packet(order, PDUTypePing, 0, nil)
			h, c, err := DecodeHeader(data)
			require.NoError(t, err)
			assert.Equal(t, uint8(PDUTypePing), h.Type)
			assert.Equal(t, uint32(7), h.SessionID)
			assert.Equal(t, uint32(8), h.TransactionID)
			assert.Equal(t, uint32(9), h.PacketID)
			assert.Equal(t, uint32(0), h.PayloadLength)
			assert.Equal(t, HeaderSize, c.Offset())
			assert.Equal(t, order == binary.BigEndian, h.NetworkByteOrder())
		})
	}
}

func TestDecodeHeaderErrors(t *testing.T) {
	_, _, err := DecodeHeader([]byte{1, 2, 3})
	assert.ErrorIs(t, err, cursor.ErrTruncated)

	data := packet(binary.BigEndian, PDUTypePing, 0, nil)
	data[0] = 2
	_, _, err = DecodeHeader(data)
	assert.ErrorIs(t, err, ErrBadVersion)
}

func TestDecodeResponseVarbinds(t *testing.T) {
	for _, order := range []byteOrder{binary.BigEndian, binary.LittleEndian} {
		t.Run(order.String(), func(t *testing.T) {
			payload := newPDU(order).
				u32(123456).u16(0).u16(0).
				varbind(TypeInteger).oid(2, 0, 1, 1, 7, 0).u32(uint32(0xfffffffe)).
				varbind(TypeOctetString).oid(2, 0, 1, 1, 1, 0).octets("printer").
				varbind(TypeCounter64).oid(2, 0, 31, 1).u64(1 << 33).
				varbind(TypeIPAddress).oid(0, 0, 1, 3, 6, 1, 2).octets("\x0a\x00\x00\x05").
				varbind(TypeObjectIdentifier).oid(2, 0, 1, 1, 2, 0).oid(4, 0, 1, 2).
				varbind(TypeNoSuchInstance).oid(2, 0, 1, 9).
				b

			p, err := NewDecoder(0).Decode(packet(order, PDUTypeResponse, 0, payload))
			require.NoError(t, err)
			require.NotNil(t, p.Response)
			assert.Equal(t, uint32(123456), p.Response.SysUpTime)
			assert.False(t, p.Partial)
			require.Len(t, p.Varbinds, 6)

			assert.Equal(t, gosnmp.SnmpPDU{Name: ".1.3.6.1.2.1.1.7.0", Type: gosnmp.Integer, Value: -2}, p.Varbinds[0])
			assert.Equal(t, []byte("printer"), p.Varbinds[1].Value)
			assert.Equal(t, uint64(1<<33), p.Varbinds[2].Value)
			assert.Equal(t, ".1.3.6.1.2", p.Varbinds[3].Name)
			assert.Equal(t, "10.0.0.5", p.Varbinds[3].Value)
			assert.Equal(t, ".1.3.6.1.4.1.2", p.Varbinds[4].Value)
			assert.Equal(t, gosnmp.NoSuchInstance, p.Varbinds[5].Type)
			assert.Nil(t, p.Varbinds[5].Value)
		})
	}
}

func TestDecodeNotifyWithContext(t *testing.T) {
	payload := newPDU(binary.BigEndian).
		octets("ctx1").
		varbind(TypeTimeTicks).oid(6, 0, 3, 1, 1, 0).u32(42).
		b

	p, err := NewDecoder(0).Decode(packet(binary.BigEndian, PDUTypeNotify, FlagNonDefaultContext, payload))
	require.NoError(t, err)
	assert.Equal(t, "ctx1", p.Context)
	require.Len(t, p.Varbinds, 1)
	assert.Equal(t, uint32(42), p.Varbinds[0].Value)
	assert.Equal(t, ".1.3.6.1.6.3.1.1.0", p.Varbinds[0].Name)
}

func TestDecodeGetBulkRanges(t *testing.T) {
	payload := newPDU(binary.BigEndian).
		u16(1).u16(10).
		oid(2, 1, 1, 1).oid(0, 0).
		oid(2, 0, 2, 2).oid(2, 0, 2, 3).
		b

	p, err := NewDecoder(0).Decode(packet(binary.BigEndian, PDUTypeGetBulk, 0, payload))
	require.NoError(t, err)
	assert.Equal(t, uint16(1), p.NonRepeaters)
	assert.Equal(t, uint16(10), p.MaxRepetitions)
	require.Len(t, p.Ranges, 2)
	assert.Equal(t, SearchRange{Start: ".1.3.6.1.2.1.1", End: "", Include: true}, p.Ranges[0])
	assert.Equal(t, ".1.3.6.1.2.2.3", p.Ranges[1].End)
}

func TestDecodeVarbindCap(t *testing.T) {
	w := newPDU(binary.BigEndian)
	for i := 0; i < 5; i++ {
		w.varbind(TypeNull).oid(2, 0, uint32(i))
	}

	p, err := NewDecoder(3).Decode(packet(binary.BigEndian, PDUTypeNotify, 0, w.b))
	require.NoError(t, err)
	assert.Len(t, p.Varbinds, 3)
	assert.True(t, p.Partial)
}

func TestDecodeUnknownVarbindType(t *testing.T) {
	payload := newPDU(binary.BigEndian).
		varbind(TypeNull).oid(2, 0, 1).
		varbind(99).oid(2, 0, 2).u32(0).
		b

	p, err := NewDecoder(0).Decode(packet(binary.BigEndian, PDUTypeTestSet, 0, payload))
	require.NoError(t, err)
	assert.Len(t, p.Varbinds, 1)
	assert.True(t, p.Partial)
}

func TestDecodeTruncated(t *testing.T) {
	t.Run("payload length past buffer", func(t *testing.T) {
		data := packet(binary.BigEndian, PDUTypeNotify, 0, make([]byte, 8))
		_, err := NewDecoder(0).Decode(data[:len(data)-4])
		assert.ErrorIs(t, err, cursor.ErrTruncated)
	})

	t.Run("varbind cut inside payload", func(t *testing.T) {
		payload := newPDU(binary.BigEndian).varbind(TypeCounter64).oid(2, 0, 1).u32(0).b
		_, err := NewDecoder(0).Decode(packet(binary.BigEndian, PDUTypeNotify, 0, payload))
		require.Error(t, err)
		assert.True(t, errors.Is(err, cursor.ErrTruncated))
	})
}

func TestTypeNames(t *testing.T) {
	assert.Equal(t, "Response", GetPDUTypeName(PDUTypeResponse))
	assert.Equal(t, "Unknown(99)", GetPDUTypeName(99))
	assert.Equal(t, "Counter64", GetTypeName(TypeCounter64))
	assert.Equal(t, "parseError", GetErrorName(ErrorParseError))
	assert.Equal(t, "NON_DEFAULT_CONTEXT|NETWORK_BYTE_ORDER", GetFlagNames(FlagNonDefaultContext|FlagNetworkByteOrder))
	assert.Equal(t, "none", GetFlagNames(0))

	for _, typ := range VarbindTypes() {
		assert.NotContains(t, GetTypeName(typ), "Unknown", "type %d", typ)
	}
}

func TestPacketTree(t *testing.T) {
	payload := newPDU(binary.BigEndian).
		u32(99).u16(ErrorNotWritable).u16(1).
		varbind(TypeInteger).oid(2, 0, 1, 1, 7, 0).u32(uint32(0xffffffff)).
		varbind(TypeOctetString).oid(2, 0, 1, 1, 1, 0).octets("hp").
		b

	p, err := NewDecoder(0).Decode(packet(binary.BigEndian, PDUTypeResponse, 0, payload))
	require.NoError(t, err)

	tree := p.Tree()
	assert.Equal(t, "agentx_pdu", tree.Name)

	header, ok := tree.Field("header")
	require.True(t, ok)
	typ, _ := header.Field("type")
	assert.Equal(t, "Response", typ.Label)

	resp, ok := tree.Field("response")
	require.True(t, ok)
	code, _ := resp.Field("error")
	assert.Equal(t, "notWritable", code.Label)

	varbinds, ok := tree.Field("varbinds")
	require.True(t, ok)
	require.Len(t, varbinds.Items, 2)

	first, _ := varbinds.Items[0].Field("value")
	assert.Equal(t, int32(-1), first.Int32())
	second, _ := varbinds.Items[1].Field("value")
	assert.Equal(t, []byte("hp"), second.Bytes)
	name, _ := varbinds.Items[1].Field("name")
	assert.Equal(t, ".1.3.6.1.2.1.1.1.0", name.Text)

	assert.False(t, tree.IsPartial())
	_, hasContext := tree.Field("context")
	assert.False(t, hasContext)
}

func TestPacketTreeRanges(t *testing.T) {
	payload := newPDU(binary.BigEndian).oid(2, 1, 1).oid(2, 0, 2).b

	p, err := NewDecoder(0).Decode(packet(binary.BigEndian, PDUTypeGetNext, 0, payload))
	require.NoError(t, err)

	ranges, ok := p.Tree().Field("ranges")
	require.True(t, ok)
	require.Len(t, ranges.Items, 1)
	include, _ := ranges.Items[0].Field("include")
	assert.True(t, include.Bool)
}
