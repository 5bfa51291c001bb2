package ndps

import "encoding/binary"

// wire builds big-endian NDPS fixtures.
type wire struct {
	b []byte
}

func newWire() *wire { return &wire{} }

func (w *wire) bytes() []byte { return w.b }

func (w *wire) raw(b ...byte) *wire {
	w.b = append(w.b, b...)
	return w
}

func (w *wire) u16(v uint16) *wire {
	w.b = binary.BigEndian.AppendUint16(w.b, v)
	return w
}

func (w *wire) u32(v uint32) *wire {
	w.b = binary.BigEndian.AppendUint32(w.b, v)
	return w
}

func (w *wire) u64(v uint64) *wire {
	w.b = binary.BigEndian.AppendUint64(w.b, v)
	return w
}

// str appends a Latin-1 StringField padded to a multiple of 4 bytes.
func (w *wire) str(s string) *wire {
	w.u32(uint32(len(s)))
	w.b = append(w.b, s...)
	w.b = append(w.b, make([]byte, (4-len(s)%4)%4)...)
	return w
}

// oid appends an ObjectIdentifier with a symbol-table header.
func (w *wire) oid(size, id uint32, typ byte, payload ...byte) *wire {
	w.u32(size)
	w.b = append(w.b, make([]byte, size-8)...)
	w.u32(id)
	w.b = append(w.b, typ, byte(len(payload)))
	w.b = append(w.b, payload...)
	if len(payload)%2 != 0 {
		w.b = append(w.b, 0)
	}
	return w
}

// Well-known ids used across tests
const (
	idSecurityLevel = 0x0a040101 // size 16
	idPrinterQueue  = 0x0a040102 // size 16
	idJobName       = 0x04020101 // size 12
)
