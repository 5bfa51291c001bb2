package agentx

import (
	"github.com/gosnmp/gosnmp"

	"github.com/geekxflood/ndpsdecode/internal/ndps"
)

// Tree returns the packet as a decoded value tree so it renders and stores
// like any other grammar.
func (p *Packet) Tree() ndps.Value {
	h := p.Header
	header := composite("header",
		field("version", number(uint64(h.Version), "")),
		field("type", number(uint64(h.Type), GetPDUTypeName(int(h.Type)))),
		field("flags", number(uint64(h.Flags), GetFlagNames(h.Flags))),
		field("session_id", number(uint64(h.SessionID), "")),
		field("transaction_id", number(uint64(h.TransactionID), "")),
		field("packet_id", number(uint64(h.PacketID), "")),
		field("payload_length", number(uint64(h.PayloadLength), "")),
	)

	fields := []ndps.Field{field("header", header)}
	if h.NonDefaultContext() {
		fields = append(fields, field("context", ndps.Value{Kind: ndps.KindText, Text: p.Context}))
	}

	if r := p.Response; r != nil {
		fields = append(fields, field("response", composite("response",
			field("sys_up_time", number(uint64(r.SysUpTime), "")),
			field("error", number(uint64(r.Error), GetErrorName(int(r.Error)))),
			field("index", number(uint64(r.Index), "")),
		)))
	}

	switch int(h.Type) {
	case PDUTypeGetBulk:
		fields = append(fields,
			field("non_repeaters", number(uint64(p.NonRepeaters), "")),
			field("max_repetitions", number(uint64(p.MaxRepetitions), "")),
		)
		fallthrough
	case PDUTypeGet, PDUTypeGetNext:
		ranges := make([]ndps.Value, 0, len(p.Ranges))
		for _, r := range p.Ranges {
			ranges = append(ranges, composite("search_range",
				field("start", ndps.Value{Kind: ndps.KindText, Text: r.Start}),
				field("end", ndps.Value{Kind: ndps.KindText, Text: r.End}),
				field("include", flag(r.Include)),
			))
		}
		fields = append(fields, field("ranges", sequence(ranges, p.Partial)))
	case PDUTypeResponse, PDUTypeNotify, PDUTypeTestSet, PDUTypeIndexAllocate, PDUTypeIndexDeallocate:
		varbinds := make([]ndps.Value, 0, len(p.Varbinds))
		for _, vb := range p.Varbinds {
			varbinds = append(varbinds, varbindValue(vb))
		}
		fields = append(fields, field("varbinds", sequence(varbinds, p.Partial)))
	}

	return composite("agentx_pdu", fields...)
}

func varbindValue(vb gosnmp.SnmpPDU) ndps.Value {
	return composite("varbind",
		field("name", ndps.Value{Kind: ndps.KindText, Text: vb.Name}),
		field("type", number(uint64(vb.Type), GetTypeName(int(vb.Type)))),
		field("value", scalarValue(vb.Value)),
	)
}

func scalarValue(v any) ndps.Value {
	switch v := v.(type) {
	case int:
		return ndps.Value{Kind: ndps.KindInteger32, Num: uint64(uint32(int32(v)))}
	case uint:
		return number(uint64(v), "")
	case uint32:
		return number(uint64(v), "")
	case uint64:
		return ndps.Value{Kind: ndps.KindInteger64, Num: v}
	case []byte:
		return ndps.Value{Kind: ndps.KindBytes, Bytes: v}
	case string:
		return ndps.Value{Kind: ndps.KindText, Text: v}
	default:
		return ndps.Value{Kind: ndps.KindAbsent}
	}
}

func composite(name string, fields ...ndps.Field) ndps.Value {
	return ndps.Value{Kind: ndps.KindComposite, Name: name, Fields: fields}
}

func field(name string, v ndps.Value) ndps.Field {
	return ndps.Field{Name: name, Value: v}
}

func number(n uint64, label string) ndps.Value {
	return ndps.Value{Kind: ndps.KindInteger32, Num: n, Label: label}
}

func flag(b bool) ndps.Value {
	v := ndps.Value{Kind: ndps.KindBoolean, Bool: b}
	if b {
		v.Num = 1
	}
	return v
}

func sequence(items []ndps.Value, partial bool) ndps.Value {
	return ndps.Value{
		Kind:     ndps.KindSequence,
		Items:    items,
		Declared: uint32(len(items)),
		Partial:  partial,
	}
}
