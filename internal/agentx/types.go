// Package agentx decodes AgentX (RFC 2741) PDU headers and varbind lists.
package agentx

import (
	"fmt"
	"strings"

	"github.com/gosnmp/gosnmp"
)

// HeaderSize is the fixed length of an AgentX PDU header.
const HeaderSize = 20

// Version is the only AgentX protocol version.
const Version = 1

// Port is the registered AgentX TCP port.
const Port = 705

// PDU type constants
const (
	PDUTypeOpen            = 1
	PDUTypeClose           = 2
	PDUTypeRegister        = 3
	PDUTypeUnregister      = 4
	PDUTypeGet             = 5
	PDUTypeGetNext         = 6
	PDUTypeGetBulk         = 7
	PDUTypeTestSet         = 8
	PDUTypeCommitSet       = 9
	PDUTypeUndoSet         = 10
	PDUTypeCleanupSet      = 11
	PDUTypeNotify          = 12
	PDUTypePing            = 13
	PDUTypeIndexAllocate   = 14
	PDUTypeIndexDeallocate = 15
	PDUTypeAddAgentCaps    = 16
	PDUTypeRemoveAgentCaps = 17
	PDUTypeResponse        = 18
)

// Header flag bits
const (
	FlagInstanceRegistration = 0x01
	FlagNewIndex             = 0x02
	FlagAnyIndex             = 0x04
	FlagNonDefaultContext    = 0x08
	FlagNetworkByteOrder     = 0x10
)

// Varbind value types. They share their numbering with the SNMP BER tags.
const (
	TypeInteger          = 2
	TypeOctetString      = 4
	TypeNull             = 5
	TypeObjectIdentifier = 6
	TypeIPAddress        = 64
	TypeCounter32        = 65
	TypeGauge32          = 66
	TypeTimeTicks        = 67
	TypeOpaque           = 68
	TypeCounter64        = 70
	TypeNoSuchObject     = 128
	TypeNoSuchInstance   = 129
	TypeEndOfMibView     = 130
)

// Response error constants
const (
	ErrorNoError               = 0
	ErrorGenErr                = 5
	ErrorNoAccess              = 6
	ErrorWrongType             = 7
	ErrorWrongLength           = 8
	ErrorWrongEncoding         = 9
	ErrorWrongValue            = 10
	ErrorNoCreation            = 11
	ErrorInconsistentValue     = 12
	ErrorResourceUnavailable   = 13
	ErrorCommitFailed          = 14
	ErrorUndoFailed            = 15
	ErrorNotWritable           = 17
	ErrorInconsistentName      = 18
	ErrorOpenFailed            = 256
	ErrorNotOpen               = 257
	ErrorIndexWrongType        = 258
	ErrorIndexAlreadyAllocated = 259
	ErrorIndexNoneAvailable    = 260
	ErrorIndexNotAllocated     = 261
	ErrorUnsupportedContext    = 262
	ErrorDuplicateRegistration = 263
	ErrorUnknownRegistration   = 264
	ErrorUnknownAgentCaps      = 265
	ErrorParseError            = 266
	ErrorRequestDenied         = 267
	ErrorProcessingError       = 268
)

// Header is the fixed AgentX PDU header.
type Header struct {
	Version       uint8  `json:"version"`
	Type          uint8  `json:"type"`
	Flags         uint8  `json:"flags"`
	SessionID     uint32 `json:"session_id"`
	TransactionID uint32 `json:"transaction_id"`
	PacketID      uint32 `json:"packet_id"`
	PayloadLength uint32 `json:"payload_length"`
}

// NetworkByteOrder reports whether multi-byte fields are big-endian.
func (h Header) NetworkByteOrder() bool {
	return h.Flags&FlagNetworkByteOrder != 0
}

// NonDefaultContext reports whether a context string precedes the payload.
func (h Header) NonDefaultContext() bool {
	return h.Flags&FlagNonDefaultContext != 0
}

// SearchRange is a Get, GetNext or GetBulk request range.
type SearchRange struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	Include bool   `json:"include"`
}

// ResponseInfo holds the fixed fields of a Response PDU.
type ResponseInfo struct {
	SysUpTime uint32 `json:"sys_up_time"`
	Error     uint16 `json:"error"`
	Index     uint16 `json:"index"`
}

// Packet is a decoded AgentX PDU.
type Packet struct {
	Header         Header           `json:"header"`
	Context        string           `json:"context,omitempty"`
	Response       *ResponseInfo    `json:"response,omitempty"`
	NonRepeaters   uint16           `json:"non_repeaters,omitempty"`
	MaxRepetitions uint16           `json:"max_repetitions,omitempty"`
	Ranges         []SearchRange    `json:"ranges,omitempty"`
	Varbinds       []gosnmp.SnmpPDU `json:"varbinds,omitempty"`
	Partial        bool             `json:"partial,omitempty"`
	Length         int              `json:"length"`
}

// GetPDUTypeName returns the human-readable name of a PDU type.
func GetPDUTypeName(pduType int) string {
	switch pduType {
	case PDUTypeOpen:
		return "Open"
	case PDUTypeClose:
		return "Close"
	case PDUTypeRegister:
		return "Register"
	case PDUTypeUnregister:
		return "Unregister"
	case PDUTypeGet:
		return "Get"
	case PDUTypeGetNext:
		return "GetNext"
	case PDUTypeGetBulk:
		return "GetBulk"
	case PDUTypeTestSet:
		return "TestSet"
	case PDUTypeCommitSet:
		return "CommitSet"
	case PDUTypeUndoSet:
		return "UndoSet"
	case PDUTypeCleanupSet:
		return "CleanupSet"
	case PDUTypeNotify:
		return "Notify"
	case PDUTypePing:
		return "Ping"
	case PDUTypeIndexAllocate:
		return "IndexAllocate"
	case PDUTypeIndexDeallocate:
		return "IndexDeallocate"
	case PDUTypeAddAgentCaps:
		return "AddAgentCaps"
	case PDUTypeRemoveAgentCaps:
		return "RemoveAgentCaps"
	case PDUTypeResponse:
		return "Response"
	default:
		return fmt.Sprintf("Unknown(%d)", pduType)
	}
}

// VarbindTypes returns the varbind value types the decoder understands.
func VarbindTypes() []int {
	return []int{
		TypeInteger, TypeOctetString, TypeNull, TypeObjectIdentifier,
		TypeIPAddress, TypeCounter32, TypeGauge32, TypeTimeTicks, TypeOpaque,
		TypeCounter64, TypeNoSuchObject, TypeNoSuchInstance, TypeEndOfMibView,
	}
}

// GetTypeName returns the human-readable name of a varbind type.
func GetTypeName(typ int) string {
	switch typ {
	case TypeInteger:
		return "INTEGER"
	case TypeOctetString:
		return "OCTET STRING"
	case TypeNull:
		return "NULL"
	case TypeObjectIdentifier:
		return "OBJECT IDENTIFIER"
	case TypeIPAddress:
		return "IpAddress"
	case TypeCounter32:
		return "Counter32"
	case TypeGauge32:
		return "Gauge32"
	case TypeTimeTicks:
		return "TimeTicks"
	case TypeOpaque:
		return "Opaque"
	case TypeCounter64:
		return "Counter64"
	case TypeNoSuchObject:
		return "noSuchObject"
	case TypeNoSuchInstance:
		return "noSuchInstance"
	case TypeEndOfMibView:
		return "endOfMibView"
	default:
		return fmt.Sprintf("Unknown(%d)", typ)
	}
}

var errorNames = map[int]string{
	ErrorNoError:               "noAgentXError",
	ErrorGenErr:                "genErr",
	ErrorNoAccess:              "noAccess",
	ErrorWrongType:             "wrongType",
	ErrorWrongLength:           "wrongLength",
	ErrorWrongEncoding:         "wrongEncoding",
	ErrorWrongValue:            "wrongValue",
	ErrorNoCreation:            "noCreation",
	ErrorInconsistentValue:     "inconsistentValue",
	ErrorResourceUnavailable:   "resourceUnavailable",
	ErrorCommitFailed:          "commitFailed",
	ErrorUndoFailed:            "undoFailed",
	ErrorNotWritable:           "notWritable",
	ErrorInconsistentName:      "inconsistentName",
	ErrorOpenFailed:            "openFailed",
	ErrorNotOpen:               "notOpen",
	ErrorIndexWrongType:        "indexWrongType",
	ErrorIndexAlreadyAllocated: "indexAlreadyAllocated",
	ErrorIndexNoneAvailable:    "indexNoneAvailable",
	ErrorIndexNotAllocated:     "indexNotAllocated",
	ErrorUnsupportedContext:    "unsupportedContext",
	ErrorDuplicateRegistration: "duplicateRegistration",
	ErrorUnknownRegistration:   "unknownRegistration",
	ErrorUnknownAgentCaps:      "unknownAgentCaps",
	ErrorParseError:            "parseError",
	ErrorRequestDenied:         "requestDenied",
	ErrorProcessingError:       "processingError",
}

// GetErrorName returns the human-readable name of a Response error.
func GetErrorName(code int) string {
	if name, ok := errorNames[code]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", code)
}

// GetFlagNames lists the names of the flag bits set in flags.
func GetFlagNames(flags uint8) string {
	var names []string
	for _, f := range []struct {
		bit  uint8
		name string
	}{
		{FlagInstanceRegistration, "INSTANCE_REGISTRATION"},
		{FlagNewIndex, "NEW_INDEX"},
		{FlagAnyIndex, "ANY_INDEX"},
		{FlagNonDefaultContext, "NON_DEFAULT_CONTEXT"},
		{FlagNetworkByteOrder, "NETWORK_BYTE_ORDER"},
	} {
		if flags&f.bit != 0 {
			names = append(names, f.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}
