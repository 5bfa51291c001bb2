package ndps

// Well-known object identifiers, keyed by the structure size of their
// encoding. A size-S encoding carries its id in the last four bytes of an
// (S-4)-byte header and is looked up in the table registered for S.
var symbolTables = map[uint32]map[uint32]string{
	9:  objectIDs9,
	10: objectIDs10,
	11: objectIDs11,
	12: objectIDs12,
	13: objectIDs13,
	14: objectIDs14,
	15: objectIDs15,
	16: objectIDs16,
	17: objectIDs17,
	18: objectIDs18,
}

// PrinterSecurityLevelAttribute names the one attribute whose scalar value
// is rendered as a security level.
const PrinterSecurityLevelAttribute = "(Novell) Attribute PRINTER SECURITY LEVEL"

var objectIDs9 = map[uint32]string{
	0x0c020101: "ISO 10175 Document Printing Application",
	0x0c020102: "ISO 10175 DPA Object Class",
	0x0c020103: "ISO 10175 DPA Attribute",
	0x0c020104: "ISO 10175 DPA Attribute Syntax",
	0x0c020105: "ISO 10175 DPA Event",
	0x0c020106: "ISO 10175 DPA Abstract Value",
	0x0c020107: "ISO 10175 DPA Medium",
}

var objectIDs10 = map[uint32]string{
	0x02010101: "(ISO) Object Class Printer",
	0x02010102: "(ISO) Object Class Server",
	0x02010103: "(ISO) Object Class Job",
	0x02010104: "(ISO) Object Class Document",
	0x02010105: "(ISO) Object Class Medium",
	0x02010106: "(ISO) Object Class Resource",
	0x02010107: "(ISO) Object Class Font",
	0x02010108: "(ISO) Object Class Initial Value Job",
}

var objectIDs11 = map[uint32]string{
	0x01030201: "(ISO) Event Object Created",
	0x01030202: "(ISO) Event Object Deleted",
	0x01030203: "(ISO) Event State Changed",
	0x01030204: "(ISO) Event Object Modified",
	0x01030205: "(ISO) Event Job Completed",
	0x01030206: "(ISO) Event Job Aborted",
	0x01030207: "(ISO) Event Printer Needs Attention",
	0x01030208: "(ISO) Event Printer Needs Operator",
	0x01030209: "(ISO) Event Classified Event",
}

var objectIDs12 = map[uint32]string{
	0x04020101: "(ISO) Attribute JOB NAME",
	0x04020102: "(ISO) Attribute JOB OWNER",
	0x04020103: "(ISO) Attribute JOB STATE",
	0x04020104: "(ISO) Attribute JOB PRIORITY",
	0x04020105: "(ISO) Attribute DOCUMENT NAME",
	0x04020106: "(ISO) Attribute DOCUMENT FORMAT",
	0x04020107: "(ISO) Attribute COPY COUNT",
	0x04020108: "(ISO) Attribute SIDES",
	0x04020109: "(ISO) Attribute PRINTER NAME",
	0x0402010a: "(ISO) Attribute PRINTER STATE",
}

var objectIDs13 = map[uint32]string{
	0x07010201: "(Novell) Delivery Method SPX",
	0x07010202: "(Novell) Delivery Method Pop-up",
	0x07010203: "(Novell) Delivery Method MHS",
	0x07010204: "(Novell) Delivery Method Log File",
	0x07010205: "(Novell) Delivery Method Programmatic",
	0x07010206: "(Novell) Delivery Method Internet Mail",
	0x07010207: "(Novell) Delivery Method GroupWise",
	0x07010208: "(Novell) Delivery Method SNMP Trap",
	0x07010209: "(Novell) Delivery Method Windows 95/98 Pop-up",
	0x0701020a: "(Novell) Delivery Method Windows NT Pop-up",
	0x0701020b: "(Novell) Delivery Method NetWare Console",
}

var objectIDs14 = map[uint32]string{
	0x08020101: "(Novell) Object Class Printer Agent",
	0x08020102: "(Novell) Object Class NDPS Manager",
	0x08020103: "(Novell) Object Class Broker",
	0x08020104: "(Novell) Object Class Resource Management Service",
	0x08020105: "(Novell) Object Class Event Notification Service",
	0x08020106: "(Novell) Object Class Service Registry Service",
	0x08020107: "(Novell) Object Class Gateway",
	0x08020108: "(Novell) Object Class Printer Configuration",
	0x08020109: "(Novell) Object Class Printer Driver",
	0x0802010a: "(Novell) Object Class Banner",
	0x0802010b: "(Novell) Object Class Font",
	0x0802010c: "(Novell) Object Class Event Profile",
}

var objectIDs15 = map[uint32]string{
	0x09030101: "(Novell) Event Printer Paper Jam",
	0x09030102: "(Novell) Event Printer Paper Out",
	0x09030103: "(Novell) Event Printer Toner Low",
	0x09030104: "(Novell) Event Printer Toner Out",
	0x09030105: "(Novell) Event Printer Offline",
	0x09030106: "(Novell) Event Printer Door Open",
	0x09030107: "(Novell) Event Printer Output Bin Full",
	0x09030108: "(Novell) Event Printer Input Tray Missing",
	0x09030109: "(Novell) Event Printer Needs Service",
	0x0903010a: "(Novell) Event Job Spooled",
	0x0903010b: "(Novell) Event Job Held",
	0x0903010c: "(Novell) Event Job Printed",
	0x0903010d: "(Novell) Event Job Deleted",
}

var objectIDs16 = map[uint32]string{
	0x0a040101: "(Novell) Attribute PRINTER SECURITY LEVEL",
	0x0a040102: "(Novell) Attribute PRINTER QUEUE",
	0x0a040103: "(Novell) Attribute PRINTER OPERATORS",
	0x0a040104: "(Novell) Attribute PRINTER USERS",
	0x0a040105: "(Novell) Attribute PRINTER DRIVER",
	0x0a040106: "(Novell) Attribute PRINTER BANNER",
	0x0a040107: "(Novell) Attribute PRINTER SPOOLER LOCATION",
	0x0a040108: "(Novell) Attribute PRINTER SPOOLER SIZE",
	0x0a040109: "(Novell) Attribute PRINTER SPOOLER POLICY",
	0x0a04010a: "(Novell) Attribute PRINTER GATEWAY TYPE",
	0x0a04010b: "(Novell) Attribute PRINTER CONTACT",
	0x0a04010c: "(Novell) Attribute PRINTER LOCATION",
	0x0a04010d: "(Novell) Attribute PRINTER DESCRIPTION",
	0x0a04010e: "(Novell) Attribute PRINTER REGISTRATION",
}

var objectIDs17 = map[uint32]string{
	0x0b050101: "(Novell) Attribute JOB SUBMITTER",
	0x0b050102: "(Novell) Attribute JOB ID",
	0x0b050103: "(Novell) Attribute JOB FILE NAME",
	0x0b050104: "(Novell) Attribute JOB SPOOL SIZE",
	0x0b050105: "(Novell) Attribute JOB PAUSE",
	0x0b050106: "(Novell) Attribute JOB HOLD UNTIL",
	0x0b050107: "(Novell) Attribute JOB RETENTION PERIOD",
	0x0b050108: "(Novell) Attribute JOB NOTIFICATION PROFILE",
	0x0b050109: "(Novell) Attribute JOB COMPLETION TIME",
	0x0b05010a: "(Novell) Attribute JOB PAGES COMPLETED",
	0x0b05010b: "(Novell) Attribute JOB DOCUMENT COUNT",
	0x0b05010c: "(Novell) Attribute JOB CONFIGURATION",
	0x0b05010d: "(Novell) Attribute JOB BANNER",
	0x0b05010e: "(Novell) Attribute JOB FORM",
	0x0b05010f: "(Novell) Attribute JOB RESUBMIT",
}

var objectIDs18 = map[uint32]string{
	0x0c060101: "(Novell) Attribute DOCUMENT SOURCE FILE",
	0x0c060102: "(Novell) Attribute DOCUMENT CONTENT TYPE",
	0x0c060103: "(Novell) Attribute DOCUMENT DRIVER",
	0x0c060104: "(Novell) Attribute DOCUMENT PAGE COUNT",
	0x0c060105: "(Novell) Attribute DOCUMENT SIZE",
	0x0c060106: "(Novell) Attribute DOCUMENT COPIES",
	0x0c060107: "(Novell) Attribute DOCUMENT MEDIUM",
	0x0c060108: "(Novell) Attribute DOCUMENT ORIENTATION",
	0x0c060109: "(Novell) Attribute DOCUMENT RESOLUTION",
	0x0c06010a: "(Novell) Attribute DOCUMENT COLORANT",
	0x0c06010b: "(Novell) Attribute DOCUMENT FINISHING",
	0x0c06010c: "(Novell) Attribute DOCUMENT INPUT TRAY",
	0x0c06010d: "(Novell) Attribute DOCUMENT OUTPUT BIN",
	0x0c06010e: "(Novell) Attribute DOCUMENT FONTS",
	0x0c06010f: "(Novell) Attribute DOCUMENT FORM",
	0x0c060110: "(Novell) Attribute DOCUMENT PROCESSING",
}

// LookupObjectID resolves a well-known id in the table for structure size.
func LookupObjectID(size, id uint32) (string, bool) {
	table, ok := symbolTables[size]
	if !ok {
		return "", false
	}
	name, ok := table[id]
	return name, ok
}
