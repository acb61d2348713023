package core

// GoosePdu is the decoded GOOSE APDU (the 0x61-tagged wrapper and its
// eleven fixed fields plus the allData sequence).
type GoosePdu struct {
	GoCbRef           string
	TimeAllowedToLive uint32
	DatSet            string
	GoID              string
	T                 Timestamp
	StNum             uint32
	SqNum             uint32
	Simulation        bool
	ConfRev           uint32
	NdsCom            bool
	NumDatSetEntries  uint32
	AllData           []Data
}

// GooseMessage pairs a decoded header with its APDU.
type GooseMessage struct {
	Header EthernetHeader
	Pdu    GoosePdu
}
