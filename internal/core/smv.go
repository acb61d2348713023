package core

// Validity is the two-bit validity field of a quality word.
type Validity uint8

const (
	ValidityGood         Validity = 0
	ValidityInvalid      Validity = 1
	ValidityReserved     Validity = 2
	ValidityQuestionable Validity = 3
)

// Quality word bit positions, MSB-first in the 32-bit wire word.
const (
	qValidityShift       = 30
	qOverflow            = 1 << 29
	qOutOfRange          = 1 << 28
	qBadReference        = 1 << 27
	qOscillatory         = 1 << 26
	qFailure             = 1 << 25
	qOldData             = 1 << 24
	qInconsistent        = 1 << 23
	qInaccurate          = 1 << 22
	qSourceSubstituted   = 1 << 21
	qTest                = 1 << 20
	qOperatorBlocked     = 1 << 19
	qDerived             = 1 << 18
	qDetailMask          = qOverflow | qOutOfRange | qBadReference | qOscillatory | qFailure | qOldData | qInconsistent | qInaccurate
)

// Quality describes the quality of one sampled value.
type Quality struct {
	Validity          Validity
	Overflow          bool
	OutOfRange        bool
	BadReference      bool
	Oscillatory       bool
	Failure           bool
	OldData           bool
	Inconsistent      bool
	Inaccurate        bool
	SourceSubstituted bool
	Test              bool
	OperatorBlocked   bool
	Derived           bool
}

// QualityFromWord unpacks the 32-bit wire representation.
func QualityFromWord(w uint32) Quality {
	return Quality{
		Validity:          Validity(w >> qValidityShift),
		Overflow:          w&qOverflow != 0,
		OutOfRange:        w&qOutOfRange != 0,
		BadReference:      w&qBadReference != 0,
		Oscillatory:       w&qOscillatory != 0,
		Failure:           w&qFailure != 0,
		OldData:           w&qOldData != 0,
		Inconsistent:      w&qInconsistent != 0,
		Inaccurate:        w&qInaccurate != 0,
		SourceSubstituted: w&qSourceSubstituted != 0,
		Test:              w&qTest != 0,
		OperatorBlocked:   w&qOperatorBlocked != 0,
		Derived:           w&qDerived != 0,
	}
}

// Word packs the quality back into its 32-bit wire representation.
func (q Quality) Word() uint32 {
	w := uint32(q.Validity&0x03) << qValidityShift
	set := func(on bool, bit uint32) {
		if on {
			w |= bit
		}
	}
	set(q.Overflow, qOverflow)
	set(q.OutOfRange, qOutOfRange)
	set(q.BadReference, qBadReference)
	set(q.Oscillatory, qOscillatory)
	set(q.Failure, qFailure)
	set(q.OldData, qOldData)
	set(q.Inconsistent, qInconsistent)
	set(q.Inaccurate, qInaccurate)
	set(q.SourceSubstituted, qSourceSubstituted)
	set(q.Test, qTest)
	set(q.OperatorBlocked, qOperatorBlocked)
	set(q.Derived, qDerived)
	return w
}

// IsGood reports whether the value is usable for protection purposes:
// good validity and no detail, substitution, test or blocked flags.
func (q Quality) IsGood() bool {
	w := q.Word()
	return q.Validity == ValidityGood &&
		w&(qDetailMask|qSourceSubstituted|qTest|qOperatorBlocked) == 0
}

// Sample is one measurement in an SMV ASDU: a scaled 32-bit value and
// its quality word. Fixed 8 octets on the wire.
type Sample struct {
	Value   int32
	Quality Quality
}

// SavAsdu is one application service data unit of a sampled-values
// message. Nil pointer fields are absent on the wire.
type SavAsdu struct {
	SvID       string
	DatSet     *string
	SmpCnt     uint16
	ConfRev    uint32
	RefrTm     *Timestamp
	SmpSynch   uint8
	SmpRate    *uint16
	Samples    []Sample
	SmpMod     *uint16
	GmIdentity *[8]byte
}

// SavPdu is the decoded savPdu wrapper: the declared ASDU count, the
// optional opaque security field and the ASDU sequence. Simulation is
// taken from the frame header's reserved word, not from the APDU.
type SavPdu struct {
	Simulation bool
	NoAsdu     uint16
	Security   []byte
	Asdus      []SavAsdu
}

// SMVMessage pairs a decoded header with its APDU.
type SMVMessage struct {
	Header EthernetHeader
	Pdu    SavPdu
}

// SmpSynch well-known values.
const (
	SmpSynchNone   uint8 = 0
	SmpSynchLocal  uint8 = 1
	SmpSynchGlobal uint8 = 2
)
