package core

// Data is one element of a GOOSE data set. The concrete types below
// are the closed set of MMS data variants carried in allData; Array
// and Structure nest arbitrarily.
type Data interface {
	isData()
}

// Boolean is an MMS boolean, 0xFF / 0x00 on the wire.
type Boolean bool

// BitString is an MMS bit-string. Padding is the number of unused low
// bits in the final octet (0..7); bits are stored MSB-first exactly as
// they appear on the wire.
type BitString struct {
	Padding uint8
	Bits    []byte
}

// Integer is a signed MMS integer, minimal two's-complement on the wire.
type Integer int64

// Unsigned is an unsigned MMS integer.
type Unsigned uint64

// Float32 is an MMS floating-point with exponent-width descriptor 8.
type Float32 float32

// Float64 is an MMS floating-point with exponent-width descriptor 17.
type Float64 float64

// OctetString is an opaque byte sequence.
type OctetString []byte

// VisibleString is an ASCII string.
type VisibleString string

// MmsString is a UTF-8 string.
type MmsString string

// UTCTime is an 8-octet UtcTime data element.
type UTCTime Timestamp

// Array is an ordered sequence of same-typed elements.
type Array []Data

// Structure is an ordered sequence of arbitrarily typed elements.
type Structure []Data

func (Boolean) isData()       {}
func (BitString) isData()     {}
func (Integer) isData()       {}
func (Unsigned) isData()      {}
func (Float32) isData()       {}
func (Float64) isData()       {}
func (OctetString) isData()   {}
func (VisibleString) isData() {}
func (MmsString) isData()     {}
func (UTCTime) isData()       {}
func (Array) isData()         {}
func (Structure) isData()     {}
