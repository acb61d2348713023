package core

import "errors"

var (
	// Codec errors
	ErrBufferTooShort  = errors.New("procbus: buffer too short")
	ErrOutOfBounds     = errors.New("procbus: read past end of buffer")
	ErrInvalidLength   = errors.New("procbus: invalid element length")
	ErrUnexpectedTag   = errors.New("procbus: unexpected tag")
	ErrInvalidBool     = errors.New("procbus: invalid boolean encoding")
	ErrValueOutOfRange = errors.New("procbus: value out of range")

	// Count invariant errors
	ErrFieldCountMismatch = errors.New("procbus: num_dat_set_entries does not match data set size")
	ErrAsduCountMismatch  = errors.New("procbus: no_asdu does not match ASDU count")

	// Publisher errors
	ErrUnknownReference = errors.New("procbus: unknown GOOSE control block reference")
	ErrAlreadyPublished = errors.New("procbus: control block reference already initialized")
	ErrPublisherClosed  = errors.New("procbus: publisher closed")

	// Configuration errors
	ErrConfigInvalid = errors.New("procbus: invalid configuration")
)
