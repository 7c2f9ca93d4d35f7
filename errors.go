package osc

import "errors"

// Sentinel errors for the four error categories a caller can match on with
// errors.Is: a malformed datagram, an unencodable value, an unconvertible
// time tag, and a malformed API argument.
var (
	// ErrParse indicates a datagram does not conform to the OSC wire format:
	// empty, truncated, an unknown leading byte, a malformed string/blob
	// length, non-UTF8 payload in an S argument, or an unreadable time tag.
	ErrParse = errors.New("osc: parse error")

	// ErrBuild indicates a value cannot be encoded: an empty address, an
	// empty blob, an argument that doesn't fit its declared tag, or a
	// bundle element that is neither a message nor a bundle.
	ErrBuild = errors.New("osc: build error")

	// ErrNTP indicates a time value could not be converted to the NTP
	// time tag representation. It always surfaces wrapped in ErrBuild.
	ErrNTP = errors.New("osc: ntp conversion error")

	// ErrValidation indicates a caller supplied a malformed API argument:
	// an invalid address, an unsupported explicit tag, an out-of-range
	// index, or a value of the wrong Go type.
	ErrValidation = errors.New("osc: validation error")
)
