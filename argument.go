package osc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"golang.org/x/exp/constraints"
)

// Tag is a single OSC type-tag character selecting the wire encoding of one
// argument. The recognized set is 16 tags: the OSC 1.0 core (i, f, s, b)
// plus the common extensions (u, h, d, S, c, r, m, t, T, F, N, I).
type Tag byte

// Recognized type tags.
const (
	TagInt32   Tag = 'i'
	TagUint32  Tag = 'u'
	TagInt64   Tag = 'h'
	TagFloat32 Tag = 'f'
	TagFloat64 Tag = 'd'
	TagString  Tag = 's'
	TagSymbol  Tag = 'S'
	TagBlob    Tag = 'b'
	TagChar    Tag = 'c'
	TagRGBA    Tag = 'r'
	TagMIDI    Tag = 'm'
	TagTimeTag Tag = 't'
	TagTrue    Tag = 'T'
	TagFalse   Tag = 'F'
	TagNil     Tag = 'N'
	TagImpulse Tag = 'I'
)

// MIDI is a 4-byte MIDI message: port, status, data1, data2.
type MIDI [4]byte

// RGBA is a 32-bit color, one byte per channel.
type RGBA [4]byte

// Argument is a single OSC argument: the tag that will be (or was) emitted
// on the wire, and the decoded payload. Carrying the tag alongside the
// value preserves author intent across a build/parse round trip (e.g. an
// explicit float32 vs. an inferred one).
type Argument struct {
	Tag   Tag
	Value any
}

// Int32 returns an explicit i-tagged argument.
func Int32(v int32) Argument { return Argument{TagInt32, v} }

// Uint32 returns an explicit u-tagged argument.
func Uint32(v uint32) Argument { return Argument{TagUint32, v} }

// Int64 returns an explicit h-tagged argument.
func Int64(v int64) Argument { return Argument{TagInt64, v} }

// Float32 returns an explicit f-tagged argument.
func Float32(v float32) Argument { return Argument{TagFloat32, v} }

// Float64 returns an explicit d-tagged argument.
func Float64(v float64) Argument { return Argument{TagFloat64, v} }

// String returns an explicit s-tagged (ASCII) argument.
func String(v string) Argument { return Argument{TagString, v} }

// Symbol returns an explicit S-tagged (UTF-8) argument.
func Symbol(v string) Argument { return Argument{TagSymbol, v} }

// Blob returns an explicit b-tagged argument.
func Blob(v []byte) Argument { return Argument{TagBlob, v} }

// Char returns an explicit c-tagged argument.
func Char(v rune) Argument { return Argument{TagChar, v} }

// Color returns an explicit r-tagged argument.
func Color(v RGBA) Argument { return Argument{TagRGBA, v} }

// Midi returns an explicit m-tagged argument.
func Midi(v MIDI) Argument { return Argument{TagMIDI, v} }

// Time returns an explicit t-tagged argument.
func Time(v TimeTag) Argument { return Argument{TagTimeTag, v} }

// Bool returns an explicit T- or F-tagged argument.
func Bool(v bool) Argument {
	if v {
		return Argument{TagTrue, true}
	}
	return Argument{TagFalse, false}
}

// Null returns an explicit N-tagged argument.
func Null() Argument { return Argument{TagNil, nil} }

// ImpulseArg returns an explicit I-tagged argument.
func ImpulseArg() Argument { return Argument{TagImpulse, nil} }

// Int builds an i-tagged argument from any integer width, automatically
// falling back to h (int64) when the value overflows a signed 32-bit
// range. This resolves the inference Open Question in spec.md §9 in
// favor of auto-promotion: callers that need an explicit 64-bit tag for
// a value that happens to fit in 32 bits should use Int64 directly.
func Int[T constraints.Integer](v T) Argument {
	i64 := int64(v)
	if i64 >= math.MinInt32 && i64 <= math.MaxInt32 {
		return Int32(int32(i64))
	}
	return Int64(i64)
}

// Infer builds an Argument from a weakly typed Go value, per the
// inference rules in spec.md §4.1. The canonical form is the explicit
// constructors above; Infer is a convenience for callers that don't
// carry tag information of their own.
func Infer(v any) (Argument, error) {
	switch val := v.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(val), nil
	case []byte:
		return Blob(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int32(val), nil
	case int64:
		return Int(val), nil
	case uint:
		return Int(int64(val)), nil
	case uint32:
		return Uint32(val), nil
	case float32:
		return Float32(val), nil
	case float64:
		return Float64(val), nil
	case RGBA:
		return Color(val), nil
	case MIDI:
		return Midi(val), nil
	case TimeTag:
		return Time(val), nil
	default:
		return Argument{}, fmt.Errorf("%w: unsupported argument type %T", ErrValidation, v)
	}
}

// validateArgument checks that arg.Value is of the Go type implied by
// arg.Tag, failing with ErrValidation otherwise.
func validateArgument(arg Argument) error {
	switch arg.Tag {
	case TagInt32:
		_, ok := arg.Value.(int32)
		return mismatch(ok, arg.Tag, arg.Value)
	case TagUint32:
		_, ok := arg.Value.(uint32)
		return mismatch(ok, arg.Tag, arg.Value)
	case TagInt64:
		_, ok := arg.Value.(int64)
		return mismatch(ok, arg.Tag, arg.Value)
	case TagFloat32:
		_, ok := arg.Value.(float32)
		return mismatch(ok, arg.Tag, arg.Value)
	case TagFloat64:
		_, ok := arg.Value.(float64)
		return mismatch(ok, arg.Tag, arg.Value)
	case TagString, TagSymbol:
		_, ok := arg.Value.(string)
		return mismatch(ok, arg.Tag, arg.Value)
	case TagBlob:
		_, ok := arg.Value.([]byte)
		return mismatch(ok, arg.Tag, arg.Value)
	case TagChar:
		_, ok := arg.Value.(rune)
		return mismatch(ok, arg.Tag, arg.Value)
	case TagRGBA:
		_, ok := arg.Value.(RGBA)
		return mismatch(ok, arg.Tag, arg.Value)
	case TagMIDI:
		_, ok := arg.Value.(MIDI)
		return mismatch(ok, arg.Tag, arg.Value)
	case TagTimeTag:
		_, ok := arg.Value.(TimeTag)
		return mismatch(ok, arg.Tag, arg.Value)
	case TagTrue, TagFalse, TagNil, TagImpulse:
		return nil
	default:
		return fmt.Errorf("%w: unsupported explicit tag %q", ErrValidation, arg.Tag)
	}
}

func mismatch(ok bool, tag Tag, v any) error {
	if ok {
		return nil
	}
	return fmt.Errorf("%w: value %v does not match declared tag %q", ErrValidation, v, tag)
}

// encodeArgument writes the padded wire payload for arg, per spec.md §4.1.
func encodeArgument(arg Argument) ([]byte, error) {
	if err := validateArgument(arg); err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)

	switch arg.Tag {
	case TagInt32:
		binary.Write(buf, binary.BigEndian, arg.Value.(int32))
	case TagUint32:
		binary.Write(buf, binary.BigEndian, arg.Value.(uint32))
	case TagInt64:
		binary.Write(buf, binary.BigEndian, arg.Value.(int64))
	case TagFloat32:
		binary.Write(buf, binary.BigEndian, arg.Value.(float32))
	case TagFloat64:
		binary.Write(buf, binary.BigEndian, arg.Value.(float64))
	case TagString, TagSymbol:
		s := arg.Value.(string)
		if len(s) == 0 {
			return nil, fmt.Errorf("%w: string argument must not be empty", ErrBuild)
		}
		if arg.Tag == TagSymbol && !utf8.ValidString(s) {
			return nil, fmt.Errorf("%w: symbol argument is not valid UTF-8", ErrBuild)
		}
		buf.Write(encodeString(s))
	case TagBlob:
		data := arg.Value.([]byte)
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: blob argument must not be empty", ErrBuild)
		}
		buf.Write(encodeBlob(data))
	case TagChar:
		var b [4]byte
		b[0] = byte(arg.Value.(rune))
		buf.Write(b[:])
	case TagRGBA:
		c := arg.Value.(RGBA)
		buf.Write(c[:])
	case TagMIDI:
		m := arg.Value.(MIDI)
		buf.Write(m[:])
	case TagTimeTag:
		tt, err := encodeTimeTag(arg.Value.(TimeTag))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBuild, err)
		}
		buf.Write(tt)
	case TagTrue, TagFalse, TagNil, TagImpulse:
		// no payload bytes
	}

	return buf.Bytes(), nil
}

// decodeArgument reads the payload for a single type tag from buf.
// recognized is false when tag has no known decoder; the caller skips it
// without consuming any bytes, per spec.md §4.1's unknown-tag tolerance.
func decodeArgument(tag byte, buf *bytes.Buffer) (arg Argument, recognized bool, err error) {
	defer func() {
		if err != nil && !errors.Is(err, ErrParse) {
			err = fmt.Errorf("%w: truncated %q argument: %v", ErrParse, tag, err)
		}
	}()

	switch Tag(tag) {
	case TagInt32:
		var v int32
		err = binary.Read(buf, binary.BigEndian, &v)
		return Argument{TagInt32, v}, true, err
	case TagUint32:
		var v uint32
		err = binary.Read(buf, binary.BigEndian, &v)
		return Argument{TagUint32, v}, true, err
	case TagInt64:
		var v int64
		err = binary.Read(buf, binary.BigEndian, &v)
		return Argument{TagInt64, v}, true, err
	case TagFloat32:
		var v float32
		err = binary.Read(buf, binary.BigEndian, &v)
		return Argument{TagFloat32, v}, true, err
	case TagFloat64:
		var v float64
		err = binary.Read(buf, binary.BigEndian, &v)
		return Argument{TagFloat64, v}, true, err
	case TagString:
		v, derr := decodeString(buf)
		return Argument{TagString, v}, true, derr
	case TagSymbol:
		v, derr := decodeString(buf)
		if derr == nil && !utf8.ValidString(v) {
			return Argument{}, true, fmt.Errorf("%w: symbol argument is not valid UTF-8", ErrParse)
		}
		return Argument{TagSymbol, v}, true, derr
	case TagBlob:
		v, derr := decodeBlob(buf)
		return Argument{TagBlob, v}, true, derr
	case TagChar:
		var b [4]byte
		read, derr := buf.Read(b[:])
		if derr == nil && read != len(b) {
			derr = fmt.Errorf("%w: truncated char argument", ErrParse)
		}
		return Argument{TagChar, rune(b[0])}, true, derr
	case TagRGBA:
		var c RGBA
		read, derr := buf.Read(c[:])
		if derr == nil && read != len(c) {
			derr = fmt.Errorf("%w: truncated color argument", ErrParse)
		}
		return Argument{TagRGBA, c}, true, derr
	case TagMIDI:
		var m MIDI
		read, derr := buf.Read(m[:])
		if derr == nil && read != len(m) {
			derr = fmt.Errorf("%w: truncated MIDI argument", ErrParse)
		}
		return Argument{TagMIDI, m}, true, derr
	case TagTimeTag:
		tt, derr := decodeTimeTag(buf)
		return Argument{TagTimeTag, tt}, true, derr
	case TagTrue:
		return Argument{TagTrue, true}, true, nil
	case TagFalse:
		return Argument{TagFalse, false}, true, nil
	case TagNil:
		return Argument{TagNil, nil}, true, nil
	case TagImpulse:
		return Argument{TagImpulse, nil}, true, nil
	default:
		return Argument{}, false, nil
	}
}

// unixOSCEpochOffset is the difference, in seconds, between the Unix epoch
// (1970-01-01) and the NTP/OSC epoch (1900-01-01).
const unixOSCEpochOffset = 2208988800

// timeTagImmediate is the literal 8-byte wire value that means "dispatch
// immediately", per spec.md §4.1/§6.1/§8.
var timeTagImmediate = [8]byte{0, 0, 0, 0, 0, 0, 0, 1}

// TimeTag represents an OSC time tag: either the IMMEDIATELY sentinel, or
// an instant carried as a Go time.Time.
type TimeTag struct {
	t         time.Time
	immediate bool
}

// NewTimeTag returns a TimeTag for the given instant.
func NewTimeTag(t time.Time) TimeTag { return TimeTag{t: t.UTC()} }

// Immediately is the sentinel time tag requesting dispatch without delay.
func Immediately() TimeTag { return TimeTag{immediate: true} }

// Time returns the underlying instant. It is the zero time.Time if the
// tag is Immediately.
func (tt TimeTag) Time() time.Time { return tt.t }

// IsImmediate reports whether tt is the IMMEDIATELY sentinel.
func (tt TimeTag) IsImmediate() bool { return tt.immediate }

func (tt TimeTag) String() string {
	if tt.immediate {
		return "osc.TimeTag(immediately)"
	}
	return "osc.TimeTag(" + tt.t.String() + ")"
}

// encodeTimeTag renders tt as its 8-byte NTP wire form.
func encodeTimeTag(tt TimeTag) ([]byte, error) {
	if tt.immediate {
		return timeTagImmediate[:], nil
	}

	if tt.t.IsZero() {
		return nil, fmt.Errorf("%w: zero time cannot be converted to an NTP time tag", ErrNTP)
	}

	secs := tt.t.Unix() + unixOSCEpochOffset
	if secs < 0 || secs > math.MaxUint32 {
		return nil, fmt.Errorf("%w: time %s is outside the representable NTP range", ErrNTP, tt.t)
	}

	frac := uint32(uint64(tt.t.Nanosecond()) << 32 / 1e9)

	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], uint32(secs))
	binary.BigEndian.PutUint32(buf[4:8], frac)
	return buf, nil
}

// decodeTimeTag reads an 8-byte NTP time tag from buf.
func decodeTimeTag(buf *bytes.Buffer) (TimeTag, error) {
	var raw [8]byte
	n, err := buf.Read(raw[:])
	if err != nil || n != 8 {
		return TimeTag{}, fmt.Errorf("%w: truncated time tag", ErrParse)
	}

	if raw == timeTagImmediate {
		return Immediately(), nil
	}

	secs := binary.BigEndian.Uint32(raw[0:4])
	frac := binary.BigEndian.Uint32(raw[4:8])

	nanos := (uint64(frac) * 1e9) >> 32
	unixSecs := int64(secs) - unixOSCEpochOffset

	return NewTimeTag(time.Unix(unixSecs, int64(nanos))), nil
}

// encodeString converts s to a 32-bit padded OSC string, per spec.md
// §4.1's string padding rule.
func encodeString(s string) []byte {
	b := append([]byte(s), 0)
	return padTo32Bits(b)
}

// decodeString reads a null-terminated, 32-bit padded OSC string from buf.
func decodeString(buf *bytes.Buffer) (string, error) {
	raw, err := buf.ReadString(0)
	if err != nil {
		return "", fmt.Errorf("%w: unterminated OSC string", ErrParse)
	}

	str := raw[:len(raw)-1]

	padded := (len(raw) + 3) &^ 3
	toDiscard := padded - len(raw)
	for i := 0; i < toDiscard; i++ {
		b, err := buf.ReadByte()
		if err != nil {
			return "", fmt.Errorf("%w: truncated string padding", ErrParse)
		}
		if b != 0 {
			return "", fmt.Errorf("%w: non-zero string padding byte", ErrParse)
		}
	}

	return str, nil
}

// encodeBlob converts data to a length-prefixed, 32-bit padded OSC blob.
func encodeBlob(data []byte) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, int32(len(data)))
	buf.Write(data)
	return padTo32Bits(buf.Bytes())
}

// decodeBlob reads a length-prefixed, 32-bit padded OSC blob from buf.
func decodeBlob(buf *bytes.Buffer) ([]byte, error) {
	var n int32
	if err := binary.Read(buf, binary.BigEndian, &n); err != nil {
		return nil, fmt.Errorf("%w: truncated blob length", ErrParse)
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative blob length", ErrParse)
	}

	padded := (int(n) + 3) &^ 3
	raw := make([]byte, padded)
	read, err := buf.Read(raw)
	if err != nil || read != padded {
		return nil, fmt.Errorf("%w: truncated blob content", ErrParse)
	}

	data := make([]byte, n)
	copy(data, raw[:n])
	return data, nil
}

// padTo32Bits appends zero bytes to data until its length is a multiple of
// 4; no bytes are appended if data is already word-aligned. Applied to a
// null-terminated string, this automatically yields the "full 4 zero
// bytes" case from spec.md §4.1 whenever the content length (excluding
// the terminator) is itself a multiple of 4, since the terminator then
// pushes the aligned length one byte past the next boundary.
func padTo32Bits(data []byte) []byte {
	pad := (4 - len(data)%4) % 4
	for i := 0; i < pad; i++ {
		data = append(data, 0)
	}
	return data
}
