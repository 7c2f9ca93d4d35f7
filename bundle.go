package osc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"reflect"
)

// bundleIdentifier is the literal 8-byte prefix of every encoded bundle.
var bundleIdentifier = []byte("#bundle\x00")

// Bundle is a time-tagged container of messages and/or nested bundles, per
// spec.md §3/§4.3.
type Bundle struct {
	TimeTag  TimeTag
	Elements []Element
}

var _ Element = (*Bundle)(nil)

// NewBundle returns an empty bundle with the IMMEDIATELY time tag.
func NewBundle() *Bundle {
	return &Bundle{TimeTag: Immediately()}
}

// NewBundleFromBytes decodes a Bundle from its wire representation.
func NewBundleFromBytes(data []byte) (*Bundle, error) {
	bundle := &Bundle{}
	if err := bundle.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return bundle, nil
}

// Add appends an element to the bundle. Only messages and bundles are
// valid bundle elements; anything else fails with ErrBuild, per
// spec.md §4.3's element insertion invariant.
func (bun *Bundle) Add(e Element) error {
	switch e.(type) {
	case *Message, *Bundle:
		bun.Elements = append(bun.Elements, e)
		return nil
	default:
		return fmt.Errorf("%w: bundle element must be a Message or Bundle, got %T", ErrBuild, e)
	}
}

// MarshalBinary encodes bun per spec.md §4.3: the bundle prefix, the time
// tag, then each element preceded by its 32-bit big-endian length.
func (bun *Bundle) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Write(bundleIdentifier)

	tt, err := encodeTimeTag(bun.TimeTag)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBuild, err)
	}
	buf.Write(tt)

	for _, e := range bun.Elements {
		encoded, err := e.MarshalBinary()
		if err != nil {
			return nil, err
		}

		binary.Write(buf, binary.BigEndian, uint32(len(encoded)))
		buf.Write(encoded)
	}

	return buf.Bytes(), nil
}

// UnmarshalBinary decodes bun from its wire representation, per
// spec.md §4.3. A malformed inner element that cannot be classified as a
// nested bundle or a message is logged through slog and skipped rather
// than aborting the whole bundle.
func (bun *Bundle) UnmarshalBinary(data []byte) error {
	buf := bytes.NewBuffer(data)

	identifier := make([]byte, len(bundleIdentifier))
	if n, err := buf.Read(identifier); err != nil || n != len(identifier) || !bytes.Equal(identifier, bundleIdentifier) {
		return fmt.Errorf("%w: missing #bundle identifier", ErrParse)
	}

	timeTag, err := decodeTimeTag(buf)
	if err != nil {
		return err
	}

	var elements []Element
	for {
		var length uint32
		if err := binary.Read(buf, binary.BigEndian, &length); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("%w: truncated bundle element length", ErrParse)
		}

		raw := make([]byte, length)
		n, err := buf.Read(raw)
		if err != nil || uint32(n) != length {
			return fmt.Errorf("%w: truncated bundle element", ErrParse)
		}

		element, ok, err := decodeElement(raw)
		if err != nil {
			return err
		}
		if !ok {
			slog.Default().Warn("osc: skipping unrecognized bundle element", "length", length)
			continue
		}

		elements = append(elements, element)
	}

	bun.TimeTag = timeTag
	bun.Elements = elements
	return nil
}

// decodeElement classifies raw as a nested bundle or a message and
// decodes it. ok is false (with a nil error) when raw's leading bytes
// match neither prefix, per spec.md §4.3's "otherwise -> log and skip".
func decodeElement(raw []byte) (element Element, ok bool, err error) {
	switch {
	case IsBundle(raw):
		b, err := NewBundleFromBytes(raw)
		if err != nil {
			return nil, true, err
		}
		return b, true, nil
	case IsMessage(raw):
		m, err := NewMessageFromBytes(raw)
		if err != nil {
			return nil, true, err
		}
		return m, true, nil
	default:
		return nil, false, nil
	}
}

// Flatten recursively collects every leaf message of bun, in declared
// order, per the Flatten supplement in SPEC_FULL.md §9.
func (bun *Bundle) Flatten() []*Message {
	var out []*Message
	for _, e := range bun.Elements {
		switch v := e.(type) {
		case *Message:
			out = append(out, v)
		case *Bundle:
			out = append(out, v.Flatten()...)
		}
	}
	return out
}

func (bun *Bundle) String() string {
	buf := new(bytes.Buffer)
	buf.WriteString("Bundle{")
	for i, e := range bun.Elements {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(buf, "%v", e)
	}
	buf.WriteString("}")
	return buf.String()
}

// Equals reports whether bun and other have the same time tag and
// element list.
func (bun *Bundle) Equals(other *Bundle) bool {
	if bun == other {
		return true
	}
	return bun.TimeTag == other.TimeTag && reflect.DeepEqual(bun.Elements, other.Elements)
}
