package osc

import (
	"encoding"
	"fmt"
	"time"
)

// Element is anything that can appear as the root of a packet or as a
// bundle's child: a Message or a Bundle.
type Element interface {
	encoding.BinaryMarshaler
}

var (
	_ Element = (*Message)(nil)
	_ Element = (*Bundle)(nil)
)

// Packet is the externally observed parse result of one UDP datagram: the
// original bytes, the wall-clock receipt time, and the root element
// (a Message or a Bundle), per spec.md §3/§4.4.
type Packet struct {
	Raw  []byte
	Time time.Time
	Root Element
}

// IsBundle reports whether raw looks like the start of an OSC bundle
// (the cheap prefix test spec.md §4.4/§4.6 calls for, ahead of a full
// parse).
func IsBundle(raw []byte) bool {
	return len(raw) >= 8 && string(raw[:8]) == "#bundle\x00"
}

// IsMessage reports whether raw looks like the start of an OSC message.
func IsMessage(raw []byte) bool {
	return len(raw) >= 1 && raw[0] == '/'
}

// ParsePacket classifies raw as a bundle or a message and parses it,
// stamping the result with recvTime. An empty or unrecognized datagram
// fails with ErrParse, per spec.md §3's "empty datagrams are invalid".
func ParsePacket(raw []byte, recvTime time.Time) (*Packet, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty datagram", ErrParse)
	}

	var root Element
	switch {
	case IsBundle(raw):
		bundle, err := NewBundleFromBytes(raw)
		if err != nil {
			return nil, err
		}
		root = bundle
	case IsMessage(raw):
		msg, err := NewMessageFromBytes(raw)
		if err != nil {
			return nil, err
		}
		root = msg
	default:
		return nil, fmt.Errorf("%w: datagram is neither a message nor a bundle", ErrParse)
	}

	return &Packet{Raw: raw, Time: recvTime, Root: root}, nil
}

// ElementCount returns the flat number of leaf messages reachable from
// p.Root: 1 for a bare message, or the sum of child element counts for a
// bundle (recursing through nested bundles), per spec.md §4.4/§8.
func (p *Packet) ElementCount() int {
	return elementCount(p.Root)
}

func elementCount(e Element) int {
	switch v := e.(type) {
	case *Bundle:
		n := 0
		for _, child := range v.Elements {
			n += elementCount(child)
		}
		return n
	case *Message:
		return 1
	default:
		return 0
	}
}

// Messages flattens p.Root into an ordered slice of its leaf messages.
func (p *Packet) Messages() []*Message {
	return flattenMessages(p.Root)
}

func flattenMessages(e Element) []*Message {
	switch v := e.(type) {
	case *Bundle:
		return v.Flatten()
	case *Message:
		return []*Message{v}
	default:
		return nil
	}
}
