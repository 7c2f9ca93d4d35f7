package osc

import (
	"bytes"
	"fmt"
	"reflect"
	"regexp"
)

// addressPattern matches a valid OSC address per spec.md §6.4: either the
// bare string "/", or a "/" followed by one or more characters drawn from
// the address-grammar character class.
var addressPattern = regexp.MustCompile(`^/[A-Za-z0-9/_\-?*\[\]]+$`)

// ValidateAddress reports whether addr is a well-formed OSC address.
func ValidateAddress(addr string) error {
	if addr == "/" || addressPattern.MatchString(addr) {
		return nil
	}
	return fmt.Errorf("%w: %q is not a valid OSC address", ErrValidation, addr)
}

// Message is a single OSC message: an address and an ordered sequence of
// arguments. Messages are value-typed; mutation appends or removes
// arguments prior to a call to MarshalBinary.
type Message struct {
	Address   string
	Arguments []Argument
}

// NewMessage creates a message addressed to addr, with no arguments.
// It does not validate addr; validation happens at MarshalBinary time,
// matching the teacher's practice of deferring address checks to build.
func NewMessage(addr string) *Message {
	return &Message{Address: addr}
}

// NewMessageFromBytes decodes a Message from its wire representation.
func NewMessageFromBytes(data []byte) (*Message, error) {
	msg := &Message{}
	if err := msg.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return msg, nil
}

// Append adds arg to the end of msg's argument list. It fails with
// ErrValidation if arg's declared tag and value type disagree.
func (msg *Message) Append(arg Argument) error {
	if err := validateArgument(arg); err != nil {
		return err
	}
	msg.Arguments = append(msg.Arguments, arg)
	return nil
}

// Insert adds arg at the given index, shifting subsequent arguments right.
// Index 0 inserts at the front; index len(Arguments) appends.
func (msg *Message) Insert(index int, arg Argument) error {
	if index < 0 || index > len(msg.Arguments) {
		return fmt.Errorf("%w: insert index %d out of range [0,%d]", ErrValidation, index, len(msg.Arguments))
	}
	if err := validateArgument(arg); err != nil {
		return err
	}

	msg.Arguments = append(msg.Arguments, Argument{})
	copy(msg.Arguments[index+1:], msg.Arguments[index:])
	msg.Arguments[index] = arg
	return nil
}

// At returns the argument at index.
func (msg *Message) At(index int) (Argument, error) {
	if index < 0 || index >= len(msg.Arguments) {
		return Argument{}, fmt.Errorf("%w: index %d out of range [0,%d)", ErrValidation, index, len(msg.Arguments))
	}
	return msg.Arguments[index], nil
}

// Set replaces the argument at index.
func (msg *Message) Set(index int, arg Argument) error {
	if index < 0 || index >= len(msg.Arguments) {
		return fmt.Errorf("%w: index %d out of range [0,%d)", ErrValidation, index, len(msg.Arguments))
	}
	if err := validateArgument(arg); err != nil {
		return err
	}
	msg.Arguments[index] = arg
	return nil
}

// Delete removes the argument at index, including index 0. The teacher's
// off-by-one (which refused to remove index 0) is not carried forward,
// per the Open Question resolution in spec.md §9.
func (msg *Message) Delete(index int) error {
	if index < 0 || index >= len(msg.Arguments) {
		return fmt.Errorf("%w: index %d out of range [0,%d)", ErrValidation, index, len(msg.Arguments))
	}
	msg.Arguments = append(msg.Arguments[:index], msg.Arguments[index+1:]...)
	return nil
}

// RemoveFirst removes the first argument whose Value equals value,
// reporting whether a match was found.
func (msg *Message) RemoveFirst(value any) bool {
	for i, arg := range msg.Arguments {
		if reflect.DeepEqual(arg.Value, value) {
			msg.Arguments = append(msg.Arguments[:i], msg.Arguments[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes every argument from msg.
func (msg *Message) Clear() {
	msg.Arguments = nil
}

func (msg Message) String() string {
	return fmt.Sprintf("Message{Address: %s, Arguments: %v}", msg.Address, msg.Arguments)
}

// Equals reports whether msg and other have the same address and
// argument list.
func (msg *Message) Equals(other *Message) bool {
	if msg == other {
		return true
	}
	return msg.Address == other.Address && reflect.DeepEqual(msg.Arguments, other.Arguments)
}

// typeTagString renders msg's type-tag string, including the leading
// comma. strict controls what is emitted for a zero-argument message: the
// teacher's default omits the tag string entirely (see Open Question in
// spec.md §9); strict mode instead emits the bare "," OSC 1.0 requires.
func (msg *Message) typeTagString(strict bool) (string, error) {
	if len(msg.Arguments) == 0 && !strict {
		return "", nil
	}

	tags := []byte{','}
	for _, arg := range msg.Arguments {
		if err := validateArgument(arg); err != nil {
			return "", err
		}
		tags = append(tags, byte(arg.Tag))
	}
	return string(tags), nil
}

// MarshalBinary encodes msg per spec.md §4.2, omitting the type-tag string
// for a zero-argument message (the non-strict default).
func (msg *Message) MarshalBinary() ([]byte, error) {
	return msg.marshalBinary(false)
}

// MarshalBinaryStrict encodes msg like MarshalBinary, but always emits the
// bare "," type-tag string for a zero-argument message, per strict OSC 1.0.
func (msg *Message) MarshalBinaryStrict() ([]byte, error) {
	return msg.marshalBinary(true)
}

func (msg *Message) marshalBinary(strict bool) ([]byte, error) {
	if err := ValidateAddress(msg.Address); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBuild, err)
	}

	tags, err := msg.typeTagString(strict)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBuild, err)
	}

	buf := new(bytes.Buffer)
	buf.Write(encodeString(msg.Address))
	if tags != "" {
		buf.Write(encodeString(tags))
	}

	for _, arg := range msg.Arguments {
		data, err := encodeArgument(arg)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}

	return buf.Bytes(), nil
}

// UnmarshalBinary decodes msg from its wire representation, per
// spec.md §4.2. Arguments whose type tag is unrecognized are skipped, not
// appended, per spec.md §4.1.
func (msg *Message) UnmarshalBinary(data []byte) error {
	buf := bytes.NewBuffer(data)

	address, err := decodeString(buf)
	if err != nil {
		return err
	}

	var args []Argument
	if buf.Len() > 0 {
		tagString, err := decodeString(buf)
		if err != nil {
			return err
		}
		if len(tagString) == 0 || tagString[0] != ',' {
			return fmt.Errorf("%w: type-tag string must start with ','", ErrParse)
		}

		for i := 1; i < len(tagString); i++ {
			arg, recognized, err := decodeArgument(tagString[i], buf)
			if err != nil {
				return err
			}
			if recognized {
				args = append(args, arg)
			}
		}
	}

	msg.Address = address
	msg.Arguments = args
	return nil
}
