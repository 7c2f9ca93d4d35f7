package osc

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeTimeTagImmediate(t *testing.T) {
	data, err := encodeTimeTag(Immediately())
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 1}, data)
}

func TestEncodeTimeTag(t *testing.T) {
	// Jan 1, 2018 UTC is 3723753600 (0xDDF3F880) seconds since the OSC epoch.
	tt := NewTimeTag(time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC))
	data, err := encodeTimeTag(tt)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xDD, 0xF3, 0xF8, 0x80, 0x00, 0x00, 0x00, 0x00}, data)
}

func TestEncodeTimeTagFractional(t *testing.T) {
	// 0.5s is exactly half the 32-bit fixed-point fraction range, i.e.
	// 0x80000000, not the raw nanosecond count.
	tt := NewTimeTag(time.Date(2018, 1, 1, 0, 0, 0, 500_000_000, time.UTC))
	data, err := encodeTimeTag(tt)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xDD, 0xF3, 0xF8, 0x80, 0x80, 0x00, 0x00, 0x00}, data)
}

func TestEncodeTimeTagZeroIsError(t *testing.T) {
	_, err := encodeTimeTag(TimeTag{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNTP)
}

func TestDecodeTimeTagImmediate(t *testing.T) {
	raw := []byte{0, 0, 0, 0, 0, 0, 0, 1}
	tt, err := decodeTimeTag(bytes.NewBuffer(raw))
	require.NoError(t, err)
	assert.True(t, tt.IsImmediate())
}

func TestDecodeTimeTag(t *testing.T) {
	raw := []byte{0xDD, 0xF3, 0xF8, 0x80, 0x00, 0x00, 0x00, 0x00}
	tt, err := decodeTimeTag(bytes.NewBuffer(raw))
	require.NoError(t, err)
	assert.True(t, tt.Time().Equal(time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestTimeTagRoundTrip(t *testing.T) {
	want := NewTimeTag(time.Date(2024, 6, 15, 12, 30, 0, 250_000_000, time.UTC))
	data, err := encodeTimeTag(want)
	require.NoError(t, err)

	got, err := decodeTimeTag(bytes.NewBuffer(data))
	require.NoError(t, err)
	assert.WithinDuration(t, want.Time(), got.Time(), time.Millisecond)
}

func TestPadTo32Bits(t *testing.T) {
	assert.Equal(t, []byte{}, padTo32Bits([]byte{}))
	assert.Equal(t, []byte{'/', 0, 0, 0}, padTo32Bits([]byte{'/'}))
	assert.Equal(t, []byte("1234"), padTo32Bits([]byte("1234")))
	assert.Equal(t, []byte("1234\x00\x00\x00\x00"), padTo32Bits([]byte("1234\x00\x00\x00\x00")))
}

func TestEncodeStringPadding(t *testing.T) {
	// "/SYNC" (5 bytes) + null terminator (6) pads to 8.
	assert.Equal(t, []byte("/SYNC\x00\x00\x00"), encodeString("/SYNC"))

	// "ABCD" (4 bytes, word-aligned) + terminator still needs a full word
	// of padding per the string rule's special case.
	assert.Equal(t, []byte("ABCD\x00\x00\x00\x00"), encodeString("ABCD"))

	// "ABC" (3 bytes) + terminator is already word-aligned.
	assert.Equal(t, []byte("ABC\x00"), encodeString("ABC"))
}

func TestStringRoundTrip(t *testing.T) {
	for _, s := range []string{"", "/SYNC", "ABCD", "ABC", "/oscillator/4/frequency"} {
		data := encodeString(s)
		assert.Zero(t, len(data)%4, "encoded length must be word-aligned for %q", s)

		got, err := decodeString(bytes.NewBuffer(data))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestBlobRoundTrip(t *testing.T) {
	for _, blob := range [][]byte{
		{0x73, 0x74, 0x75, 0x66, 0x66, 0x00, 0x00, 0x00}, // already word-aligned
		{1, 2, 3},
		{1, 2, 3, 4, 5},
	} {
		data := encodeBlob(blob)
		got, err := decodeBlob(bytes.NewBuffer(data))
		require.NoError(t, err)
		assert.Equal(t, blob, got)
	}
}

func TestBlobPaddingHasNoFullWordSpecialCase(t *testing.T) {
	// Unlike strings, a word-aligned blob gets zero extra padding bytes.
	blob := []byte{0x73, 0x74, 0x75, 0x66, 0x66, 0x00, 0x00, 0x00}
	data := encodeBlob(blob)
	assert.Len(t, data, 4+len(blob))
}

func TestIntPromotesToInt64OnOverflow(t *testing.T) {
	small := Int(42)
	assert.Equal(t, TagInt32, small.Tag)

	large := Int(int64(1) << 40)
	assert.Equal(t, TagInt64, large.Tag)
}

func TestInferUnsupportedType(t *testing.T) {
	_, err := Infer(struct{}{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestValidateArgumentMismatch(t *testing.T) {
	err := validateArgument(Argument{Tag: TagInt32, Value: "not an int32"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEncodeArgumentRoundTrip(t *testing.T) {
	args := []Argument{
		Int32(-17),
		Uint32(200),
		Int64(1 << 40),
		Float32(3.14),
		Float64(2.71828),
		String("hello"),
		Symbol("world"),
		Blob([]byte{1, 2, 3, 4}),
		Char('Q'),
		Color(RGBA{255, 0, 0, 255}),
		Midi(MIDI{0, 0x90, 60, 127}),
		Time(Immediately()),
		Bool(true),
		Bool(false),
		Null(),
		ImpulseArg(),
	}

	for _, arg := range args {
		data, err := encodeArgument(arg)
		require.NoError(t, err, "encoding %v", arg)

		buf := bytes.NewBuffer(data)
		got, recognized, err := decodeArgument(byte(arg.Tag), buf)
		require.NoError(t, err, "decoding %v", arg)
		assert.True(t, recognized)
		assert.Equal(t, arg.Tag, got.Tag)
		assert.Equal(t, arg.Value, got.Value)
	}
}

func TestDecodeArgumentUnknownTagIsSkippedNotAppended(t *testing.T) {
	_, recognized, err := decodeArgument('z', bytes.NewBuffer(nil))
	require.NoError(t, err)
	assert.False(t, recognized)
}

func TestBlobMustNotBeEmpty(t *testing.T) {
	_, err := encodeArgument(Blob(nil))
	assert.ErrorIs(t, err, ErrBuild)
}

func TestSymbolMustBeValidUTF8(t *testing.T) {
	_, err := encodeArgument(Argument{Tag: TagSymbol, Value: string([]byte{0xff, 0xfe})})
	assert.ErrorIs(t, err, ErrBuild)
}

func TestStringArgumentMustNotBeEmpty(t *testing.T) {
	_, err := encodeArgument(String(""))
	assert.ErrorIs(t, err, ErrBuild)

	_, err = encodeArgument(Symbol(""))
	assert.ErrorIs(t, err, ErrBuild)
}

func TestDecodeArgumentTruncatedFixedWidthPayloads(t *testing.T) {
	for _, tag := range []byte{byte(TagChar), byte(TagRGBA), byte(TagMIDI)} {
		_, _, err := decodeArgument(tag, bytes.NewBuffer([]byte{1, 2}))
		assert.ErrorIs(t, err, ErrParse, "tag %q", tag)
	}
}
