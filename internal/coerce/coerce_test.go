package coerce

import (
	"math"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestIdentifier(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"integer", int64(42), "42"},
		{"negative integer", int64(-7), "-7"},
		{"large integer", int64(13915646089411117151 >> 1), "6957823044705558575"},
		{"text", "abc", "abc"},
		{"empty text", "", ""},
		{"null", nil, "0"},
		{"real", 3.14, "0"},
		{"blob", []byte("123"), "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Identifier(tt.in))
		})
	}
}

func TestTimestamp(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want uint32
	}{
		{"integer", int64(1734567890), 1734567890},
		{"zero", int64(0), 0},
		{"max", int64(math.MaxUint32), math.MaxUint32},
		{"overflow", int64(math.MaxUint32) + 1, 0},
		{"negative", int64(-1), 0},
		{"text", "1734567890", 0},
		{"null", nil, 0},
		{"real", 1.5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Timestamp(tt.in))
		})
	}
}

func TestContentValidRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"<TimelineObject><contentDesc>hello</contentDesc></TimelineObject>",
		"朋友圈 🎉 mixed ascii",
	}
	for _, in := range inputs {
		assert.Equal(t, in, Content([]byte(in)))
		assert.Equal(t, in, Content(in))
	}
}

func TestContentIsTotal(t *testing.T) {
	inputs := [][]byte{
		{0xff, 0xfe, 0xfd},
		{'a', 0xc3, 'b'},
		{0x08, 0x01, 0x12, 0x80, 0x80, 0x01},
		{0xe4, 0xbd},
	}
	for _, in := range inputs {
		out := Content(in)
		assert.True(t, utf8.ValidString(out), "output for %x must be valid UTF-8", in)
		assert.Contains(t, out, string(utf8.RuneError))
	}
}

func TestContentPreservesValidParts(t *testing.T) {
	out := Content([]byte{'o', 'k', 0xff, '!'})
	assert.Equal(t, "ok�!", out)
}

func TestContentNonTextStorage(t *testing.T) {
	assert.Equal(t, "", Content(nil))
	assert.Equal(t, "", Content(int64(5)))
}
