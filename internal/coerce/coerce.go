// Package coerce converts loosely typed SQLite column values into the
// canonical Go types used by extracted records. Every function here is
// total: an unexpected storage class degrades to a zero value instead of
// failing the row.
package coerce

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// UnknownIdentifier is returned for identifier values that are neither
// integers nor text.
const UnknownIdentifier = "0"

// Identifier renders an id column value. Integers become their decimal form,
// text passes through unchanged, and every other storage class (NULL, REAL,
// BLOB) becomes UnknownIdentifier.
func Identifier(v any) string {
	switch x := v.(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case string:
		return x
	default:
		return UnknownIdentifier
	}
}

// Timestamp converts an integer column value to seconds since the epoch.
// Values of any other storage class, and integers outside the uint32 range,
// yield 0.
func Timestamp(v any) uint32 {
	var n int64
	switch x := v.(type) {
	case int64:
		n = x
	case int:
		n = int64(x)
	case int32:
		n = int64(x)
	default:
		return 0
	}
	if n < 0 || n > math.MaxUint32 {
		return 0
	}
	return uint32(n)
}

// Content decodes a payload column as text. Invalid UTF-8 sequences are
// replaced with U+FFFD; valid input is returned byte for byte. Non-text,
// non-blob values decode to the empty string.
func Content(v any) string {
	switch x := v.(type) {
	case []byte:
		return Lossy(x)
	case string:
		return Lossy([]byte(x))
	default:
		return ""
	}
}

// Lossy decodes b as UTF-8, substituting the replacement character for any
// invalid byte sequence.
func Lossy(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out, err := unicode.UTF8.NewDecoder().Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), string(utf8.RuneError))
	}
	return string(out)
}
