package rmilter

import (
	"strings"
	"unicode/utf8"
)

// lossyString decodes data as UTF-8 text, replacing invalid sequences with
// the replacement character. It never fails.
func lossyString(data []byte) string {
	return strings.ToValidUTF8(string(data), string(utf8.RuneError))
}

// appendCString appends a C style string to the buffer and returns it (like
// append does).
func appendCString(dest []byte, s string) []byte {
	dest = append(dest, s...)
	return append(dest, 0x00)
}
