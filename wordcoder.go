package rmilter

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime/quotedprintable"
	"regexp"
	"strings"

	"github.com/emersion/go-message/charset"
)

// encodedWord matches one RFC 2047 encoded word: =?charset?encoding?payload?=
var encodedWord = regexp.MustCompile(`=\?([^?]+)\?([^?]+)\?([^?]*)\?=`)

// DecodeHeaderValue resolves RFC 2047 encoded words embedded in a header
// value. Spans are matched left to right, non-overlapping; text around them
// is copied verbatim. A span is only replaced when every step succeeds —
// charset label resolution, transfer decoding and charset decoding — so a
// span that cannot be confidently decoded passes through unchanged. The
// function never fails.
func DecodeHeaderValue(value string) string {
	matches := encodedWord.FindAllStringSubmatchIndex(value, -1)
	if matches == nil {
		return value
	}

	var b strings.Builder
	b.Grow(len(value))
	last := 0
	for _, m := range matches {
		b.WriteString(value[last:m[0]])
		if decoded, ok := decodeWord(value[m[2]:m[3]], value[m[4]:m[5]], value[m[6]:m[7]]); ok {
			b.WriteString(decoded)
		} else {
			b.WriteString(value[m[0]:m[1]])
		}
		last = m[1]
	}
	b.WriteString(value[last:])
	return b.String()
}

// decodeWord decodes a single encoded word, reporting ok=false as soon as
// any step fails.
func decodeWord(label, encoding, payload string) (string, bool) {
	var raw []byte
	switch encoding {
	case "b", "B":
		decoded, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", false
		}
		raw = decoded
	case "q", "Q":
		// RFC 2047 uses "_" for space in Q encoding.
		qp := quotedprintable.NewReader(strings.NewReader(strings.ReplaceAll(payload, "_", " ")))
		decoded, err := io.ReadAll(qp)
		if err != nil {
			return "", false
		}
		raw = decoded
	default:
		return "", false
	}

	r, err := charset.Reader(label, bytes.NewReader(raw))
	if err != nil {
		return "", false
	}
	text, err := io.ReadAll(r)
	if err != nil {
		return "", false
	}
	return string(text), true
}
