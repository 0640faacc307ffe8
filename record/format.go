package record

import (
	"bytes"
	"time"
	"unicode/utf8"
)

// Low-level JSON append helpers. Records are encoded by hand instead of
// through encoding/json so the hot path stays allocation-free; the escape
// table approach follows the usual zerolog-family layout.

const _hex = "0123456789abcdef"

var _noEscapeTable = [256]bool{}

func init() {
	for i := 0; i <= 0x7e; i++ {
		_noEscapeTable[i] = i >= 0x20 && i != '\\' && i != '"'
	}
}

// appendBeginMarker opens a JSON object in the buffer.
func appendBeginMarker(buf *bytes.Buffer) {
	buf.WriteByte('{')
}

// appendEndMarker closes a JSON object and terminates the line.
func appendEndMarker(buf *bytes.Buffer) {
	buf.WriteByte('}')
	buf.WriteByte('\n')
}

// appendKey writes a comma separator if needed, then the escaped key and
// a colon.
func appendKey(buf *bytes.Buffer, key string) {
	if buf.Len() >= 1 && buf.Bytes()[buf.Len()-1] != '{' {
		buf.WriteByte(',')
	}
	appendString(buf, key)
	buf.WriteByte(':')
}

// appendTime writes the time as "YYYY-MM-DD HH:MM:SS.mmm", quoted.
func appendTime(buf *bytes.Buffer, t time.Time) {
	buf.WriteByte('"')
	buf.Write(t.AppendFormat(nil, "2006-01-02 15:04:05.000"))
	buf.WriteByte('"')
}

// appendString encodes s as a JSON string and appends it to buf.
// The fast path appends the whole string when no byte needs escaping.
func appendString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if !_noEscapeTable[s[i]] {
			appendStringComplex(buf, s)
			buf.WriteByte('"')
			return
		}
	}
	buf.WriteString(s)
	buf.WriteByte('"')
}

// appendStringComplex handles strings containing bytes that need JSON
// escaping or invalid UTF-8 sequences.
func appendStringComplex(buf *bytes.Buffer, s string) {
	start := 0
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b >= utf8.RuneSelf {
			r, size := utf8.DecodeRuneInString(s[i:])
			if r == utf8.RuneError && size == 1 {
				if start < i {
					buf.WriteString(s[start:i])
				}
				buf.WriteString(`\ufffd`)
				i += size - 1
				start = i + 1
				continue
			}
			i += size - 1
			continue
		}

		if _noEscapeTable[b] {
			continue
		}

		if start < i {
			buf.WriteString(s[start:i])
		}

		switch b {
		case '"', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(b)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			buf.WriteString(`\u00`)
			buf.WriteByte(_hex[b>>4])
			buf.WriteByte(_hex[b&0xF])
		}
		start = i + 1
	}

	if start < len(s) {
		buf.WriteString(s[start:])
	}
}
