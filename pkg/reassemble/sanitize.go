package reassemble

import (
	"strings"
	"unicode/utf16"
)

const hexDigits = "0123456789abcdef"

var structuralWhitespace = strings.NewReplacer("\n", "", "\t", "")

// Sanitize deletes newlines and tabs from raw, then escapes everything that
// is not printable ASCII. Backslashes are escaped too, so escape sequences
// already present in the fragments end up doubled.
func Sanitize(raw string) string {
	return escapeControls(structuralWhitespace.Replace(raw))
}

func escapeControls(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == '\r':
			b.WriteString(`\r`)
		case r >= 0x20 && r < 0x7f:
			b.WriteByte(byte(r))
		default:
			writeRuneEscape(&b, r)
		}
	}
	return b.String()
}

// writeRuneEscape writes r as \uXXXX, or as a surrogate pair outside the BMP.
func writeRuneEscape(b *strings.Builder, r rune) {
	if r > 0xffff {
		hi, lo := utf16.EncodeRune(r)
		writeUnicodeEscape(b, hi)
		writeUnicodeEscape(b, lo)
		return
	}
	writeUnicodeEscape(b, r)
}

func writeUnicodeEscape(b *strings.Builder, r rune) {
	b.WriteString(`\u`)
	b.WriteByte(hexDigits[r>>12&0xf])
	b.WriteByte(hexDigits[r>>8&0xf])
	b.WriteByte(hexDigits[r>>4&0xf])
	b.WriteByte(hexDigits[r&0xf])
}
