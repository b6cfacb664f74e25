package song

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decodeText turns a song file's bytes into UTF-8.
//
// Song sheets are exported by a Windows tool and show up as UTF-16 (with or without BOM), UTF-8
// (with or without BOM) or, rarely, Windows-1252.
func decodeText(b []byte) ([]byte, error) {
	var dec *encoding.Decoder
	switch {
	case bytes.HasPrefix(b, []byte{0xFF, 0xFE}), bytes.HasPrefix(b, []byte{0xFE, 0xFF}):
		dec = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
	case bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}):
		return b[3:], nil
	case looksUTF16(b, 1):
		dec = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	case looksUTF16(b, 0):
		dec = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
	case utf8.Valid(b):
		return b, nil
	default:
		dec = charmap.Windows1252.NewDecoder()
	}

	out, _, err := transform.Bytes(dec, b)
	if err != nil {
		return nil, fmt.Errorf("decode text: %w", err)
	}
	return bytes.TrimPrefix(out, []byte("\uFEFF")), nil
}

// looksUTF16 guesses BOM-less UTF-16 from the JSON's leading ASCII: every byte at position
// zeroAt (mod 2) in the first few code units is NUL.
func looksUTF16(b []byte, zeroAt int) bool {
	n := min(len(b)&^1, 16)
	if n < 2 {
		return false
	}
	for i := 0; i < n; i += 2 {
		if b[i+zeroAt] != 0 || b[i+1-zeroAt] == 0 {
			return false
		}
	}
	return true
}
