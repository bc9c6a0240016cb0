// Package position converts between LSP's 0-based line/UTF-16-code-unit
// Position and byte offsets into UTF-8 document text, per §3's exactness
// requirement ("mis-conversion corrupts prompts").
package position

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/lsp-ai-go/lsp-ai-go/internal/lsp"
)

// ToOffset converts an LSP Position to a byte offset into content.
// Positions past the end of a line clamp to the line's byte end rather
// than erroring (§4.1: "position out of range returns Range — treat as an
// editor race").
func ToOffset(content []byte, pos lsp.Position) (int, error) {
	if pos.Line < 0 || pos.Character < 0 {
		return 0, fmt.Errorf("invalid position: %+v", pos)
	}

	currentLine := 0
	byteOffset := 0
	for {
		nl := bytes.IndexByte(content[byteOffset:], '\n')
		lineEnd := len(content)
		if nl >= 0 {
			lineEnd = byteOffset + nl
		}
		if currentLine == pos.Line {
			// a trailing '\r' belongs to the line terminator, not the line
			line := bytes.TrimSuffix(content[byteOffset:lineEnd], []byte("\r"))
			return byteOffset + utf16OffsetToByteOffset(line, pos.Character), nil
		}
		if nl < 0 {
			break
		}
		byteOffset = lineEnd + 1 // skip the '\n'
		currentLine++
	}
	// Position.Line beyond the last line: clamp to end of content.
	return len(content), nil
}

// utf16RuneLen reports the number of UTF-16 code units required to encode
// r, or -1 if r cannot be encoded (mirrors unicode/utf16.RuneLen, which is
// unavailable on this module's Go version).
func utf16RuneLen(r rune) int {
	const (
		surr1    = 0xd800
		surr3    = 0xe000
		surrSelf = 0x10000
		maxRune  = '\U0010FFFF'
	)
	switch {
	case 0 <= r && r < surr1, surr3 <= r && r < surrSelf:
		return 1
	case surrSelf <= r && r <= maxRune:
		return 2
	default:
		return -1
	}
}

// utf16OffsetToByteOffset finds the byte offset within line corresponding
// to a UTF-16 code-unit offset, clamping to the line's byte length if the
// requested offset exceeds the line's UTF-16 length.
func utf16OffsetToByteOffset(line []byte, utf16Offset int) int {
	units := 0
	byteOff := 0
	for byteOff < len(line) {
		r, size := utf8.DecodeRune(line[byteOff:])
		ru16 := utf16RuneLen(r)
		if ru16 < 0 {
			ru16 = 1
		}
		if units+ru16 > utf16Offset {
			break
		}
		units += ru16
		byteOff += size
	}
	return byteOff
}

// ToPosition converts a byte offset into content back to an LSP Position.
func ToPosition(content []byte, offset int) lsp.Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(content) {
		offset = len(content)
	}
	line := 0
	lineStart := 0
	for i := 0; i < offset; i++ {
		if content[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}
	units := 0
	byteOff := lineStart
	for byteOff < offset {
		r, size := utf8.DecodeRune(content[byteOff:])
		ru16 := utf16RuneLen(r)
		if ru16 < 0 {
			ru16 = 1
		}
		units += ru16
		byteOff += size
	}
	return lsp.Position{Line: line, Character: units}
}
