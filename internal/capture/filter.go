package capture

import (
	"strings"
	"unicode/utf8"
)

// Filter decides which decoded lines belong to the capture.
type Filter struct {
	// Header is the literal header row; lines starting with it are kept.
	Header string
}

// Accept reports whether line is the header or starts with a decimal digit.
// The heuristic deliberately admits any digit-led line, including partial
// rows cut off by the deadline.
func (f Filter) Accept(line string) bool {
	if line == "" {
		return false
	}
	if f.Header != "" && strings.HasPrefix(line, f.Header) {
		return true
	}
	return line[0] >= '0' && line[0] <= '9'
}

// decodeLine replaces invalid UTF-8 with U+FFFD and trims surrounding
// whitespace, including the CR of CRLF line endings.
func decodeLine(raw []byte) string {
	line := string(raw)
	if !utf8.ValidString(line) {
		line = strings.ToValidUTF8(line, "\uFFFD")
	}
	return strings.TrimSpace(line)
}
