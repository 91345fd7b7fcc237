package types

import (
	"strings"
	"unicode/utf8"
)

// ComputeLineColumn returns the 1-indexed line and column of a byte offset
// in content. Columns count runes, so a marker after multi-byte text reports
// the column an editor shows. Offsets past the end clamp to the end.
func ComputeLineColumn(content string, offset int) (line, column int) {
	if offset > len(content) {
		offset = len(content)
	}
	if offset < 0 {
		offset = 0
	}
	before := content[:offset]
	line = strings.Count(before, "\n") + 1
	lineStart := strings.LastIndexByte(before, '\n') + 1
	column = utf8.RuneCountInString(before[lineStart:]) + 1
	return line, column
}
