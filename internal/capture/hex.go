package capture

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// ParseHex decodes a hex dump. Whitespace is ignored, '#' starts a comment
// running to the end of the line, and each token may carry a 0x prefix.
func ParseHex(text []byte) ([]byte, error) {
	var digits strings.Builder

	scanner := bufio.NewScanner(bytes.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), len(text)+1)
	line := 0
	for scanner.Scan() {
		line++
		s := scanner.Text()
		if i := strings.IndexByte(s, '#'); i >= 0 {
			s = s[:i]
		}
		for _, tok := range strings.Fields(s) {
			tok = strings.TrimPrefix(strings.TrimPrefix(tok, "0x"), "0X")
			for _, r := range tok {
				if !isHexDigit(r) {
					return nil, fmt.Errorf("line %d: invalid hex digit %q", line, r)
				}
			}
			digits.WriteString(tok)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read hex dump: %w", err)
	}

	if digits.Len()%2 != 0 {
		return nil, fmt.Errorf("odd number of hex digits (%d)", digits.Len())
	}
	out, err := hex.DecodeString(digits.String())
	if err != nil {
		return nil, fmt.Errorf("failed to decode hex dump: %w", err)
	}
	return out, nil
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
