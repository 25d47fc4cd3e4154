package extract

import (
	"strings"
	"unicode/utf8"
)

// extractPlain returns the content as a string. Invalid UTF-8 sequences are
// replaced rather than rejected so mixed-encoding notes still ingest.
func extractPlain(content []byte) (string, error) {
	text := string(content)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return text, nil
}
