package extract

import (
	"os"
	"strings"
	"unicode/utf8"
)

// readText reads a plain-text or markdown file. Byte sequences that are not
// valid UTF-8 are replaced rather than failing the whole file.
func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	s := string(data)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	return s, nil
}
