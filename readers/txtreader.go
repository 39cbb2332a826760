package readers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TxtFileReader reads documents whose text was already extracted.
type TxtFileReader struct{}

func (r *TxtFileReader) CanRead(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".txt" || ext == ".md"
}

func (r *TxtFileReader) ReadText(path string) (string, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading text file: %w", err)
	}

	return string(buf), nil
}
