package readers

import (
	"fmt"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv/v2"
)

// UniversalFileReader extracts text from office and pdf documents with
// docconv and reads plain text directly.
type UniversalFileReader struct {
	txt TxtFileReader
}

func (r *UniversalFileReader) CanRead(path string) bool {
	if r.txt.CanRead(path) {
		return true
	}

	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".docx" || ext == ".odt" || ext == ".pdf" || ext == ".xml"
}

func (r *UniversalFileReader) ReadText(path string) (string, error) {
	if r.txt.CanRead(path) {
		return r.txt.ReadText(path)
	}

	res, err := docconv.ConvertPath(path)
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}

	return res.Body, nil
}
