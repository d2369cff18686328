package keyhouse

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"
)

// CommitInfo is one entry of the commits listing endpoint.
type CommitInfo struct {
	SHA string `json:"sha"`
}

// DirEntry is one entry of a directory listing under the contents endpoint.
type DirEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
}

// FileContent is a ref-qualified file read from the contents endpoint.
// Content is base64 with embedded newlines, as the API transports it.
type FileContent struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// Decode strips embedded newlines from the base64 payload and decodes it to
// text. A payload that is not valid base64 or not valid UTF-8 is an error;
// such a record cannot be trusted.
func (f *FileContent) Decode() (string, error) {
	clean := strings.ReplaceAll(f.Content, "\n", "")
	raw, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		return "", fmt.Errorf("decode content of %s: %w", f.Path, err)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("content of %s is not valid utf-8", f.Path)
	}
	return string(raw), nil
}
