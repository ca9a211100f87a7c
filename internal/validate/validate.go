// Package validate checks input files before the pipeline touches
// them: size cap, content sniffing, and agreement between the file
// extension and what the bytes actually are.
package validate

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// MaxFileSize caps input documents at 50 MiB.
const MaxFileSize = 50 << 20

// Validation failure codes.
const (
	CodeNotFound          = "file_not_found"
	CodeEmpty             = "empty_file"
	CodeTooLarge          = "file_too_large"
	CodeUnsupportedType   = "unsupported_type"
	CodeExtensionMismatch = "extension_mismatch"
)

// ValidationError reports why an input file was refused.
type ValidationError struct {
	Code   string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// extMIME maps accepted extensions to the MIME type the content must
// sniff as.
var extMIME = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".txt":  "text/plain",
}

// FileInfo is the result of a successful validation.
type FileInfo struct {
	Path string
	MIME string
	Size int64
}

// File validates one input document and returns its sniffed MIME type.
func File(path string) (*FileInfo, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, &ValidationError{Code: CodeNotFound, Detail: path}
	}
	if st.Size() == 0 {
		return nil, &ValidationError{Code: CodeEmpty, Detail: path}
	}
	if st.Size() > MaxFileSize {
		return nil, &ValidationError{
			Code:   CodeTooLarge,
			Detail: fmt.Sprintf("%d bytes exceeds limit of %d", st.Size(), MaxFileSize),
		}
	}

	head := make([]byte, 512)
	f, err := os.Open(path)
	if err != nil {
		return nil, &ValidationError{Code: CodeNotFound, Detail: path}
	}
	n, _ := f.Read(head)
	f.Close()
	head = head[:n]

	mime := sniff(head)
	if mime == "" {
		return nil, &ValidationError{
			Code:   CodeUnsupportedType,
			Detail: fmt.Sprintf("unrecognized content in %s", filepath.Base(path)),
		}
	}

	ext := strings.ToLower(filepath.Ext(path))
	want, ok := extMIME[ext]
	if !ok {
		return nil, &ValidationError{
			Code:   CodeUnsupportedType,
			Detail: fmt.Sprintf("unsupported extension %q", ext),
		}
	}
	if want != mime {
		return nil, &ValidationError{
			Code:   CodeExtensionMismatch,
			Detail: fmt.Sprintf("extension %q does not match content type %s", ext, mime),
		}
	}

	return &FileInfo{Path: path, MIME: mime, Size: st.Size()}, nil
}

// sniff identifies the content from leading magic bytes. Text is the
// fallback for valid UTF-8 without control noise.
func sniff(head []byte) string {
	switch {
	case bytes.HasPrefix(head, []byte("%PDF-")):
		return "application/pdf"
	case bytes.HasPrefix(head, []byte("\x89PNG\r\n\x1a\n")):
		return "image/png"
	case bytes.HasPrefix(head, []byte("\xff\xd8\xff")):
		return "image/jpeg"
	case bytes.HasPrefix(head, []byte("II*\x00")), bytes.HasPrefix(head, []byte("MM\x00*")):
		return "image/tiff"
	case looksLikeText(head):
		return "text/plain"
	default:
		return ""
	}
}

func looksLikeText(head []byte) bool {
	if !utf8.Valid(head) {
		// The sample may end mid-rune; tolerate a truncated tail.
		trimmed := head
		for i := 0; i < 3 && len(trimmed) > 0 && !utf8.Valid(trimmed); i++ {
			trimmed = trimmed[:len(trimmed)-1]
		}
		if !utf8.Valid(trimmed) {
			return false
		}
		head = trimmed
	}
	for _, b := range head {
		if b < 0x09 || (b > 0x0d && b < 0x20) {
			return false
		}
	}
	return true
}
