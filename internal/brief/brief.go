// Package brief extracts plain text from business plan documents attached
// to contact inquiries.
package brief

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrNotPDF is returned for attachments that are not PDF documents.
	ErrNotPDF = errors.New("attachment is not a PDF")
	// ErrTooLarge is returned for attachments above the reader's limit.
	ErrTooLarge = errors.New("attachment too large")
)

// DefaultMaxBytes bounds an attachment before any parsing happens.
const DefaultMaxBytes = 4 << 20

var pdfMagic = []byte("%PDF-")

// Reader turns PDF bytes into text.
type Reader struct {
	MaxBytes int
}

// NewReader returns a Reader with the default size limit.
func NewReader() *Reader {
	return &Reader{MaxBytes: DefaultMaxBytes}
}

// Text returns the document's text with whitespace runs collapsed.
func (r *Reader) Text(data []byte) (string, error) {
	if r.MaxBytes > 0 && len(data) > r.MaxBytes {
		return "", fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, len(data), r.MaxBytes)
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), pdfMagic) {
		return "", ErrNotPDF
	}

	text, err := extract(data)
	if err != nil {
		return "", fmt.Errorf("reading pdf: %w", err)
	}
	return strings.Join(strings.Fields(text), " "), nil
}

// extract recovers from parser panics on malformed documents.
func extract(data []byte) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("malformed document: %v", p)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := doc.GetPlainText()
	if err != nil {
		return "", err
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeAttachment accepts raw base64 or a data URL and returns the bytes.
func DecodeAttachment(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 || !strings.HasSuffix(s[:i], ";base64") {
			return nil, errors.New("attachment data URL must be base64 encoded")
		}
		s = s[i+1:]
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding attachment: %w", err)
	}
	return b, nil
}
