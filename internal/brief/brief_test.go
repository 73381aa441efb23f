package brief

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestTextRejectsNonPDF(t *testing.T) {
	r := NewReader()
	_, err := r.Text([]byte("just a business plan in plain text"))
	if !errors.Is(err, ErrNotPDF) {
		t.Fatalf("Text() error = %v, want ErrNotPDF", err)
	}
}

func TestTextRejectsLargeAttachments(t *testing.T) {
	r := &Reader{MaxBytes: 8}
	_, err := r.Text([]byte("%PDF-1.4 plus more bytes"))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Text() error = %v, want ErrTooLarge", err)
	}
}

func TestTextReportsMalformedPDF(t *testing.T) {
	r := NewReader()
	_, err := r.Text([]byte("%PDF-1.4\nthis is not really a pdf"))
	if err == nil {
		t.Fatal("Text() on malformed PDF should fail")
	}
	if errors.Is(err, ErrNotPDF) {
		t.Fatalf("malformed PDF should not be reported as non-PDF: %v", err)
	}
	if !strings.Contains(err.Error(), "reading pdf") {
		t.Errorf("error %q should mention reading pdf", err)
	}
}

func TestDecodeAttachment(t *testing.T) {
	payload := []byte("%PDF-1.7")
	raw := base64.StdEncoding.EncodeToString(payload)

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "raw base64", in: raw, want: string(payload)},
		{name: "data url", in: "data:application/pdf;base64," + raw, want: string(payload)},
		{name: "empty", in: "  ", want: ""},
		{name: "data url without base64", in: "data:application/pdf," + raw, wantErr: true},
		{name: "bad base64", in: "%%%", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeAttachment(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeAttachment() error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("DecodeAttachment() = %q, want %q", got, tt.want)
			}
		})
	}
}
