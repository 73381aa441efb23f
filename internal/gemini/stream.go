package gemini

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Stream yields text fragments from a streamGenerateContent response.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

func newStream(body io.ReadCloser) *Stream {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Stream{body: body, scanner: sc}
}

// NewStream wraps an SSE body. Exposed for callers that replay recorded streams.
func NewStream(body io.ReadCloser) *Stream {
	return newStream(body)
}

// Next returns the next non-empty text fragment, or io.EOF when the stream ends.
func (s *Stream) Next() (string, error) {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}

		var chunk Response
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return "", fmt.Errorf("decoding stream chunk: %w", err)
		}
		if text := chunk.Text(); text != "" {
			return text, nil
		}
	}
	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stream: %w", err)
	}
	return "", io.EOF
}

// Close releases the underlying connection.
func (s *Stream) Close() error {
	return s.body.Close()
}
