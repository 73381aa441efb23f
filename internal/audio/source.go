package audio

import (
	"context"
	"encoding/binary"
	"io"
)

// ReaderSource yields fixed-size frames of raw little-endian PCM16 read from r.
type ReaderSource struct {
	r    io.Reader
	size int
}

// NewReaderSource reads frames of FrameSize samples from r.
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{r: r, size: FrameSize}
}

// ReadFrame blocks until a full frame is read. A short final frame is
// returned as is; io.EOF follows it.
func (s *ReaderSource) ReadFrame(ctx context.Context) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, 2*s.size)
	n, err := io.ReadFull(s.r, buf)
	if n >= 2 {
		return DecodePCM16(buf[:n-n%2]), nil
	}
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return nil, err
}

// Close closes the underlying reader when it supports closing.
func (s *ReaderSource) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// WritePCM16 writes samples to w as raw little-endian PCM16.
func WritePCM16(w io.Writer, samples []float32) error {
	return binary.Write(w, binary.LittleEndian, EncodePCM16(samples))
}
