// Package audio converts between float samples and the 16-bit PCM the live
// endpoint speaks, and schedules playback of received fragments.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

const (
	// InputSampleRate is the capture rate sent upstream.
	InputSampleRate = 16000
	// OutputSampleRate is the rate of audio received from the model.
	OutputSampleRate = 24000
	// FrameSize is the number of samples per captured frame.
	FrameSize = 4096
	// InputMIME labels captured frames.
	InputMIME = "audio/pcm;rate=16000"
	// OutputMIME labels model audio.
	OutputMIME = "audio/pcm;rate=24000"
)

// EncodePCM16 converts samples in [-1, 1] to little-endian signed 16-bit PCM.
// Values outside the range are clamped.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		v := math.Round(float64(s) * 32768)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(v)))
	}
	return out
}

// DecodePCM16 converts little-endian signed 16-bit PCM to samples in [-1, 1).
// A trailing odd byte is ignored.
func DecodePCM16(data []byte) []float32 {
	out := make([]float32, len(data)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(data[2*i:]))) / 32768
	}
	return out
}

// EncodeFrame renders captured samples as base64 PCM16 for upstream.
func EncodeFrame(samples []float32) string {
	return base64.StdEncoding.EncodeToString(EncodePCM16(samples))
}

// DecodeFragment decodes a base64 PCM16 fragment received from the model.
func DecodeFragment(b64 string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("decoding audio fragment: %w", err)
	}
	return DecodePCM16(raw), nil
}

// Duration is the playback length of n samples at rate.
func Duration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(rate)
}
