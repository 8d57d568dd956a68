// Package audio implements the PCM frame codec shared by the client relay
// and the upstream voice session: transport encoding, frame validation, and
// the amplitude-based silence heuristic used for end-of-utterance detection.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

// Linear PCM16 mono throughout. Client microphone audio arrives at 16 kHz;
// synthesized audio from the realtime service is 24 kHz.
const (
	InputSampleRate  = 16000
	OutputSampleRate = 24000
)

// DecodeError reports a malformed transport frame. Frames that fail to decode
// are dropped by callers; they never abort a stream.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("audio decode: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("audio decode: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode converts raw PCM bytes to the transport representation.
func Encode(pcm []byte) string {
	return base64.StdEncoding.EncodeToString(pcm)
}

// Decode converts a transport frame back to raw PCM bytes. It fails with a
// DecodeError on non-decodable text and on odd byte counts, which cannot be
// valid 16-bit sample data.
func Decode(frame string) ([]byte, error) {
	pcm, err := base64.StdEncoding.DecodeString(frame)
	if err != nil {
		return nil, &DecodeError{Reason: "invalid base64", Err: err}
	}
	if len(pcm)%2 != 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("odd byte length %d for 16-bit samples", len(pcm))}
	}
	return pcm, nil
}

// MeanAmplitude returns the mean absolute sample amplitude of a PCM16LE
// buffer. Empty buffers report zero.
func MeanAmplitude(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i+1 < len(pcm); i += 2 {
		s := int16(binary.LittleEndian.Uint16(pcm[i : i+2]))
		sum += math.Abs(float64(s))
	}
	return sum / float64(n)
}

// IsSilence reports whether the chunk's mean absolute amplitude is strictly
// below threshold. This is a heuristic end-of-utterance signal, not a hard
// guarantee: noisy input produces false positives and negatives, which is why
// the threshold is caller-supplied rather than baked in. A chunk exactly at
// the threshold is classified as not silent.
func IsSilence(pcm []byte, threshold float64) bool {
	return MeanAmplitude(pcm) < threshold
}
