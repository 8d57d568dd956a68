// Package realtime speaks the wire protocol of the upstream realtime voice
// service: typed session events on the way out, a tagged-variant decoder for
// events on the way in, and the session that owns the persistent connection.
package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event type discriminators used on the wire.
const (
	TypeSessionUpdate    = "session.update"
	TypeInputAudioAppend = "input_audio_buffer.append"
	TypeInputAudioCommit = "input_audio_buffer.commit"
	TypeResponseCreate   = "response.create"

	TypeOutputItemAdded = "response.output_item.added"
	TypeAudioDelta      = "response.audio.delta"
	TypeAudioDone       = "response.audio.done"
	TypeResponseDone    = "response.done"
	TypeSpeechStarted   = "input_audio_buffer.speech_started"
	TypeSpeechStopped   = "input_audio_buffer.speech_stopped"
	TypeError           = "error"
)

// NewEventID returns a correlation identifier of the form
// <unix_ms>_<8 random chars>. Identifiers are unique for the lifetime of the
// process and are never reused.
func NewEventID() string {
	return fmt.Sprintf("%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// TurnDetection selects the upstream voice-activity policy. A nil value in
// SessionConfig disables server-side turn detection entirely.
type TurnDetection struct {
	Type string `json:"type"`
}

// SessionConfig is the session.update payload sent during the handshake.
type SessionConfig struct {
	Modalities        []string       `json:"modalities"`
	Instructions      string         `json:"instructions"`
	Voice             string         `json:"voice"`
	InputAudioFormat  string         `json:"input_audio_format"`
	OutputAudioFormat string         `json:"output_audio_format"`
	TurnDetection     *TurnDetection `json:"turn_detection"`
	Temperature       float64        `json:"temperature,omitempty"`
}

// ResponseConfig is the response.create payload.
type ResponseConfig struct {
	Modalities        []string `json:"modalities"`
	Instructions      string   `json:"instructions,omitempty"`
	Voice             string   `json:"voice,omitempty"`
	OutputAudioFormat string   `json:"output_audio_format,omitempty"`
	Temperature       float64  `json:"temperature,omitempty"`
	MaxOutputTokens   int      `json:"max_output_tokens,omitempty"`
}

// SessionUpdateEvent configures the upstream session.
type SessionUpdateEvent struct {
	EventID string        `json:"event_id"`
	Type    string        `json:"type"`
	Session SessionConfig `json:"session"`
}

// AppendEvent carries one transport-encoded audio chunk upstream.
type AppendEvent struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Audio   string `json:"audio"`
}

// CommitEvent marks the buffered input audio as a complete utterance.
type CommitEvent struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
}

// ResponseCreateEvent asks the upstream service to generate a response.
type ResponseCreateEvent struct {
	EventID  string         `json:"event_id"`
	Type     string         `json:"type"`
	Response ResponseConfig `json:"response"`
}

// ServerEvent is the tagged variant over everything the upstream service can
// send. Dispatch resolves the concrete type once, at decode time.
type ServerEvent interface{ serverEvent() }

// TextDelta carries an increment of assistant text.
type TextDelta struct{ Text string }

// AudioDelta carries one transport-encoded chunk of synthesized audio.
type AudioDelta struct{ Audio string }

// AudioDone signals that no further audio deltas will arrive.
type AudioDone struct{}

// ResponseDone signals the end of the response. Text holds the full
// transcript when the upstream includes one.
type ResponseDone struct{ Text string }

// SpeechStarted is the upstream VAD reporting voice onset.
type SpeechStarted struct{}

// SpeechStopped is the upstream VAD reporting voice offset.
type SpeechStopped struct{}

// ServerError is a protocol-level error reported by the upstream service.
type ServerError struct{ Message string }

func (TextDelta) serverEvent()     {}
func (AudioDelta) serverEvent()    {}
func (AudioDone) serverEvent()     {}
func (ResponseDone) serverEvent()  {}
func (SpeechStarted) serverEvent() {}
func (SpeechStopped) serverEvent() {}
func (ServerError) serverEvent()   {}

// UnknownEventTypeError reports an unrecognized discriminator. Callers log
// and drop the event; it must never terminate the dispatch loop.
type UnknownEventTypeError struct {
	Type string
}

func (e *UnknownEventTypeError) Error() string {
	return fmt.Sprintf("unknown event type %q", e.Type)
}

type serverEnvelope struct {
	Type  string `json:"type"`
	Delta string `json:"delta"`
	Item  struct {
		Content []struct {
			Type       string `json:"type"`
			Text       string `json:"text"`
			Transcript string `json:"transcript"`
		} `json:"content"`
	} `json:"item"`
	Response struct {
		Output []struct {
			Content []struct {
				Type       string `json:"type"`
				Text       string `json:"text"`
				Transcript string `json:"transcript"`
			} `json:"content"`
		} `json:"output"`
	} `json:"response"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ParseServerEvent decodes one inbound message into its tagged variant.
func ParseServerEvent(data []byte) (ServerEvent, error) {
	var env serverEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed server event: %w", err)
	}
	switch env.Type {
	case TypeOutputItemAdded:
		var b strings.Builder
		for _, c := range env.Item.Content {
			if c.Type == "text" {
				b.WriteString(c.Text)
			}
		}
		return TextDelta{Text: b.String()}, nil
	case TypeAudioDelta:
		return AudioDelta{Audio: env.Delta}, nil
	case TypeAudioDone:
		return AudioDone{}, nil
	case TypeResponseDone:
		var b strings.Builder
		for _, out := range env.Response.Output {
			for _, c := range out.Content {
				switch {
				case c.Text != "":
					b.WriteString(c.Text)
				case c.Transcript != "":
					b.WriteString(c.Transcript)
				}
			}
		}
		return ResponseDone{Text: b.String()}, nil
	case TypeSpeechStarted:
		return SpeechStarted{}, nil
	case TypeSpeechStopped:
		return SpeechStopped{}, nil
	case TypeError:
		return ServerError{Message: env.Error.Message}, nil
	default:
		return nil, &UnknownEventTypeError{Type: env.Type}
	}
}
