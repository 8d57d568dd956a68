package relay

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Swastik3/HackHarvard2024/internal/audio"
	"github.com/Swastik3/HackHarvard2024/internal/realtime"
)

// Mode selects the session topology between client and upstream.
type Mode int

const (
	// ModeUtterance opens a fresh upstream session per utterance and
	// releases it after the response.
	ModeUtterance Mode = iota
	// ModeContinuous keeps one upstream session open for the whole
	// conversation and lets the upstream service detect turn boundaries.
	ModeContinuous
)

// ParseMode maps a configuration string to a Mode, defaulting to utterance.
func ParseMode(s string) Mode {
	if s == "continuous" {
		return ModeContinuous
	}
	return ModeUtterance
}

// OrchState is the per-conversation state machine position.
type OrchState int

const (
	StateListening OrchState = iota
	StateForwarding
	StateAwaitingUpstream
	StateRelaying
)

func (s OrchState) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateForwarding:
		return "forwarding"
	case StateAwaitingUpstream:
		return "awaiting_upstream"
	case StateRelaying:
		return "relaying"
	default:
		return "unknown"
	}
}

// Upstream is the slice of a realtime session the orchestrator drives.
type Upstream interface {
	EnqueueOutbound(pcm []byte)
	Commit() error
	RequestResponse() error
	Close() error
}

// DialFunc opens an upstream session wired to the given handlers.
type DialFunc func(h realtime.Handlers) (Upstream, error)

// Sink is where the orchestrator delivers output for one client.
type Sink interface {
	SendAudio(frame string) error
	SendTranscript(text string) error
	SendDone() error
	SendError(msg string) error
}

// Turn is one completed exchange, kept for persistence hooks.
type Turn struct {
	UserAudio [][]byte
	BotAudio  [][]byte
	BotText   string
}

// Orchestrator runs one conversation: it accumulates client audio, decides
// when an utterance is complete, forwards it upstream, and relays the
// response back through the sink. Each client connection gets its own
// orchestrator; nothing here is shared across conversations.
type Orchestrator struct {
	mode   Mode
	buf    *InboundBuffer
	dial   DialFunc
	sink   Sink
	log    *zap.Logger
	onTurn func(Turn)

	mu       sync.Mutex
	state    OrchState
	upstream Upstream
	pending  [][]byte
	queued   bool
}

// NewOrchestrator assembles an orchestrator for one conversation. onTurn may
// be nil; when set it is invoked after each relayed turn.
func NewOrchestrator(mode Mode, threshold float64, dial DialFunc, sink Sink, onTurn func(Turn), logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		mode:   mode,
		buf:    NewInboundBuffer(threshold),
		dial:   dial,
		sink:   sink,
		log:    logger,
		onTurn: onTurn,
		state:  StateListening,
	}
}

// State returns the conversation's current position.
func (o *Orchestrator) State() OrchState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// HandleFrame accepts one transport-encoded audio frame from the client. A
// frame that fails to decode is rejected without disturbing the buffered
// utterance or the upstream session.
func (o *Orchestrator) HandleFrame(frame string) error {
	pcm, err := audio.Decode(frame)
	if err != nil {
		o.log.Warn("rejecting client audio frame", zap.Error(err))
		_ = o.sink.SendError("invalid audio frame")
		return err
	}

	if o.mode == ModeContinuous {
		return o.forwardContinuous(pcm)
	}

	if done := o.buf.Push(pcm); !done {
		return nil
	}
	return o.completeUtterance()
}

// forwardContinuous streams the chunk straight upstream, opening the shared
// session on first use.
func (o *Orchestrator) forwardContinuous(pcm []byte) error {
	o.mu.Lock()
	if o.upstream == nil {
		up, err := o.dial(realtime.Handlers{
			OnResponse: o.handleResponse,
			OnError:    o.handleUpstreamError,
		})
		if err != nil {
			o.mu.Unlock()
			_ = o.sink.SendError("voice service unavailable")
			return err
		}
		o.upstream = up
	}
	up := o.upstream
	o.state = StateForwarding
	o.pending = append(o.pending, pcm)
	o.mu.Unlock()

	up.EnqueueOutbound(pcm)
	return nil
}

// completeUtterance forwards the buffered utterance through a fresh upstream
// session. Chunks are enqueued in arrival order before the commit, so the
// upstream service sees the utterance exactly as the client spoke it. If a
// turn is already in flight the utterance stays in the buffer and is
// completed once that turn resolves; at most one upstream session exists
// per conversation at any moment.
func (o *Orchestrator) completeUtterance() error {
	o.mu.Lock()
	if o.state != StateListening {
		o.queued = true
		o.mu.Unlock()
		return nil
	}
	o.state = StateForwarding
	o.mu.Unlock()

	chunks := o.buf.DrainUtterance()
	if len(chunks) == 0 {
		o.resetTurn()
		return nil
	}

	o.mu.Lock()
	o.pending = chunks
	o.mu.Unlock()

	up, err := o.dial(realtime.Handlers{
		OnResponse: o.handleResponse,
		OnError:    o.handleUpstreamError,
	})
	if err != nil {
		o.resetTurn()
		_ = o.sink.SendError("voice service unavailable")
		return err
	}

	o.mu.Lock()
	o.upstream = up
	o.mu.Unlock()

	for _, pcm := range chunks {
		up.EnqueueOutbound(pcm)
	}
	if err := up.Commit(); err != nil {
		o.failTurn()
		return err
	}
	if err := up.RequestResponse(); err != nil {
		o.failTurn()
		return err
	}

	o.mu.Lock()
	o.state = StateAwaitingUpstream
	o.mu.Unlock()
	return nil
}

// handleResponse relays one finalized upstream response to the client, audio
// first in delta order, then the transcript, then the completion marker.
func (o *Orchestrator) handleResponse(resp *realtime.Response) {
	o.mu.Lock()
	o.state = StateRelaying
	userAudio := o.pending
	o.pending = nil
	o.mu.Unlock()

	for _, pcm := range resp.Audio {
		if err := o.sink.SendAudio(audio.Encode(pcm)); err != nil {
			o.log.Warn("client send failed mid-response", zap.Error(err))
			break
		}
	}
	if resp.Text != "" {
		_ = o.sink.SendTranscript(resp.Text)
	}
	_ = o.sink.SendDone()

	if o.onTurn != nil {
		o.onTurn(Turn{UserAudio: userAudio, BotAudio: resp.Audio, BotText: resp.Text})
	}

	o.mu.Lock()
	if o.mode == ModeUtterance {
		// Per-utterance sessions close themselves after the response.
		o.upstream = nil
	}
	o.state = StateListening
	queued := o.queued
	o.queued = false
	o.mu.Unlock()

	if queued {
		if err := o.completeUtterance(); err != nil {
			o.log.Warn("held utterance failed", zap.Error(err))
		}
	}
}

// handleUpstreamError abandons the current turn and returns to listening so
// the next utterance starts clean.
func (o *Orchestrator) handleUpstreamError(err error) {
	o.log.Error("upstream turn failed", zap.Error(err))
	_ = o.sink.SendError(fmt.Sprintf("voice turn failed: %v", err))
	o.failTurn()
}

func (o *Orchestrator) failTurn() {
	o.mu.Lock()
	up := o.upstream
	o.upstream = nil
	o.pending = nil
	o.queued = false
	o.state = StateListening
	o.mu.Unlock()
	if up != nil {
		_ = up.Close()
	}
	o.buf.Clear()
}

func (o *Orchestrator) resetTurn() {
	o.mu.Lock()
	o.pending = nil
	o.queued = false
	o.state = StateListening
	o.mu.Unlock()
}

// Close ends the conversation, releasing any open upstream session.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	up := o.upstream
	o.upstream = nil
	o.queued = false
	o.state = StateListening
	o.mu.Unlock()
	if up != nil {
		_ = up.Close()
	}
	o.buf.Clear()
}
