package realtime

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Swastik3/HackHarvard2024/internal/audio"
)

// State is the lifecycle position of an upstream voice session.
type State int

const (
	StateIdle State = iota
	StateConfiguring
	StateStreaming
	StateAwaitingResponse
	StateResponding
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfiguring:
		return "configuring"
	case StateStreaming:
		return "streaming"
	case StateAwaitingResponse:
		return "awaiting_response"
	case StateResponding:
		return "responding"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	// DefaultDrainInterval bounds how often the outbound queue is polled.
	// Shorter intervals cut forwarding latency at the cost of CPU; the value
	// is configurable for exactly that trade-off.
	DefaultDrainInterval = 100 * time.Millisecond

	defaultHandshakeTimeout = 10 * time.Second
	outboundQueueSize       = 1024
)

// Config describes one upstream voice session.
type Config struct {
	URL          string
	APIKey       string
	Instructions string
	Voice        string

	// ServerVAD enables upstream turn detection (continuous mode). When
	// false the caller performs its own end-of-utterance detection and
	// drives commit/response explicitly.
	ServerVAD bool

	// CloseOnResponse releases the connection after the first finalized
	// response (per-utterance mode). When false the session stays open for
	// a whole multi-turn conversation.
	CloseOnResponse bool

	MaxResponseTokens int
	Temperature       float64
	DrainInterval     time.Duration
	HandshakeTimeout  time.Duration
}

// Handlers receives session callbacks. All callbacks are invoked from the
// session's inbound dispatch goroutine.
type Handlers struct {
	OnResponse      func(*Response)
	OnError         func(error)
	OnSpeechStarted func()
	OnSpeechStopped func()
}

// Session owns exactly one persistent connection to the realtime voice
// service. Outbound emission is serialized through a single writer goroutine:
// audio chunks queue up and are drained at the configured interval, and
// control events flush any queued audio before being written, so appends
// always precede the commit that covers them.
type Session struct {
	cfg      Config
	handlers Handlers
	log      *zap.Logger

	conn    *websocket.Conn
	audioQ  chan []byte
	control chan interface{}
	stopCh  chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	state     State

	acc accumulator
}

var errSessionClosed = errors.New("session closed")

// Open establishes the connection and performs the configuration handshake.
// The returned session is already streaming-ready: its writer and dispatch
// loops are running.
func Open(cfg Config, handlers Handlers, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = DefaultDrainInterval
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	conn, resp, err := dialer.Dial(cfg.URL, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, &AuthError{Status: resp.StatusCode}
		}
		return nil, &ConnectionError{Op: "dial", Err: err}
	}

	s := &Session{
		cfg:      cfg,
		handlers: handlers,
		log:      logger,
		conn:     conn,
		audioQ:   make(chan []byte, outboundQueueSize),
		control:  make(chan interface{}, 8),
		stopCh:   make(chan struct{}),
		state:    StateConfiguring,
	}

	var turnDetection *TurnDetection
	if cfg.ServerVAD {
		turnDetection = &TurnDetection{Type: "server_vad"}
	}
	update := SessionUpdateEvent{
		EventID: NewEventID(),
		Type:    TypeSessionUpdate,
		Session: SessionConfig{
			Modalities:        []string{"text", "audio"},
			Instructions:      cfg.Instructions,
			Voice:             cfg.Voice,
			InputAudioFormat:  "pcm16",
			OutputAudioFormat: "pcm16",
			TurnDetection:     turnDetection,
			Temperature:       cfg.Temperature,
		},
	}
	if err := conn.WriteJSON(update); err != nil {
		_ = conn.Close()
		return nil, &ConnectionError{Op: "configure", Err: err}
	}
	s.setState(StateStreaming)

	go s.writeLoop()
	go s.readLoop()

	logger.Debug("upstream session opened", zap.String("voice", cfg.Voice), zap.Bool("server_vad", cfg.ServerVAD))
	return s, nil
}

// EnqueueOutbound queues one PCM chunk for forwarding. It never blocks; when
// the queue is full the chunk is dropped with a diagnostic.
func (s *Session) EnqueueOutbound(pcm []byte) {
	select {
	case s.audioQ <- pcm:
	default:
		s.log.Warn("outbound audio queue full, dropping chunk", zap.Int("bytes", len(pcm)))
	}
}

// Commit marks all audio enqueued so far as one complete utterance.
func (s *Session) Commit() error {
	ev := CommitEvent{EventID: NewEventID(), Type: TypeInputAudioCommit}
	select {
	case s.control <- ev:
		s.setState(StateAwaitingResponse)
		return nil
	case <-s.stopCh:
		return &ConnectionError{Op: "commit", Err: errSessionClosed}
	}
}

// RequestResponse asks the upstream service to generate a response for the
// committed audio.
func (s *Session) RequestResponse() error {
	ev := ResponseCreateEvent{
		EventID: NewEventID(),
		Type:    TypeResponseCreate,
		Response: ResponseConfig{
			Modalities:        []string{"audio", "text"},
			Instructions:      s.cfg.Instructions,
			Voice:             s.cfg.Voice,
			OutputAudioFormat: "pcm16",
			Temperature:       s.cfg.Temperature,
			MaxOutputTokens:   s.cfg.MaxResponseTokens,
		},
	}
	select {
	case s.control <- ev:
		s.setState(StateAwaitingResponse)
		return nil
	case <-s.stopCh:
		return &ConnectionError{Op: "response.create", Err: errSessionClosed}
	}
}

// Close releases the connection and stops both background loops. It is
// idempotent and safe to call from error paths and normal completion alike.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		_ = s.conn.Close()
		s.setState(StateClosed)
		s.log.Debug("upstream session closed")
	})
	return nil
}

// State returns the session's current lifecycle position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// writeLoop is the single writer for the upstream connection.
func (s *Session) writeLoop() {
	ticker := time.NewTicker(s.cfg.DrainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case ev := <-s.control:
			if !s.flushAudio() {
				return
			}
			if err := s.conn.WriteJSON(ev); err != nil {
				s.fail("write", err)
				return
			}
		case <-ticker.C:
			if !s.flushAudio() {
				return
			}
		}
	}
}

// flushAudio drains every queued chunk, emitting append events in order.
func (s *Session) flushAudio() bool {
	for {
		select {
		case pcm := <-s.audioQ:
			ev := AppendEvent{EventID: NewEventID(), Type: TypeInputAudioAppend, Audio: audio.Encode(pcm)}
			if err := s.conn.WriteJSON(ev); err != nil {
				s.fail("write", err)
				return false
			}
		default:
			return true
		}
	}
}

// readLoop dispatches inbound events until the connection ends.
func (s *Session) readLoop() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.stopCh:
			default:
				s.fail("read", err)
			}
			return
		}

		ev, perr := ParseServerEvent(data)
		if perr != nil {
			// Unknown or malformed events are logged and dropped; they must
			// not terminate the dispatch loop.
			var unknown *UnknownEventTypeError
			if errors.As(perr, &unknown) {
				s.log.Warn("ignoring unknown upstream event", zap.String("type", unknown.Type))
			} else {
				s.log.Warn("ignoring malformed upstream event", zap.Error(perr))
			}
			continue
		}
		s.dispatch(ev)
	}
}

func (s *Session) dispatch(ev ServerEvent) {
	switch e := ev.(type) {
	case TextDelta:
		if e.Text == "" {
			return
		}
		s.setState(StateResponding)
		s.acc.addText(e.Text)
	case AudioDelta:
		pcm, err := audio.Decode(e.Audio)
		if err != nil {
			s.log.Warn("dropping undecodable audio delta", zap.Error(err))
			return
		}
		s.setState(StateResponding)
		s.acc.addAudio(pcm)
	case AudioDone:
		s.log.Debug("upstream audio complete")
	case ResponseDone:
		resp := s.acc.finalize(e.Text)
		if s.handlers.OnResponse != nil {
			s.handlers.OnResponse(resp)
		}
		if s.cfg.CloseOnResponse {
			_ = s.Close()
		} else {
			s.setState(StateStreaming)
		}
	case SpeechStarted:
		if s.handlers.OnSpeechStarted != nil {
			s.handlers.OnSpeechStarted()
		}
	case SpeechStopped:
		s.setState(StateAwaitingResponse)
		if s.handlers.OnSpeechStopped != nil {
			s.handlers.OnSpeechStopped()
		}
	case ServerError:
		s.log.Error("upstream error event", zap.String("message", e.Message))
		if s.handlers.OnError != nil {
			s.handlers.OnError(&ConnectionError{Op: "upstream", Err: errors.New(e.Message)})
		}
	}
}

// fail reports a transport failure and tears the session down. The failure is
// terminal for the current turn; no reconnect is attempted.
func (s *Session) fail(op string, err error) {
	select {
	case <-s.stopCh:
		return
	default:
	}
	s.log.Error("upstream session failed", zap.String("op", op), zap.Error(err))
	if s.handlers.OnError != nil {
		s.handlers.OnError(&ConnectionError{Op: op, Err: err})
	}
	_ = s.Close()
}
