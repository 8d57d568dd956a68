package relay

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Swastik3/HackHarvard2024/internal/metrics"
	"github.com/Swastik3/HackHarvard2024/internal/realtime"
)

// Recorder persists one completed turn. It runs off the hot path; failures
// inside it must not affect the live conversation.
type Recorder func(userID string, turn Turn)

// Handler serves the client-facing voice websocket.
type Handler struct {
	mode      Mode
	threshold float64
	dial      DialFunc
	metrics   *metrics.Metrics
	record    Recorder
	log       *zap.Logger
	upgrader  websocket.Upgrader
}

// NewHandler builds the websocket handler. dial must already reflect the
// chosen mode's upstream session settings. record may be nil.
func NewHandler(mode Mode, threshold float64, dial DialFunc, m *metrics.Metrics, record Recorder, logger *zap.Logger) *Handler {
	return &Handler{
		mode:      mode,
		threshold: threshold,
		dial:      dial,
		metrics:   m,
		record:    record,
		log:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Register mounts the voice endpoint.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/ws/voice", h.serve)
}

type clientMessage struct {
	Type  string `json:"type"`
	Audio string `json:"audio,omitempty"`
}

type serverMessage struct {
	Type    string `json:"type"`
	Audio   string `json:"audio,omitempty"`
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
}

// wsSink serializes writes to one client connection.
type wsSink struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	metrics *metrics.Metrics
}

func (s *wsSink) send(msg serverMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(msg)
}

func (s *wsSink) SendAudio(frame string) error {
	if err := s.send(serverMessage{Type: "audio", Audio: frame}); err != nil {
		return err
	}
	s.metrics.ChunksRelayed.Inc()
	return nil
}

func (s *wsSink) SendTranscript(text string) error {
	return s.send(serverMessage{Type: "transcript", Text: text})
}

func (s *wsSink) SendDone() error {
	return s.send(serverMessage{Type: "done"})
}

func (s *wsSink) SendError(msg string) error {
	return s.send(serverMessage{Type: "error", Message: msg})
}

func (h *Handler) serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return err
	}
	defer conn.Close()

	userID := c.QueryParam("user_id")
	log := h.log.With(zap.String("user_id", userID))

	h.metrics.ActiveSessions.Inc()
	defer h.metrics.ActiveSessions.Dec()

	sink := &wsSink{conn: conn, metrics: h.metrics}

	dial := func(hs realtime.Handlers) (Upstream, error) {
		inner := hs.OnError
		hs.OnError = func(err error) {
			h.metrics.UpstreamErrors.Inc()
			if inner != nil {
				inner(err)
			}
		}
		return h.dial(hs)
	}

	onTurn := func(t Turn) {
		h.metrics.ChunksForwarded.Add(float64(len(t.UserAudio)))
		h.metrics.TurnsCompleted.Inc()
		if h.record != nil {
			go h.record(userID, t)
		}
	}

	orch := NewOrchestrator(h.mode, h.threshold, dial, sink, onTurn, log)
	defer orch.Close()

	log.Info("voice session connected")
	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("voice session read error", zap.Error(err))
			}
			break
		}
		switch msg.Type {
		case "audio":
			h.metrics.ChunksReceived.Inc()
			if err := orch.HandleFrame(msg.Audio); err != nil {
				h.metrics.FramesRejected.Inc()
			}
		default:
			log.Debug("ignoring client message", zap.String("type", msg.Type))
		}
	}
	log.Info("voice session disconnected")
	return nil
}
