package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Swastik3/HackHarvard2024/internal/audio"
)

type recordedEvent struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

// fakeUpstream runs a websocket server standing in for the realtime service.
type fakeUpstream struct {
	srv      *httptest.Server
	received chan recordedEvent
	headers  chan http.Header
	conns    chan *websocket.Conn
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{
		received: make(chan recordedEvent, 64),
		headers:  make(chan http.Header, 1),
		conns:    make(chan *websocket.Conn, 1),
	}
	upgrader := websocket.Upgrader{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.headers <- r.Header.Clone()
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		f.conns <- conn
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var ev recordedEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				t.Errorf("unmarshal client event: %v", err)
				return
			}
			f.received <- ev
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeUpstream) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *fakeUpstream) next(t *testing.T) recordedEvent {
	t.Helper()
	select {
	case ev := <-f.received:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client event")
		return recordedEvent{}
	}
}

func (f *fakeUpstream) conn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-f.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connection")
		return nil
	}
}

func TestOpen_SendsAuthAndConfiguration(t *testing.T) {
	f := newFakeUpstream(t)

	s, err := Open(Config{
		URL:           f.url(),
		APIKey:        "sk-test",
		Voice:         "alloy",
		DrainInterval: 5 * time.Millisecond,
	}, Handlers{}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	h := <-f.headers
	if got := h.Get("Authorization"); got != "Bearer sk-test" {
		t.Fatalf("auth header = %q", got)
	}
	if got := h.Get("OpenAI-Beta"); got != "realtime=v1" {
		t.Fatalf("beta header = %q", got)
	}

	if ev := f.next(t); ev.Type != TypeSessionUpdate {
		t.Fatalf("first event = %q, want %q", ev.Type, TypeSessionUpdate)
	}
}

func TestSession_AppendsPrecedeCommit(t *testing.T) {
	f := newFakeUpstream(t)

	s, err := Open(Config{URL: f.url(), APIKey: "k", DrainInterval: time.Hour}, Handlers{}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	f.next(t) // session.update

	chunk1 := []byte{1, 0, 2, 0}
	chunk2 := []byte{3, 0, 4, 0}
	s.EnqueueOutbound(chunk1)
	s.EnqueueOutbound(chunk2)
	// The drain interval is far away; the commit must flush both appends
	// first.
	if err := s.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	first := f.next(t)
	if first.Type != TypeInputAudioAppend || first.Audio != audio.Encode(chunk1) {
		t.Fatalf("first event = %+v", first)
	}
	second := f.next(t)
	if second.Type != TypeInputAudioAppend || second.Audio != audio.Encode(chunk2) {
		t.Fatalf("second event = %+v", second)
	}
	if ev := f.next(t); ev.Type != TypeInputAudioCommit {
		t.Fatalf("third event = %q, want commit", ev.Type)
	}

	if got := s.State(); got != StateAwaitingResponse {
		t.Fatalf("state after commit = %v", got)
	}
}

func TestSession_DeliversAccumulatedResponse(t *testing.T) {
	f := newFakeUpstream(t)

	responses := make(chan *Response, 1)
	s, err := Open(Config{
		URL:             f.url(),
		APIKey:          "k",
		DrainInterval:   5 * time.Millisecond,
		CloseOnResponse: true,
	}, Handlers{
		OnResponse: func(r *Response) { responses <- r },
	}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	f.next(t) // session.update

	conn := f.conn(t)
	chunk1 := []byte{9, 0}
	chunk2 := []byte{8, 0}
	writeEvent := func(payload string) {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
			t.Fatalf("server write: %v", err)
		}
	}
	// An unrecognized event first; it must be skipped without breaking the
	// stream.
	writeEvent(`{"type":"rate_limits.updated"}`)
	writeEvent(`{"type":"response.audio.delta","delta":"` + audio.Encode(chunk1) + `"}`)
	writeEvent(`{"type":"response.audio.delta","delta":"` + audio.Encode(chunk2) + `"}`)
	writeEvent(`{"type":"response.audio.done"}`)
	writeEvent(`{"type":"response.done","response":{"output":[{"content":[{"type":"audio","transcript":"hi there"}]}]}}`)

	var resp *Response
	select {
	case resp = <-responses:
	case <-time.After(2 * time.Second):
		t.Fatal("no response delivered")
	}
	if resp.Text != "hi there" {
		t.Fatalf("text = %q", resp.Text)
	}
	if len(resp.Audio) != 2 {
		t.Fatalf("audio chunks = %d, want 2", len(resp.Audio))
	}
	if string(resp.Audio[0]) != string(chunk1) || string(resp.Audio[1]) != string(chunk2) {
		t.Fatal("audio chunks out of order")
	}

	// CloseOnResponse releases the session after the first response.
	deadline := time.Now().Add(2 * time.Second)
	for s.State() != StateClosed {
		if time.Now().After(deadline) {
			t.Fatalf("state = %v, want closed", s.State())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	f := newFakeUpstream(t)

	s, err := Open(Config{URL: f.url(), APIKey: "k"}, Handlers{}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if got := s.State(); got != StateClosed {
		t.Fatalf("state = %v", got)
	}

	if err := s.Commit(); err == nil {
		t.Fatal("commit after close should fail")
	}
}

func TestOpen_RejectedCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := Open(Config{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), APIKey: "bad"}, Handlers{}, nil)
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("want AuthError, got %v", err)
	}
	if authErr.Status != http.StatusUnauthorized {
		t.Fatalf("status = %d", authErr.Status)
	}
}

func TestSession_UpstreamErrorReachesHandler(t *testing.T) {
	f := newFakeUpstream(t)

	errs := make(chan error, 1)
	s, err := Open(Config{URL: f.url(), APIKey: "k", DrainInterval: 5 * time.Millisecond}, Handlers{
		OnError: func(err error) { errs <- err },
	}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	f.next(t)

	conn := f.conn(t)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","error":{"message":"boom"}}`)); err != nil {
		t.Fatalf("server write: %v", err)
	}

	select {
	case err := <-errs:
		var ce *ConnectionError
		if !errors.As(err, &ce) {
			t.Fatalf("want ConnectionError, got %v", err)
		}
		if !strings.Contains(err.Error(), "boom") {
			t.Fatalf("error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("upstream error not delivered")
	}
}
