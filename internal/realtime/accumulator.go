package realtime

import (
	"strings"
	"sync"
)

// Response is a finalized upstream response: the full assistant text plus the
// synthesized audio chunks in the order their deltas arrived.
type Response struct {
	Text  string
	Audio [][]byte
}

// accumulator builds a Response incrementally from text/audio deltas. The
// inbound dispatch loop and the session's public methods both touch it, so
// every access goes through the mutex.
type accumulator struct {
	mu    sync.Mutex
	text  strings.Builder
	audio [][]byte
}

func (a *accumulator) addText(t string) {
	a.mu.Lock()
	a.text.WriteString(t)
	a.mu.Unlock()
}

func (a *accumulator) addAudio(pcm []byte) {
	a.mu.Lock()
	a.audio = append(a.audio, pcm)
	a.mu.Unlock()
}

// finalize snapshots the accumulated state into an immutable Response and
// resets the accumulator for the next turn.
func (a *accumulator) finalize(fullText string) *Response {
	a.mu.Lock()
	defer a.mu.Unlock()
	text := a.text.String()
	if fullText != "" {
		text = fullText
	}
	resp := &Response{Text: text, Audio: a.audio}
	a.text.Reset()
	a.audio = nil
	return resp
}
