// Package relay bridges websocket clients to the upstream realtime voice
// service. Each client connection owns its own buffer and orchestrator, so
// concurrent callers never share utterance state.
package relay

import (
	"sync"

	"github.com/Swastik3/HackHarvard2024/internal/audio"
)

// InboundBuffer accumulates decoded PCM chunks from one client in arrival
// order and detects the end of an utterance: a silent chunk that arrives
// after at least one earlier chunk closes the utterance. A leading silent
// chunk never completes anything, so the buffer cannot emit an empty turn.
type InboundBuffer struct {
	mu        sync.Mutex
	chunks    [][]byte
	threshold float64
}

// NewInboundBuffer creates a buffer using the given mean-amplitude silence
// threshold.
func NewInboundBuffer(threshold float64) *InboundBuffer {
	return &InboundBuffer{threshold: threshold}
}

// Push appends one chunk and reports whether it completed an utterance.
func (b *InboundBuffer) Push(pcm []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = append(b.chunks, pcm)
	return len(b.chunks) > 1 && audio.IsSilence(pcm, b.threshold)
}

// DrainUtterance returns every buffered chunk in arrival order and resets the
// buffer for the next utterance.
func (b *InboundBuffer) DrainUtterance() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.chunks
	b.chunks = nil
	return out
}

// Len reports how many chunks are currently buffered.
func (b *InboundBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// Clear discards any buffered chunks without emitting them.
func (b *InboundBuffer) Clear() {
	b.mu.Lock()
	b.chunks = nil
	b.mu.Unlock()
}
