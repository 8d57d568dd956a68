// Package usecase holds service-layer glue between the relay and the
// persistence backends.
package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Swastik3/HackHarvard2024/internal/annotate"
	"github.com/Swastik3/HackHarvard2024/internal/audio"
	"github.com/Swastik3/HackHarvard2024/internal/relay"
	"github.com/Swastik3/HackHarvard2024/internal/store"
)

// TimelineStore persists timeline items.
type TimelineStore interface {
	AddTimelineItem(ctx context.Context, item store.TimelineItem) (string, error)
}

// RecordingStorage uploads synthesized audio.
type RecordingStorage interface {
	UploadRecording(userID string, wav []byte) (string, error)
}

// Annotator derives conversation metadata.
type Annotator interface {
	Annotate(ctx context.Context, text string) annotate.Result
}

// TurnRecorder persists completed voice turns off the relay's hot path: the
// transcript lands on the user's timeline and the synthesized audio goes to
// object storage as a WAV file. Storage and annotation are both optional and
// both degrade silently.
type TurnRecorder struct {
	store   TimelineStore
	storage RecordingStorage
	ann     Annotator
	log     *zap.Logger
	timeout time.Duration
}

func NewTurnRecorder(st TimelineStore, storage RecordingStorage, ann Annotator, logger *zap.Logger) *TurnRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TurnRecorder{
		store:   st,
		storage: storage,
		ann:     ann,
		log:     logger,
		timeout: 30 * time.Second,
	}
}

// RecordTurn satisfies relay.Recorder.
func (r *TurnRecorder) RecordTurn(userID string, t relay.Turn) {
	if r.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if userID == "" {
		userID = "anonymous"
	}

	var recordingPath string
	if r.storage != nil && len(t.BotAudio) > 0 {
		var pcm []byte
		for _, chunk := range t.BotAudio {
			pcm = append(pcm, chunk...)
		}
		wav, err := audio.WAV(pcm, audio.OutputSampleRate)
		if err != nil {
			r.log.Warn("wav encode failed", zap.Error(err))
		} else if recordingPath, err = r.storage.UploadRecording(userID, wav); err != nil {
			r.log.Warn("recording upload failed", zap.Error(err))
			recordingPath = ""
		}
	}

	item := store.TimelineItem{
		UserID:           userID,
		Type:             store.TypeBotConversation,
		ConversationType: "voice",
		Content:          t.BotText,
		RecordingPath:    recordingPath,
	}
	if r.ann != nil && t.BotText != "" {
		res := r.ann.Annotate(ctx, t.BotText)
		item.Annotation = store.Annotation{
			Summary:   res.Summary,
			Sentiment: res.Sentiment,
			Mood:      res.Mood,
			Takeaways: res.Takeaways,
		}
	}
	if _, err := r.store.AddTimelineItem(ctx, item); err != nil {
		r.log.Error("voice turn persist failed", zap.Error(err))
	}
}
