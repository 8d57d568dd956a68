package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/Swastik3/HackHarvard2024/internal/annotate"
	"github.com/Swastik3/HackHarvard2024/internal/relay"
	"github.com/Swastik3/HackHarvard2024/internal/store"
)

type captureStore struct {
	items []store.TimelineItem
	err   error
}

func (c *captureStore) AddTimelineItem(ctx context.Context, item store.TimelineItem) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.items = append(c.items, item)
	return "id", nil
}

type captureStorage struct {
	uploads int
	lastWAV []byte
	err     error
}

func (c *captureStorage) UploadRecording(userID string, wav []byte) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.uploads++
	c.lastWAV = wav
	return "recordings/" + userID + "/turn.wav", nil
}

type staticAnnotator struct{ res annotate.Result }

func (s staticAnnotator) Annotate(ctx context.Context, text string) annotate.Result {
	return s.res
}

func TestRecordTurn_PersistsTranscriptAndRecording(t *testing.T) {
	st := &captureStore{}
	stg := &captureStorage{}
	ann := staticAnnotator{res: annotate.Result{Summary: "short check-in", Sentiment: "POSITIVE"}}
	r := NewTurnRecorder(st, stg, ann, nil)

	r.RecordTurn("user-1", relay.Turn{
		BotAudio: [][]byte{{1, 0}, {2, 0}},
		BotText:  "glad you are feeling better",
	})

	if len(st.items) != 1 {
		t.Fatalf("items = %d", len(st.items))
	}
	item := st.items[0]
	if item.UserID != "user-1" || item.Type != store.TypeBotConversation {
		t.Fatalf("item = %+v", item)
	}
	if item.Content != "glad you are feeling better" {
		t.Fatalf("content = %q", item.Content)
	}
	if item.Summary != "short check-in" || item.Sentiment != "POSITIVE" {
		t.Fatalf("annotation = %+v", item.Annotation)
	}
	if item.RecordingPath != "recordings/user-1/turn.wav" {
		t.Fatalf("recording path = %q", item.RecordingPath)
	}
	if stg.uploads != 1 {
		t.Fatalf("uploads = %d", stg.uploads)
	}
	// 44-byte RIFF header plus both concatenated chunks.
	if len(stg.lastWAV) != 44+4 {
		t.Fatalf("wav bytes = %d", len(stg.lastWAV))
	}
}

func TestRecordTurn_UploadFailureStillPersists(t *testing.T) {
	st := &captureStore{}
	stg := &captureStorage{err: errors.New("bucket gone")}
	r := NewTurnRecorder(st, stg, nil, nil)

	r.RecordTurn("user-1", relay.Turn{BotAudio: [][]byte{{1, 0}}, BotText: "hello"})

	if len(st.items) != 1 {
		t.Fatalf("items = %d", len(st.items))
	}
	if st.items[0].RecordingPath != "" {
		t.Fatalf("recording path = %q, want empty", st.items[0].RecordingPath)
	}
}

func TestRecordTurn_AnonymousUser(t *testing.T) {
	st := &captureStore{}
	r := NewTurnRecorder(st, nil, nil, nil)

	r.RecordTurn("", relay.Turn{BotText: "hi"})

	if len(st.items) != 1 || st.items[0].UserID != "anonymous" {
		t.Fatalf("items = %+v", st.items)
	}
}
