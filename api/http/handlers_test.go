package http

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/Swastik3/HackHarvard2024/internal/annotate"
	"github.com/Swastik3/HackHarvard2024/internal/audio"
	"github.com/Swastik3/HackHarvard2024/internal/store"
)

type fakeStore struct {
	users         map[string]store.User
	items         []store.TimelineItem
	prescriptions []store.Prescription
	goalsSpawned  int
	completeErr   error
	failWrites    bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[string]store.User{}}
}

func (f *fakeStore) CreateUser(ctx context.Context, u store.User) (string, error) {
	if f.failWrites {
		return "", errors.New("write failed")
	}
	u.ID = bson.NewObjectID()
	f.users[u.ID.Hex()] = u
	return u.ID.Hex(), nil
}

func (f *fakeStore) UserByID(ctx context.Context, id string) (*store.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (f *fakeStore) UserByUsername(ctx context.Context, username string) (*store.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) AddTimelineItem(ctx context.Context, item store.TimelineItem) (string, error) {
	if f.failWrites {
		return "", errors.New("write failed")
	}
	f.items = append(f.items, item)
	return bson.NewObjectID().Hex(), nil
}

func (f *fakeStore) Timeline(ctx context.Context, userID string) ([]store.TimelineItem, error) {
	var out []store.TimelineItem
	for _, item := range f.items {
		if item.UserID == userID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeStore) Goals(ctx context.Context, userID string) ([]store.TimelineItem, error) {
	var out []store.TimelineItem
	for _, item := range f.items {
		if item.UserID == userID && item.Type == store.TypeGoal {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeStore) CompleteGoal(ctx context.Context, goalID string) error {
	return f.completeErr
}

func (f *fakeStore) AddPrescription(ctx context.Context, p store.Prescription) (string, error) {
	if f.failWrites {
		return "", errors.New("write failed")
	}
	p.ID = bson.NewObjectID()
	f.prescriptions = append(f.prescriptions, p)
	return p.ID.Hex(), nil
}

func (f *fakeStore) PrescriptionsByUser(ctx context.Context, userID string) ([]store.Prescription, error) {
	var out []store.Prescription
	for _, p := range f.prescriptions {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) SpawnGoals(ctx context.Context, p store.Prescription, prescriptionID string) error {
	f.goalsSpawned += len(p.Tasks)
	return nil
}

type failingAnnotator struct{}

func (failingAnnotator) Annotate(ctx context.Context, text string) annotate.Result {
	return annotate.Result{}
}

func newTestAPI(fs *fakeStore, ann Annotator) *echo.Echo {
	e := echo.New()
	NewHandlers(fs, ann, nil, nil, nil, nil).Register(e)
	return e
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateUser_ReturnsID(t *testing.T) {
	fs := newFakeStore()
	e := newTestAPI(fs, nil)

	rec := doJSON(e, http.MethodPost, "/api/create_user", `{"username":"jane_d","email":"jane@example.com"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["user_id"] == "" {
		t.Fatal("missing user_id")
	}
	if _, ok := fs.users[resp["user_id"]]; !ok {
		t.Fatal("user not stored")
	}
}

func TestCreateUser_MissingUsername(t *testing.T) {
	rec := doJSON(newTestAPI(newFakeStore(), nil), http.MethodPost, "/api/create_user", `{"email":"x@example.com"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	rec := doJSON(newTestAPI(newFakeStore(), nil), http.MethodGet, "/api/user/"+bson.NewObjectID().Hex(), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "User not found") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestUserLookupRoundTrip(t *testing.T) {
	fs := newFakeStore()
	e := newTestAPI(fs, nil)

	rec := doJSON(e, http.MethodPost, "/api/create_user", `{"username":"john_d","email":"john@example.com"}`)
	var created map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &created)

	rec = doJSON(e, http.MethodGet, "/api/user/userid/john_d", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var lookup map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &lookup)
	if lookup["user_id"] != created["user_id"] {
		t.Fatalf("user_id = %q, want %q", lookup["user_id"], created["user_id"])
	}

	rec = doJSON(e, http.MethodGet, "/api/user/username/"+created["user_id"], "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "john_d") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestAddConversation_AnnotationFailureStillWrites(t *testing.T) {
	fs := newFakeStore()
	e := newTestAPI(fs, failingAnnotator{})

	rec := doJSON(e, http.MethodPost, "/api/conversation",
		`{"user_id":"u1","conversation":"I felt better today","conversation_type":"bot_conversation"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(fs.items) != 1 {
		t.Fatalf("items = %d", len(fs.items))
	}
	item := fs.items[0]
	if item.Content != "I felt better today" {
		t.Fatalf("content = %q", item.Content)
	}
	if item.Summary != "" || item.Sentiment != "" {
		t.Fatal("failed annotation must leave fields empty")
	}
}

func TestAddNotes_AndTimeline(t *testing.T) {
	fs := newFakeStore()
	e := newTestAPI(fs, nil)

	rec := doJSON(e, http.MethodPost, "/api/notes", `{"user_id":"u1","notes":"slept well"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = doJSON(e, http.MethodGet, "/api/timeline/u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var items []store.TimelineItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 1 || items[0].Type != store.TypeNotes {
		t.Fatalf("items = %+v", items)
	}
}

func TestTimeline_EmptyIsJSONArray(t *testing.T) {
	rec := doJSON(newTestAPI(newFakeStore(), nil), http.MethodGet, "/api/timeline/nobody", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("body = %q, want empty array", rec.Body.String())
	}
}

func TestAddPrescription_SpawnsGoals(t *testing.T) {
	fs := newFakeStore()
	e := newTestAPI(fs, nil)

	body := `{"user_id":"u1","tasks":[{"type":"medication","task":"Take Calmvera 10 mg"},{"type":"therapeutic_activity","task":"Daily Journaling"}]}`
	rec := doJSON(e, http.MethodPost, "/api/prescription", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if fs.goalsSpawned != 2 {
		t.Fatalf("goals spawned = %d, want 2", fs.goalsSpawned)
	}
	var resp map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["prescription_id"] == "" {
		t.Fatal("missing prescription_id")
	}
}

func TestCompleteGoal_NotFound(t *testing.T) {
	fs := newFakeStore()
	fs.completeErr = store.ErrNotFound
	rec := doJSON(newTestAPI(fs, nil), http.MethodPost, "/api/goal/complete", `{"goal_id":"abc"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestEmergency_RecordsTimelineItem(t *testing.T) {
	fs := newFakeStore()
	rec := doJSON(newTestAPI(fs, nil), http.MethodPost, "/api/emergency",
		`{"user_id":"u1","hotline_called":"Mental Health Hotline"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(fs.items) != 1 || fs.items[0].Type != store.TypeEmergencyCall {
		t.Fatalf("items = %+v", fs.items)
	}
	if fs.items[0].HotlineCalled != "Mental Health Hotline" {
		t.Fatalf("hotline = %q", fs.items[0].HotlineCalled)
	}
}

func TestTranscribe_NotConfigured(t *testing.T) {
	rec := doJSON(newTestAPI(newFakeStore(), nil), http.MethodPost, "/api/transcribe", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

type captureTranscriber struct {
	filename string
	audio    []byte
}

func (c *captureTranscriber) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	c.filename = filename
	c.audio = audio
	return "hello there", nil
}

func TestTranscribe_WrapsRawCaptureInWAV(t *testing.T) {
	tr := &captureTranscriber{}
	e := echo.New()
	NewHandlers(newFakeStore(), nil, tr, nil, nil, nil).Register(e)

	pcm := []byte{1, 0, 2, 0, 3, 0}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "note.pcm")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fw.Write(pcm)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/transcribe", &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if tr.filename != "note.wav" {
		t.Fatalf("filename = %q, want note.wav", tr.filename)
	}
	if len(tr.audio) != 44+len(pcm) || string(tr.audio[:4]) != "RIFF" {
		t.Fatalf("audio not wrapped in a WAV container: %d bytes", len(tr.audio))
	}
	rate := binary.LittleEndian.Uint32(tr.audio[24:28])
	if rate != audio.InputSampleRate {
		t.Fatalf("sample rate = %d, want %d", rate, audio.InputSampleRate)
	}
	if !bytes.Equal(tr.audio[44:], pcm) {
		t.Fatal("payload does not match the uploaded capture")
	}
}
