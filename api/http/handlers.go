// Package http exposes the companion service's REST API.
package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/Swastik3/HackHarvard2024/internal/annotate"
	"github.com/Swastik3/HackHarvard2024/internal/audio"
	"github.com/Swastik3/HackHarvard2024/internal/store"
)

// Store is the persistence surface the handlers need.
type Store interface {
	CreateUser(ctx context.Context, u store.User) (string, error)
	UserByID(ctx context.Context, id string) (*store.User, error)
	UserByUsername(ctx context.Context, username string) (*store.User, error)
	AddTimelineItem(ctx context.Context, item store.TimelineItem) (string, error)
	Timeline(ctx context.Context, userID string) ([]store.TimelineItem, error)
	Goals(ctx context.Context, userID string) ([]store.TimelineItem, error)
	CompleteGoal(ctx context.Context, goalID string) error
	AddPrescription(ctx context.Context, p store.Prescription) (string, error)
	PrescriptionsByUser(ctx context.Context, userID string) ([]store.Prescription, error)
	SpawnGoals(ctx context.Context, p store.Prescription, prescriptionID string) error
}

// Annotator derives conversation metadata. May be nil when the annotation
// backend is not configured.
type Annotator interface {
	Annotate(ctx context.Context, text string) annotate.Result
}

// Transcriber turns an uploaded audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio []byte) (string, error)
}

// Uploader stores raw files in object storage.
type Uploader interface {
	UploadPrescription(userID, filename string, data []byte) (string, error)
}

// HotlineDialer places an outbound support call.
type HotlineDialer interface {
	Dial(to, message string) (string, error)
}

type Handlers struct {
	Store       Store
	Annotator   Annotator
	Transcriber Transcriber
	Uploader    Uploader
	Hotline     HotlineDialer
	Log         *zap.Logger
}

func NewHandlers(st Store, ann Annotator, tr Transcriber, up Uploader, hl HotlineDialer, logger *zap.Logger) Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Handlers{Store: st, Annotator: ann, Transcriber: tr, Uploader: up, Hotline: hl, Log: logger}
}

func (h Handlers) Register(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	e.POST("/api/create_user", h.createUser)
	e.GET("/api/user/:id", h.getUser)
	e.GET("/api/user/username/:id", h.getUsername)
	e.GET("/api/user/userid/:username", h.getUserID)

	e.POST("/api/emergency", h.addEmergency)
	e.POST("/api/connection", h.addConnection)
	e.POST("/api/conversation", h.addConversation)
	e.POST("/api/notes", h.addNotes)
	e.GET("/api/timeline/:user_id", h.getTimeline)

	e.POST("/api/prescription", h.addPrescription)
	e.GET("/api/prescription/:user_id", h.getPrescriptions)
	e.POST("/api/prescription/upload", h.uploadPrescription)

	e.GET("/api/goals/:user_id", h.getGoals)
	e.POST("/api/goal/complete", h.completeGoal)

	e.POST("/api/transcribe", h.transcribe)
}

func message(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"message": msg})
}

func (h Handlers) createUser(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := c.Bind(&req); err != nil || req.Username == "" {
		return message(c, http.StatusBadRequest, "username and email are required")
	}
	id, err := h.Store.CreateUser(c.Request().Context(), store.User{Username: req.Username, Email: req.Email})
	if err != nil {
		h.Log.Error("create user failed", zap.Error(err))
		return message(c, http.StatusInternalServerError, "failed to create user")
	}
	return c.JSON(http.StatusCreated, map[string]string{
		"message": "User created successfully",
		"user_id": id,
	})
}

func (h Handlers) getUser(c echo.Context) error {
	user, err := h.Store.UserByID(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return message(c, http.StatusNotFound, "User not found")
	}
	if err != nil {
		h.Log.Error("get user failed", zap.Error(err))
		return message(c, http.StatusInternalServerError, "failed to load user")
	}
	return c.JSON(http.StatusOK, user)
}

func (h Handlers) getUsername(c echo.Context) error {
	user, err := h.Store.UserByID(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return message(c, http.StatusNotFound, "User not found")
	}
	if err != nil {
		h.Log.Error("get username failed", zap.Error(err))
		return message(c, http.StatusInternalServerError, "failed to load user")
	}
	return c.JSON(http.StatusOK, map[string]string{"username": user.Username})
}

func (h Handlers) getUserID(c echo.Context) error {
	user, err := h.Store.UserByUsername(c.Request().Context(), c.Param("username"))
	if errors.Is(err, store.ErrNotFound) {
		return message(c, http.StatusNotFound, "User not found")
	}
	if err != nil {
		h.Log.Error("get user id failed", zap.Error(err))
		return message(c, http.StatusInternalServerError, "failed to load user")
	}
	return c.JSON(http.StatusOK, map[string]string{"user_id": user.ID.Hex()})
}

func (h Handlers) addEmergency(c echo.Context) error {
	var req struct {
		UserID        string `json:"user_id"`
		HotlineCalled string `json:"hotline_called"`
		PhoneNumber   string `json:"phone_number"`
	}
	if err := c.Bind(&req); err != nil || req.UserID == "" {
		return message(c, http.StatusBadRequest, "user_id is required")
	}
	_, err := h.Store.AddTimelineItem(c.Request().Context(), store.TimelineItem{
		UserID:        req.UserID,
		Type:          store.TypeEmergencyCall,
		HotlineCalled: req.HotlineCalled,
	})
	if err != nil {
		h.Log.Error("record emergency failed", zap.Error(err))
		return message(c, http.StatusInternalServerError, "failed to record emergency call")
	}
	if h.Hotline != nil && req.PhoneNumber != "" {
		go func() {
			sid, err := h.Hotline.Dial(req.PhoneNumber,
				"This is your companion service. You asked us to connect you with support. Help is on the way.")
			if err != nil {
				h.Log.Error("hotline dial failed", zap.Error(err))
				return
			}
			h.Log.Info("hotline call placed", zap.String("call_sid", sid))
		}()
	}
	return message(c, http.StatusCreated, "Emergency call recorded successfully")
}

func (h Handlers) addConnection(c echo.Context) error {
	var req struct {
		UserID           string `json:"user_id"`
		ConnectionName   string `json:"connection_name"`
		ConnectionUserID string `json:"connection_user_id"`
	}
	if err := c.Bind(&req); err != nil || req.UserID == "" {
		return message(c, http.StatusBadRequest, "user_id is required")
	}
	_, err := h.Store.AddTimelineItem(c.Request().Context(), store.TimelineItem{
		UserID:           req.UserID,
		Type:             store.TypeConnection,
		ConnectionName:   req.ConnectionName,
		ConnectionUserID: req.ConnectionUserID,
	})
	if err != nil {
		h.Log.Error("add connection failed", zap.Error(err))
		return message(c, http.StatusInternalServerError, "failed to add connection")
	}
	return message(c, http.StatusCreated, "Connection added successfully")
}

func (h Handlers) addConversation(c echo.Context) error {
	var req struct {
		UserID           string `json:"user_id"`
		Conversation     string `json:"conversation"`
		ConversationWith string `json:"conversation_with"`
		ConversationType string `json:"conversation_type"`
	}
	if err := c.Bind(&req); err != nil || req.UserID == "" || req.Conversation == "" {
		return message(c, http.StatusBadRequest, "user_id and conversation are required")
	}
	if req.ConversationType == "" {
		req.ConversationType = store.TypeBotConversation
	}

	item := store.TimelineItem{
		UserID:           req.UserID,
		Type:             req.ConversationType,
		ConversationWith: req.ConversationWith,
		Content:          req.Conversation,
		Annotation:       h.annotate(c.Request().Context(), req.Conversation),
	}
	if _, err := h.Store.AddTimelineItem(c.Request().Context(), item); err != nil {
		h.Log.Error("add conversation failed", zap.Error(err))
		return message(c, http.StatusInternalServerError, "failed to add conversation")
	}
	return message(c, http.StatusCreated, "Conversation added successfully")
}

func (h Handlers) addNotes(c echo.Context) error {
	var req struct {
		UserID string `json:"user_id"`
		Notes  string `json:"notes"`
	}
	if err := c.Bind(&req); err != nil || req.UserID == "" || req.Notes == "" {
		return message(c, http.StatusBadRequest, "user_id and notes are required")
	}
	item := store.TimelineItem{
		UserID:     req.UserID,
		Type:       store.TypeNotes,
		Content:    req.Notes,
		Annotation: h.annotate(c.Request().Context(), req.Notes),
	}
	if _, err := h.Store.AddTimelineItem(c.Request().Context(), item); err != nil {
		h.Log.Error("add notes failed", zap.Error(err))
		return message(c, http.StatusInternalServerError, "failed to add notes")
	}
	return message(c, http.StatusCreated, "Notes added successfully")
}

// annotate degrades to an empty annotation whenever the backend is absent or
// failing; timeline writes never wait on it being healthy.
func (h Handlers) annotate(ctx context.Context, text string) store.Annotation {
	if h.Annotator == nil {
		return store.Annotation{}
	}
	res := h.Annotator.Annotate(ctx, text)
	return store.Annotation{
		Summary:   res.Summary,
		Sentiment: res.Sentiment,
		Mood:      res.Mood,
		Takeaways: res.Takeaways,
	}
}

func (h Handlers) getTimeline(c echo.Context) error {
	items, err := h.Store.Timeline(c.Request().Context(), c.Param("user_id"))
	if err != nil {
		h.Log.Error("get timeline failed", zap.Error(err))
		return message(c, http.StatusInternalServerError, "failed to load timeline")
	}
	if items == nil {
		items = []store.TimelineItem{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h Handlers) addPrescription(c echo.Context) error {
	var req struct {
		UserID           string                   `json:"user_id"`
		PrescriptionDate string                   `json:"prescription_date"`
		RawText          string                   `json:"raw_text"`
		Tasks            []store.PrescriptionTask `json:"tasks"`
		Expiry           int64                    `json:"expiry"`
	}
	if err := c.Bind(&req); err != nil || req.UserID == "" {
		return message(c, http.StatusBadRequest, "user_id is required")
	}
	p := store.Prescription{
		UserID:           req.UserID,
		PrescriptionDate: req.PrescriptionDate,
		RawText:          req.RawText,
		Tasks:            req.Tasks,
		Expiry:           req.Expiry,
	}
	id, err := h.Store.AddPrescription(c.Request().Context(), p)
	if err != nil {
		h.Log.Error("add prescription failed", zap.Error(err))
		return message(c, http.StatusInternalServerError, "failed to add prescription")
	}
	if err := h.Store.SpawnGoals(c.Request().Context(), p, id); err != nil {
		h.Log.Error("spawn goals failed", zap.String("prescription_id", id), zap.Error(err))
	}
	return c.JSON(http.StatusCreated, map[string]string{
		"message":         "Prescription added successfully",
		"prescription_id": id,
	})
}

func (h Handlers) getPrescriptions(c echo.Context) error {
	out, err := h.Store.PrescriptionsByUser(c.Request().Context(), c.Param("user_id"))
	if err != nil {
		h.Log.Error("get prescriptions failed", zap.Error(err))
		return message(c, http.StatusInternalServerError, "failed to load prescriptions")
	}
	if out == nil {
		out = []store.Prescription{}
	}
	return c.JSON(http.StatusOK, out)
}

func (h Handlers) uploadPrescription(c echo.Context) error {
	userID := c.FormValue("user_id")
	if userID == "" {
		return message(c, http.StatusBadRequest, "user_id is required")
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return message(c, http.StatusBadRequest, "file is required")
	}
	f, err := fileHeader.Open()
	if err != nil {
		return message(c, http.StatusBadRequest, "failed to read file")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return message(c, http.StatusBadRequest, "failed to read file")
	}

	var path string
	if h.Uploader != nil {
		path, err = h.Uploader.UploadPrescription(userID, fileHeader.Filename, data)
		if err != nil {
			h.Log.Error("prescription upload failed", zap.Error(err))
			return message(c, http.StatusInternalServerError, "failed to store prescription file")
		}
	}

	id, err := h.Store.AddPrescription(c.Request().Context(), store.Prescription{
		UserID:   userID,
		FilePath: path,
	})
	if err != nil {
		h.Log.Error("add prescription record failed", zap.Error(err))
		return message(c, http.StatusInternalServerError, "failed to add prescription")
	}
	return c.JSON(http.StatusCreated, map[string]string{
		"message":         "Prescription uploaded successfully",
		"prescription_id": id,
		"file_path":       path,
	})
}

func (h Handlers) getGoals(c echo.Context) error {
	goals, err := h.Store.Goals(c.Request().Context(), c.Param("user_id"))
	if err != nil {
		h.Log.Error("get goals failed", zap.Error(err))
		return message(c, http.StatusInternalServerError, "failed to load goals")
	}
	if goals == nil {
		goals = []store.TimelineItem{}
	}
	return c.JSON(http.StatusOK, goals)
}

func (h Handlers) completeGoal(c echo.Context) error {
	var req struct {
		GoalID string `json:"goal_id"`
	}
	if err := c.Bind(&req); err != nil || req.GoalID == "" {
		return message(c, http.StatusBadRequest, "goal_id is required")
	}
	err := h.Store.CompleteGoal(c.Request().Context(), req.GoalID)
	if errors.Is(err, store.ErrNotFound) {
		return message(c, http.StatusNotFound, "Goal not found")
	}
	if err != nil {
		h.Log.Error("complete goal failed", zap.Error(err))
		return message(c, http.StatusInternalServerError, "failed to complete goal")
	}
	return message(c, http.StatusOK, "Goal completed successfully")
}

func (h Handlers) transcribe(c echo.Context) error {
	if h.Transcriber == nil {
		return message(c, http.StatusServiceUnavailable, "transcription not configured")
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return message(c, http.StatusBadRequest, "file is required")
	}
	f, err := fileHeader.Open()
	if err != nil {
		return message(c, http.StatusBadRequest, "failed to read file")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return message(c, http.StatusBadRequest, "failed to read file")
	}

	// Raw microphone captures carry no container; wrap them in a WAV
	// header at the client capture rate so the speech API accepts them.
	filename := fileHeader.Filename
	if ext := strings.ToLower(filepath.Ext(filename)); ext == ".pcm" || ext == ".raw" {
		wav, err := audio.WAV(data, audio.InputSampleRate)
		if err != nil {
			return message(c, http.StatusBadRequest, "invalid audio file")
		}
		data = wav
		filename = strings.TrimSuffix(filename, ext) + ".wav"
	}

	text, err := h.Transcriber.Transcribe(c.Request().Context(), filename, data)
	if err != nil {
		h.Log.Error("transcription failed", zap.Error(err))
		return message(c, http.StatusInternalServerError, "failed to transcribe audio")
	}
	return c.JSON(http.StatusOK, map[string]string{"text": text})
}
