package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	apihttp "github.com/Swastik3/HackHarvard2024/api/http"
	"github.com/Swastik3/HackHarvard2024/internal/annotate"
	"github.com/Swastik3/HackHarvard2024/internal/config"
	"github.com/Swastik3/HackHarvard2024/internal/hotline"
	"github.com/Swastik3/HackHarvard2024/internal/httpserver"
	"github.com/Swastik3/HackHarvard2024/internal/logging"
	"github.com/Swastik3/HackHarvard2024/internal/metrics"
	"github.com/Swastik3/HackHarvard2024/internal/realtime"
	"github.com/Swastik3/HackHarvard2024/internal/relay"
	"github.com/Swastik3/HackHarvard2024/internal/storage"
	"github.com/Swastik3/HackHarvard2024/internal/store"
	"github.com/Swastik3/HackHarvard2024/internal/transcribe"
	"github.com/Swastik3/HackHarvard2024/internal/usecase"
)

func main() {
	logger := logging.New()
	defer func() { _ = logger.Sync() }()

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		logger.Fatal("mongo unavailable", zap.Error(err))
	}
	defer func() { _ = st.Close(context.Background()) }()
	if err := st.EnsureIndexes(ctx); err != nil {
		logger.Warn("index creation failed", zap.Error(err))
	}

	var annotator apihttp.Annotator
	var recorderAnnotator usecase.Annotator
	if cfg.GeminiKey != "" {
		a := annotate.New(annotate.NewGeminiClient(cfg.GeminiKey, cfg.GeminiModel), logger)
		annotator = a
		recorderAnnotator = a
	} else {
		logger.Warn("GEMINI_API_KEY not set, annotations disabled")
	}

	var uploader apihttp.Uploader
	var recordings usecase.RecordingStorage
	if cfg.SupabaseURL != "" && cfg.SupabaseServiceRoleKey != "" {
		stg, err := storage.New(storage.Config{
			URL:            cfg.SupabaseURL,
			ServiceRoleKey: cfg.SupabaseServiceRoleKey,
			Bucket:         cfg.SupabaseBucket,
		})
		if err != nil {
			logger.Fatal("supabase unavailable", zap.Error(err))
		}
		uploader = stg
		recordings = stg
	} else {
		logger.Warn("supabase not configured, uploads disabled")
	}

	var dialer apihttp.HotlineDialer
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		dialer = hotline.New(hotline.Config{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			FromNumber: cfg.TwilioFromNumber,
		})
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	e := httpserver.New(reg)

	mode := relay.ParseMode(cfg.VoiceSessionMode)
	dial := func(h realtime.Handlers) (relay.Upstream, error) {
		return realtime.Open(realtime.Config{
			URL:               cfg.RealtimeURL,
			APIKey:            cfg.OpenAIKey,
			Instructions:      cfg.Instructions,
			Voice:             cfg.Voice,
			ServerVAD:         mode == relay.ModeContinuous,
			CloseOnResponse:   mode == relay.ModeUtterance,
			MaxResponseTokens: cfg.MaxResponseTokens,
			Temperature:       0.8,
			DrainInterval:     cfg.DrainInterval,
		}, h, logger)
	}

	recorder := usecase.NewTurnRecorder(st, recordings, recorderAnnotator, logger)
	relay.NewHandler(mode, cfg.SilenceThreshold, dial, m, recorder.RecordTurn, logger).Register(e)

	apihttp.NewHandlers(st, annotator, transcribe.New(cfg.OpenAIKey), uploader, dialer, logger).Register(e)

	logger.Info("server listening",
		zap.String("address", cfg.HTTPAddress),
		zap.String("voice_session_mode", cfg.VoiceSessionMode))
	if err := httpserver.Run(ctx, e, cfg.HTTPAddress, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
