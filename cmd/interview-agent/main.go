package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sjawhar/interview-agent/internal/candidates"
	"github.com/sjawhar/interview-agent/internal/config"
	"github.com/sjawhar/interview-agent/internal/gdrive"
	"github.com/sjawhar/interview-agent/internal/lease"
	"github.com/sjawhar/interview-agent/internal/llm"
	"github.com/sjawhar/interview-agent/internal/logging"
	"github.com/sjawhar/interview-agent/internal/metrics"
	"github.com/sjawhar/interview-agent/internal/protocol"
	"github.com/sjawhar/interview-agent/internal/recording"
	"github.com/sjawhar/interview-agent/internal/server"
	"github.com/sjawhar/interview-agent/internal/session"
	"github.com/sjawhar/interview-agent/internal/speech"
	"github.com/sjawhar/interview-agent/internal/storage"
	"github.com/sjawhar/interview-agent/internal/summary"
)

func main() {
	defaultPath := os.Getenv(config.EnvPrefix + "CONFIG")
	if defaultPath == "" {
		defaultPath = "config.yaml"
	}
	configPath := flag.String("config", defaultPath, "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "interview-agent: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, warnings, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	for _, w := range warnings {
		logger.Warn("config", zap.String("warning", w))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("storage init: %w", err)
	}
	defer func() { _ = store.Close() }()
	archive := storage.NewArchive(store, storage.NewFileWriter(cfg.TranscriptsDir))

	interviewer, err := newLLM(&cfg, cfg.LLM.Model)
	if err != nil {
		logger.Warn("interviewer model unavailable, replies will use the fallback utterance", zap.Error(err))
	}

	m := metrics.New(nil)
	deps := session.Deps{
		LLM:      interviewer,
		STT:      newTranscriber(&cfg),
		Archive:  archive,
		Observer: m,
		Logger:   logger.Named("session"),
	}
	if cfg.TTS.Enabled && cfg.OpenAIAPIKey != "" {
		deps.TTS = speech.NewOpenAISpeech(cfg.OpenAIAPIKey, cfg.TTS.Model, cfg.TTS.Voice)
	}
	if cfg.Recording.Enabled {
		deps.Recorder = recording.NewRecorder(cfg.RecordingsDir, cfg.Recording.Format, cfg.Recording.SampleRate)
	}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.RedisPassword, DB: cfg.Redis.DB})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		leases := lease.NewManager(rdb, cfg.LeaseTTL())
		deps.Registry = session.NewRegistry(leases)
		logger.Info("session leases enabled", zap.String("redis", cfg.Redis.Addr), zap.String("owner", leases.Owner()))
	}

	if cfg.Summary.Enabled {
		evaluatorLLM, err := newLLM(&cfg, cfg.SummaryModel())
		if err != nil {
			logger.Warn("evaluation summaries disabled", zap.Error(err))
		} else {
			evaluator := summary.New(evaluatorLLM, store, cfg.Summary.SystemPrompt, logger.Named("summary"))
			deps.Hooks = append(deps.Hooks, evaluator.OnPersisted)
		}
	}

	if cfg.GDrive.FolderID != "" {
		uploader, err := gdrive.NewUploader(ctx, cfg.GDrive.CredentialsFile, cfg.GDrive.FolderID, logger.Named("gdrive"))
		if err != nil {
			logger.Warn("drive upload disabled", zap.Error(err))
		} else {
			deps.Hooks = append(deps.Hooks, uploader.OnPersisted)
		}
	}

	var resolver server.CandidateResolver
	if cfg.MongoURI != "" {
		mongoStore, err := candidates.Connect(ctx, cfg.MongoURI, cfg.Mongo.Database)
		if err != nil {
			logger.Warn("candidate lookup disabled", zap.Error(err))
		} else {
			defer func() { _ = mongoStore.Close(context.Background()) }()
			resolver = candidates.NewResolver(mongoStore, logger.Named("candidates"))
		}
	}

	orch := session.NewOrchestrator(session.Config{
		ContextWindow:     cfg.Session.ContextWindow,
		GracePeriod:       cfg.GracePeriod(),
		IdleTimeout:       cfg.IdleTimeout(),
		STTTimeout:        cfg.STTTimeout(),
		LLMTimeout:        cfg.LLMTimeout(),
		TTSTimeout:        cfg.TTSTimeout(),
		PersistAlarmAfter: cfg.Session.PersistAlarmAfter,
		FallbackUtterance: cfg.Session.FallbackUtterance,
		FallbackGreeting:  cfg.Session.FallbackGreeting,
	}, deps)

	sweeper := session.NewSweeper(cfg.SweepInterval(), orch)
	go sweeper.Run(ctx)

	conns := server.NewConns()
	httpServer := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: server.Handler(server.Options{
			Orchestrator:   orch,
			Store:          store,
			Resolver:       resolver,
			Metrics:        m,
			Conns:          conns,
			AllowedOrigins: cfg.AllowedOrigins,
			Logger:         logger.Named("server"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("interview agent listening", zap.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("shutting down", zap.Int("active_sessions", orch.Registry().Len()))
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := orch.Shutdown(shutdownCtx); err != nil {
		logger.Error("session shutdown", zap.Error(err))
	}
	conns.CloseAll(protocol.Status{Message: "server shutting down", State: string(session.StateEnded)})
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	return nil
}

func newLLM(cfg *config.Config, model string) (llm.Client, error) {
	provider, name, err := llm.ParseModel(model)
	if err != nil {
		return nil, err
	}
	key := cfg.APIKey(provider)
	if key == "" {
		return nil, fmt.Errorf("no API key for provider %q", provider)
	}
	return llm.NewClient(provider, key, name, llm.WithMaxTokens(int64(cfg.LLM.MaxTokens)))
}

// newTranscriber returns nil when the configured provider has no key; audio
// turns then fail with an upstream error while text turns keep working.
func newTranscriber(cfg *config.Config) speech.Transcriber {
	switch cfg.STT.Provider {
	case "deepgram":
		if cfg.DeepgramAPIKey != "" {
			return speech.NewDeepgram(cfg.DeepgramAPIKey, cfg.STT.Model, cfg.STT.Language)
		}
	case "openai":
		if cfg.OpenAIAPIKey != "" {
			return speech.NewWhisper(cfg.OpenAIAPIKey, cfg.STT.Model, cfg.STT.Language)
		}
	}
	return nil
}
