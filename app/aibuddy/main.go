package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"github.com/yoockh/aibuddy/config"
	"github.com/yoockh/aibuddy/internal/api/handlers"
	"github.com/yoockh/aibuddy/internal/api/middleware"
	"github.com/yoockh/aibuddy/internal/api/routes"
	"github.com/yoockh/aibuddy/internal/cache"
	"github.com/yoockh/aibuddy/internal/generation"
	"github.com/yoockh/aibuddy/internal/logger"
	"github.com/yoockh/aibuddy/internal/providers/llm"
	"github.com/yoockh/aibuddy/internal/providers/search"
	"github.com/yoockh/aibuddy/internal/providers/stt"
	"github.com/yoockh/aibuddy/internal/providers/tts"
	mongorepo "github.com/yoockh/aibuddy/internal/repositories/mongo"
	"github.com/yoockh/aibuddy/internal/repositories/relational"
	"github.com/yoockh/aibuddy/internal/services"
	"github.com/yoockh/aibuddy/internal/session"
	"github.com/yoockh/aibuddy/internal/speech"
	"github.com/yoockh/aibuddy/internal/workers"
)

func main() {
	_ = godotenv.Load()

	log := logger.New()
	settings := config.LoadSettings()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, log, settings); err != nil {
		log.WithError(err).Error("aibuddy stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logrus.Logger, s config.Settings) error {
	// Relational store (required)
	if err := config.InitDatabase(); err != nil {
		return err
	}
	if err := config.EnsureSchema(config.DB); err != nil {
		return err
	}
	log.Info("database ready")

	// Redis (optional): search cache + title worker stream
	if err := config.InitRedis(); err != nil {
		if !errors.Is(err, config.ErrRedisNotConfigured) {
			return err
		}
		log.Info("redis not configured; search cache and title workers disabled")
	}

	// MongoDB (optional): turn journal
	if err := config.InitMongo(); err != nil {
		if !errors.Is(err, config.ErrMongoNotConfigured) {
			return err
		}
		log.Info("mongo not configured; turn journal disabled")
	} else if err := config.EnsureMongoIndexes(); err != nil {
		return err
	}

	var clientOpts []option.ClientOption
	if s.GoogleCredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(s.GoogleCredentialsFile))
	}

	// Context store + conversations
	ctxSvc := services.NewContextService(relational.NewFactRepo(config.DB), relational.NewTopicRepo(config.DB))
	onboarding := services.NewOnboardingService(ctxSvc)

	provider, err := newLLM(ctx, s, clientOpts)
	if err != nil {
		return err
	}
	defer provider.Close()

	var searchCache cache.Cache
	if config.RedisClient != nil {
		searchCache = cache.NewRedisCache(config.RedisClient)
	}
	searcher := search.NewDuckDuckGo(s.SearchBaseURL, s.SearchAPIKey, searchCache, s.SearchCacheTTL, log)

	gen := generation.NewClient(provider, searcher, ctxSvc, log)
	convSvc := services.NewConversationService(relational.NewConversationRepo(config.DB), gen)

	// Speech input
	sttProvider, err := stt.NewGoogleSpeech(ctx, clientOpts...)
	if err != nil {
		return err
	}
	defer sttProvider.Close()

	var (
		source    speech.AudioSource
		audioSink handlers.AudioSink
	)
	switch s.AudioInput {
	case "websocket":
		ws := speech.NewWSSource(0)
		source, audioSink = ws, ws
	default:
		source = speech.NewCommandSource(s.RecorderCmd)
	}
	listener := speech.NewListener(source, sttProvider, s.SpeechLanguage, log)

	// Speech output; the TTS client is created in the background and the
	// speaker reports not-ready until it is up.
	voice := tts.Voice{LanguageCode: s.SpeechLanguage, Name: s.TTSVoice, Gender: s.TTSGender}
	speaker := speech.NewSpeaker(ctx, func(ctx context.Context) (tts.Provider, error) {
		return tts.NewGoogleTTS(ctx, voice, clientOpts...)
	}, speech.NewCommandPlayer(s.PlayerCmd), log)
	defer speaker.Close()

	// Conversation controller
	recorder := &workers.ConversationRecorder{
		Redis:         config.RedisClient,
		Conversations: convSvc,
		Logger:        log,
	}
	opts := []session.Option{
		session.WithRecorder(recorder),
		session.WithListenRetryDelay(s.ListenRetryDelay),
		session.WithAutoListen(s.AutoListen),
	}

	var journal services.JournalService
	if db := config.MongoDatabase(); db != nil {
		journal = services.NewJournalService(mongorepo.NewTurnRepo(db), s.TurnJournalTTL)
		opts = append(opts, session.WithJournal(journal))
	}

	ctrl := session.New(gen, listener, speaker, log, opts...)
	go ctrl.Run(ctx)

	if config.RedisClient != nil {
		pool := &workers.TitleWorkerPool{
			Redis:         config.RedisClient,
			Conversations: convSvc,
			NumWorkers:    s.TitleWorkers,
			Logger:        log,
		}
		if err := pool.Start(ctx); err != nil {
			return err
		}
	}

	// HTTP API
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))

	deps := routes.Deps{
		Context:      handlers.NewContextHandler(ctxSvc),
		Conversation: handlers.NewConversationHandler(convSvc),
		Onboarding:   handlers.NewOnboardingHandler(onboarding),
		Session:      handlers.NewSessionHandler(ctrl),
		WS:           handlers.NewWSHandler(ctrl, audioSink, log),
		Auth: middleware.JWTConfig{
			Secret:   s.APIJWTSecret,
			Issuer:   os.Getenv("API_JWT_ISSUER"),
			Audience: os.Getenv("API_JWT_AUDIENCE"),
		},
	}
	if journal != nil {
		deps.Journal = handlers.NewJournalHandler(journal)
	}
	routes.RegisterRoutes(r, deps)

	srv := &http.Server{
		Addr:              ":" + s.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", s.Port).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLLM(ctx context.Context, s config.Settings, clientOpts []option.ClientOption) (llm.Provider, error) {
	opts := llm.DefaultOptions(s.GeminiModel)

	switch s.LLMProvider {
	case "vertex":
		if s.VertexProject == "" {
			return nil, errors.New("VERTEX_PROJECT is required when LLM_PROVIDER=vertex")
		}
		return llm.NewVertexGemini(ctx, s.VertexProject, s.VertexLocation, opts, clientOpts...)
	case "gemini", "":
		if s.GeminiAPIKey == "" {
			return nil, errors.New("GEMINI_API_KEY is required when LLM_PROVIDER=gemini")
		}
		return llm.NewGeminiAPI(ctx, s.GeminiAPIKey, opts)
	default:
		return nil, errors.New("unknown LLM_PROVIDER " + s.LLMProvider)
	}
}
