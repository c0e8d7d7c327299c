package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"voice-ai/internal/config"
	"voice-ai/internal/domain/dto"
	"voice-ai/internal/domain/entities"
	Iprovider "voice-ai/internal/domain/interfaces/provider"
	repoInterface "voice-ai/internal/domain/interfaces/repository"
	Iservices "voice-ai/internal/domain/interfaces/services"
	"voice-ai/internal/engine"
	"voice-ai/internal/infra/handlers"
	"voice-ai/internal/infra/logger"
	"voice-ai/internal/infra/provider"
	"voice-ai/internal/infra/repository"
	"voice-ai/internal/infra/routes"
	"voice-ai/internal/infra/services"
	"voice-ai/internal/middleware"
	client "voice-ai/internal/pkg"

	"github.com/gorilla/mux"
)

const (
	defaultGreeting      = "Hello! I'm your AI assistant. How can I help you today?"
	defaultClarifyPrompt = "I'm sorry, I didn't catch that. Could you please repeat?"
	fallbackReply        = "I apologize for the technical difficulty. How can I assist you?"
)

func main() {
	config.LoadEnv()

	log := logger.NewLogger(config.GetBoolEnv("LOG_JSON", false))

	demoMode := config.GetBoolEnv("DEMO_MODE", true)
	if demoMode {
		log.Info("Starting in DEMO mode: mock collaborators, simulated transport")
	} else {
		log.Info("Starting in PRODUCTION mode: live collaborators, carrier transport")
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	serviceTimeout := config.GetDurationEnv("SERVICE_TIMEOUT", 10*time.Second)
	maxRetries := uint64(config.GetIntEnv("SERVICE_MAX_RETRIES", 2))
	retryInterval := config.GetDurationEnv("SERVICE_RETRY_INTERVAL", 500*time.Millisecond)

	var stt Iservices.ISttService
	var dialogue Iservices.IDialogueService
	var tts Iservices.ITtsService
	var transport Iprovider.ITransportProvider
	var carrier *provider.CarrierProvider

	if demoMode {
		stt = services.NewMockSttService()
		dialogue = services.NewMockDialogueService()
		tts = services.NewMockTtsService()
		transport = provider.NewSimulatedProvider(log)
	} else {
		stt = services.NewSttService(log, config.GetEnv("STT_API_HOST"), httpClient, serviceTimeout, maxRetries, retryInterval)
		dialogue = services.NewDialogueService(log, config.GetEnv("DIALOGUE_API_HOST"), httpClient, serviceTimeout, maxRetries, retryInterval)
		tts = services.NewTtsService(log, config.GetEnv("TTS_API_HOST"), httpClient, serviceTimeout, maxRetries, retryInterval)
		carrier = provider.NewCarrierProvider(
			log,
			httpClient,
			config.GetEnv("CARRIER_BASE_URL"),
			config.GetEnv("CARRIER_AUTH_ID"),
			config.GetEnv("CARRIER_AUTH_TOKEN"),
			config.GetEnv("CARRIER_PHONE_NUMBER"),
			config.GetEnv("PUBLIC_URL"),
		)
		transport = carrier
	}

	var callRecordService Iservices.ICallRecordService
	if mongoURI := config.GetEnvDefault("MONGODB_URI", ""); mongoURI != "" {
		mongoClient, err := client.MongoClient(mongoURI)
		if err != nil {
			log.Fatal(fmt.Sprintf("Failed to connect to MongoDB: %v", err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mongoClient.Disconnect(ctx)
		}()

		database := mongoClient.Database(config.GetEnvDefault("MONGODB_DATABASE", "voice_ai"))
		var callRecordRepository repoInterface.Repository[entities.CallSession] = repository.NewMongoRepository[entities.CallSession](database)
		callRecordService = services.NewCallRecordService(callRecordRepository, log)
		log.Info("Call record persistence enabled")
	} else {
		log.Info("MONGODB_URI not set, call records will not be persisted")
	}

	baseCtx, stopSessions := context.WithCancel(context.Background())
	defer stopSessions()

	registryConfig := engine.RegistryConfig{
		Ceiling:      config.GetIntEnv("SESSION_CEILING", 20),
		IdleTimeout:  config.GetDurationEnv("IDLE_TIMEOUT", 60*time.Second),
		ReapInterval: config.GetDurationEnv("REAP_INTERVAL", 5*time.Second),
		Session: engine.SessionConfig{
			Greeting:      config.GetEnvDefault("GREETING", defaultGreeting),
			ClarifyPrompt: config.GetEnvDefault("CLARIFY_PROMPT", defaultClarifyPrompt),
			FallbackReply: fallbackReply,
			FallbackAudio: fallbackClip(),
			TurnBuffer: engine.TurnBufferConfig{
				SilenceThreshold: config.GetDurationEnv("SILENCE_THRESHOLD", 700*time.Millisecond),
				MaxTurnDuration:  config.GetDurationEnv("MAX_TURN_DURATION", 15*time.Second),
				EnergyThreshold:  0.01,
			},
			TickInterval:   config.GetDurationEnv("TICK_INTERVAL", 100*time.Millisecond),
			EventQueueSize: config.GetIntEnv("EVENT_QUEUE_SIZE", 256),
		},
	}

	registry := engine.NewRegistry(baseCtx, log, registryConfig, engine.SessionServices{
		Stt:       stt,
		Dialogue:  dialogue,
		Tts:       tts,
		Transport: transport,
	}, callRecordService)
	registry.StartReaper(baseCtx)

	if carrier != nil {
		carrier.AttachRegistry(registry)
	}

	components := dto.HealthComponents{Stt: "mock", Dialogue: "mock", Tts: "mock", Carrier: "simulated"}
	if !demoMode {
		components = dto.HealthComponents{Stt: "http", Dialogue: "http", Tts: "http", Carrier: "carrier"}
	}

	muxRouter := mux.NewRouter()
	muxRouter.Use(middleware.LoggingMiddleware(log))

	appRoutes := routes.NewRoutes(
		muxRouter,
		handlers.NewHomeHandlers(demoMode),
		handlers.NewCallHandlers(log, registry, transport, demoMode),
		handlers.NewDemoHandlers(log, registry, demoMode),
		handlers.NewHealthHandlers(log, registry, demoMode, components),
		handlers.NewStreamHandlers(log, carrier, demoMode),
	)
	appRoutes.Init()

	port := config.GetEnvDefault("PORT", "8000")
	server := &http.Server{
		Addr:    ":" + port,
		Handler: muxRouter,
	}

	go func() {
		log.Info(fmt.Sprintf("Server running on port %s", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(fmt.Sprintf("Could not listen on port %s: %v", port, err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down the server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	registry.Shutdown(ctx)

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal(fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	log.Info("Server exited gracefully")
}

// fallbackClip is a short flat 16-bit PCM tone at 8kHz, played when synthesis
// is unreachable so the caller never gets dead air.
func fallbackClip() []byte {
	samples := 8000
	clip := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		clip[2*i] = 0x40
		clip[2*i+1] = 0x1f
	}
	return clip
}
