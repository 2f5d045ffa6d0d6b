package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/promptsentry/promptsentry/internal/adapters/transport"
	"github.com/promptsentry/promptsentry/internal/api/handlers"
	"github.com/promptsentry/promptsentry/internal/api/routes"
	"github.com/promptsentry/promptsentry/internal/domain/providers"
	"github.com/promptsentry/promptsentry/internal/guardrails/input"
	"github.com/promptsentry/promptsentry/internal/guardrails/output"
	"github.com/promptsentry/promptsentry/internal/infrastructure/clients/openai"
	redisclient "github.com/promptsentry/promptsentry/internal/infrastructure/clients/redis"
	"github.com/promptsentry/promptsentry/internal/infrastructure/observability"
	"github.com/promptsentry/promptsentry/internal/services"
	"github.com/promptsentry/promptsentry/pkg/config"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry if enabled
	var metrics *observability.Metrics
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Printf("Warning: Failed to set up OpenTelemetry: %v", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					log.Printf("Error shutting down OpenTelemetry: %v", err)
				}
			}()
			log.Println("OpenTelemetry initialized successfully")
		}

		metrics, err = observability.InitMetrics()
		if err != nil {
			log.Fatalf("Failed to initialize metrics: %v", err)
		}
	}

	// Input guardrail rule set, resolved before any service starts
	rules, err := config.LoadRules(cfg.Guardrail.RulesPath)
	if err != nil {
		log.Fatalf("Failed to load guardrail rules: %v", err)
	}

	// Transport
	var bus providers.Transport
	switch cfg.Transport.Mode {
	case "memory":
		bus = transport.NewMemoryTransport()
		log.Println("Using in-process transport")
	default:
		redisClient, err := redisclient.NewClient(&cfg.Redis)
		if err != nil {
			log.Fatalf("Failed to initialize Redis client: %v", err)
		}
		defer redisClient.Close()
		bus = transport.NewRedisTransport(redisClient)
		log.Println("Redis transport initialized successfully")
	}
	defer bus.Close()

	// OpenAI client backs all three output-guardrail checks
	openaiClient, err := openai.NewClient(&cfg.OpenAI)
	if err != nil {
		log.Fatalf("Failed to initialize OpenAI client: %v", err)
	}

	inputEngine := input.NewEngine(input.RuleSet{
		AllowedTopics:     rules.AllowedTopics,
		OffTopicKeywords:  rules.OffTopicKeywords,
		InjectionPatterns: rules.InjectionPatterns,
	})
	outputEngine := output.NewEngine(openaiClient, openaiClient, openaiClient)

	inputService := services.NewInputGuardrailService(bus, inputEngine)
	outputService := services.NewOutputGuardrailService(bus, outputEngine)
	coordinator := services.NewCoordinator(bus, cfg.Guardrail.RequestTimeout, metrics)

	if err := inputService.Start(ctx); err != nil {
		log.Fatalf("Failed to start input guardrail service: %v", err)
	}
	defer inputService.Stop()

	if err := outputService.Start(ctx); err != nil {
		log.Fatalf("Failed to start output guardrail service: %v", err)
	}
	defer outputService.Stop()

	if err := coordinator.Start(ctx); err != nil {
		log.Fatalf("Failed to start coordinator: %v", err)
	}
	defer coordinator.Stop()

	// HTTP entry point
	guardHandler := handlers.NewGuardHandler(coordinator)
	router := routes.NewRouter(guardHandler)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Guardrail gateway listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Guardrail gateway shut down gracefully.")
}
