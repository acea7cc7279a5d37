package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quickapply/backend/internal/auth"
	"github.com/quickapply/backend/internal/config"
	"github.com/quickapply/backend/internal/handlers"
	"github.com/quickapply/backend/internal/services"
)

func main() {
	cfg := config.Load()

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTExpiration)
	if err != nil {
		log.Fatalf("Invalid credential config: %v", err)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	backend, err := services.OpenBackend(startCtx, cfg.MongoURI, cfg.MongoDB, cfg.MongoTLS, cfg.DataDir)
	cancel()
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}

	oauth := services.NewGoogleOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.OAuthRedirectURL())
	if !oauth.Configured() {
		log.Printf("Warning: CLIENT_ID/CLIENT_SECRET not set, Google sign-in and sending are disabled")
	}

	model, err := services.NewChatModel(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel)
	if err != nil {
		log.Fatalf("Failed to create LLM client: %v", err)
	}
	if model == nil && !cfg.TestMode {
		log.Printf("Warning: GROQ_API_KEY not set, draft generation is disabled")
	}

	resolver := services.NewProfileResolver(backend.Profiles)
	profiles := services.NewProfileService(backend.Profiles, resolver, issuer)
	dispatcher := services.NewDispatcher(backend.Profiles, oauth, services.NewGmailSender(), cfg.TestMode)
	apply := services.NewApplyService(resolver, services.NewDrafter(model, cfg.TestMode), dispatcher)

	router := handlers.NewRouter(handlers.Router{
		Auth:           handlers.NewAuthHandler(oauth, issuer, profiles, backend.Revocations, cfg.FrontendURL),
		Profile:        handlers.NewProfileHandler(profiles),
		Apply:          handlers.NewApplyHandler(apply),
		Status:         handlers.NewStatusHandler(backend.Profiles, backend.Name),
		Verifier:       issuer,
		Revocations:    backend.Revocations,
		AllowedOrigins: append([]string{cfg.FrontendURL}, cfg.AllowedOrigins...),
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("QuickApply API server starting on %s (storage=%s test_mode=%v)", cfg.ServerAddress, backend.Name, cfg.TestMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
	if err := backend.Close(shutdownCtx); err != nil {
		log.Printf("Storage close error: %v", err)
	}
}
