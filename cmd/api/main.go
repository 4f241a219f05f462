package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harisshahh/PocketSage/internal/advisor"
	"github.com/harisshahh/PocketSage/internal/api/handlers"
	"github.com/harisshahh/PocketSage/internal/api/middleware"
	"github.com/harisshahh/PocketSage/internal/config"
	"github.com/harisshahh/PocketSage/internal/enrich"
	"github.com/harisshahh/PocketSage/internal/logger"
	"github.com/harisshahh/PocketSage/internal/plaidclient"
	"github.com/harisshahh/PocketSage/internal/store"
	"google.golang.org/api/option"
)

func main() {
	// Parse command-line flags
	port := flag.String("port", "", "HTTP server port (overrides PORT env)")
	flag.Parse()

	// Initialize logger
	log := logger.New()

	cfg := config.Load()
	if *port != "" {
		cfg.Port = *port
	}

	if cfg.PlaidClientID == "" || cfg.PlaidSecret == "" {
		log.Warn().Msg("Plaid credentials not configured - link and transaction endpoints will fail")
	}

	ctx := context.Background()

	// Persistence adapter (Firestore). The store is required; refusing to
	// start beats silently swallowing every write.
	var storeOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		storeOpts = append(storeOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	st, err := store.New(ctx, cfg.GCPProjectID, logger.WithComponent(log, "store"), storeOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Firestore store")
	}
	defer st.Close()

	// Aggregation adapter (Plaid).
	plaidClient := plaidclient.New(plaidclient.Config{
		ClientID:   cfg.PlaidClientID,
		Secret:     cfg.PlaidSecret,
		Env:        cfg.PlaidEnv,
		WebhookURL: cfg.PlaidWebhook,
	}, logger.WithComponent(log, "plaid"))

	// Advice/classification adapter (Gemini). Degraded mode is tolerated.
	adv := advisor.New(ctx, cfg.GeminiModel, logger.WithComponent(log, "advisor"))
	if !adv.Available() {
		log.Warn().Msg("Advisor running in degraded mode - advice and classification will return fallbacks")
	}

	enricher := enrich.New(adv, cfg.EnrichConcurrency)

	// Initialize handlers
	transactionsHandler := handlers.NewTransactionsHandler(st, log)
	plaidHandler := handlers.NewPlaidHandler(plaidClient, st, enricher, log)
	adviceHandler := handlers.NewAdviceHandler(adv, log)

	// Create router
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		if r.Method == http.MethodGet {
			handlers.Root(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			transactionsHandler.Create(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/plaid/create_link_token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			plaidHandler.CreateLinkToken(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/plaid/set_access_token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			plaidHandler.SetAccessToken(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/plaid/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			plaidHandler.ListTransactions(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/gemini/advice", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			adviceHandler.GetAdvice(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(cfg.AllowedOrigins)(mux),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // enrichment makes one model call per transaction
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting PocketSage API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
