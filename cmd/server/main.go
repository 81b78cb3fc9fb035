package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/peerpay/backend/docs"
	"github.com/peerpay/backend/internal/audit"
	"github.com/peerpay/backend/internal/config"
	"github.com/peerpay/backend/internal/database"
	"github.com/peerpay/backend/internal/handlers"
	mW "github.com/peerpay/backend/internal/middleware"
	"github.com/peerpay/backend/internal/services"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title PeerPay API
// @version 1.0
// @description Peer-to-peer money transfer backend
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	config.Load()
	ledgerCfg := config.LoadLedgerConfig()

	if viper.GetString("jwt.secret_key") == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	port := viper.GetString("server.port")
	docs.SwaggerInfo.Host = "localhost:" + port

	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	var processor services.PaymentProcessor
	if baseURL := viper.GetString("processor.base_url"); baseURL != "" {
		processor = services.NewHTTPProcessor(baseURL, viper.GetString("processor.api_key"),
			viper.GetDuration("processor.timeout"), ledgerCfg.VerifyMaxRetries)
		log.Printf("Live payment processor at %s", baseURL)
	} else {
		processor = services.NewSandboxProcessor()
		log.Println("PROCESSOR_BASE_URL not set, live-mode cards go to the sandbox processor")
	}

	var events services.EventPublisher
	if redisClient != nil {
		events = services.NewRedisEventPublisher(redisClient, ledgerCfg.EventsQueue)
	}

	auditLogger := audit.NewAuditLogger()
	ledger := services.NewLedgerService(db)
	records := services.NewRecordStore(db)

	authService := services.NewAuthService(db, redisClient, ledger, ledgerCfg)
	transferService := services.NewTransferService(ledger, records, processor, auditLogger, events, ledgerCfg)
	fundingService := services.NewFundingService(ledger, records, processor, auditLogger, events, ledgerCfg)
	historyService := services.NewHistoryService(db, ledger, records, ledgerCfg)
	directoryService := services.NewDirectoryService(db, ledgerCfg)
	iso20022Service := services.NewISO20022Service(historyService)
	qrService := services.NewQRService(redisClient, authService, ledgerCfg)

	userHandler := handlers.NewUserHandler(authService, directoryService)
	transactionHandler := handlers.NewTransactionHandler(transferService, historyService, iso20022Service)
	fundingHandler := handlers.NewFundingHandler(fundingService)
	qrHandler := handlers.NewQRHandler(qrService)

	var revocations mW.TokenRevocations
	if redisClient != nil {
		revocations = authService
	}
	authMiddleware := mW.InitAuthMiddleware(revocations)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	allowedOrigins, allowCredentials := config.CORSOrigins()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: allowCredentials,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := map[string]string{"status": "healthy", "database": "up", "redis": "disabled"}
		code := http.StatusOK
		if err := db.PingContext(ctx); err != nil {
			status["status"], status["database"] = "unhealthy", "down"
			code = http.StatusServiceUnavailable
		}
		if redisClient != nil {
			status["redis"] = "up"
			if err := redisClient.Ping(ctx).Err(); err != nil {
				status["redis"] = "down"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(status)
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	routes := func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/register", userHandler.Register)
		r.Post("/login", userHandler.Login)
		r.Post("/logout", userHandler.Logout)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)

			r.Get("/users/me", userHandler.Me)
			r.Get("/users", userHandler.SearchUsers)

			r.Post("/transactions", transactionHandler.CreateTransaction)
			r.Get("/transactions", transactionHandler.ListTransactions)
			r.Get("/transactions/{reference}", transactionHandler.GetTransaction)
			r.Get("/transactions/{reference}/iso20022", transactionHandler.GetReceipt)

			r.Post("/simulate-card-payment", fundingHandler.SimulateCardPayment)
			r.Post("/fundings", fundingHandler.CreateFunding)

			// QR endpoints
			r.Post("/qr/generate", qrHandler.GenerateQR)
			r.Post("/qr/process", qrHandler.ProcessQR)
		})
	}

	// API routes, plus the unprefixed paths the browser client calls
	r.Route("/api/v1", routes)
	r.Group(routes)

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
