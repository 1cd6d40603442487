package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"database/sql"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/bankcards/card-service/internal/cardnum"
	"github.com/bankcards/card-service/internal/config"
	"github.com/bankcards/card-service/internal/handler"
	"github.com/bankcards/card-service/internal/jobs"
	"github.com/bankcards/card-service/internal/locking"
	"github.com/bankcards/card-service/internal/middleware"
	"github.com/bankcards/card-service/internal/models"
	"github.com/bankcards/card-service/internal/notify"
	"github.com/bankcards/card-service/internal/repository"
	"github.com/bankcards/card-service/internal/service"
	"github.com/bankcards/card-service/internal/vault"
)

// stores groups the persistence contracts the services consume.
type stores struct {
	users     service.UserStore
	cards     service.CardStore
	transfers service.TransferStore
}

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize storage; DB_CONN=memory runs without postgres.
	st, err := openStores(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to open storage: %v", err)
	}

	// Initialize the crypto vault and the number generator
	v, err := vault.New(cfg.EncryptionKey)
	if err != nil {
		logger.Fatalf("Failed to initialize vault: %v", err)
	}
	gen, err := cardnum.NewGenerator(cfg.CardBIN)
	if err != nil {
		logger.Fatalf("Failed to initialize card number generator: %v", err)
	}

	// Initialize layers
	locks := locking.NewTable(cfg.LockWait)
	notifier := notify.NewSender(cfg, logger)
	authSvc := service.NewAuthService(st.users, cfg.JWTSecret, cfg.AdminCode, logger)
	cardSvc := service.NewCardService(st.cards, st.users, gen, v, locks, notifier, logger)
	transferSvc := service.NewTransferService(st.transfers, st.cards, st.users, locks, notifier, logger)
	h := handler.NewHandler(authSvc, cardSvc, transferSvc, logger)

	// Expiry sweep
	sweeper := jobs.NewExpirySweeper(cardSvc, cfg.ExpirySweepSpec, logger)
	if err := sweeper.Start(); err != nil {
		logger.Fatalf("Failed to start expiry sweep: %v", err)
	}
	defer sweeper.Stop()

	// Setup router
	r := mux.NewRouter()
	// Public routes
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/register-admin", h.RegisterAdmin).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")

	// Protected routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Auth(authSvc))

	admin := api.PathPrefix("/cards/admin").Subrouter()
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	admin.HandleFunc("/create", h.CreateCard).Methods("POST")
	admin.HandleFunc("/{cardId}/block", h.BlockCard).Methods("POST")
	admin.HandleFunc("/{cardId}/activate", h.ActivateCard).Methods("POST")
	admin.HandleFunc("/{cardId}/top-up", h.TopUpCard).Methods("POST")
	admin.HandleFunc("/{cardId}", h.DeleteCard).Methods("DELETE")
	admin.HandleFunc("/all", h.AllCards).Methods("GET")

	api.HandleFunc("/cards/my", h.MyCards).Methods("GET")
	api.HandleFunc("/cards/my/search", h.SearchMyCards).Methods("GET")
	api.HandleFunc("/cards/my/{cardId}/balance", h.CardBalance).Methods("GET")
	api.HandleFunc("/cards/my/{cardId}/block", h.BlockMyCard).Methods("POST")

	api.HandleFunc("/transactions/transfer", h.Transfer).Methods("POST")
	api.HandleFunc("/transactions/my", h.MyTransactions).Methods("GET")

	adminTxns := api.PathPrefix("/transactions/card").Subrouter()
	adminTxns.Use(middleware.RequireRole(models.RoleAdmin))
	adminTxns.HandleFunc("/{cardId}", h.CardTransactions).Methods("GET")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}

func openStores(cfg *config.Config, logger *logrus.Logger) (stores, error) {
	if cfg.DBConn == "memory" {
		logger.Warn("Running with the in-memory store; state is lost on restart")
		mem := repository.NewMemory()
		return stores{users: mem, cards: mem, transfers: mem}, nil
	}

	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		return stores{}, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return stores{}, fmt.Errorf("failed to ping database: %w", err)
	}
	pg := repository.NewPostgres(db)
	return stores{users: pg, cards: pg, transfers: pg}, nil
}
