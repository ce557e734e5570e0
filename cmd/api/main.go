package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"database/sql"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/ledgerbank/ledger-service/internal/audit"
	"github.com/ledgerbank/ledger-service/internal/config"
	"github.com/ledgerbank/ledger-service/internal/handler"
	"github.com/ledgerbank/ledger-service/internal/middleware"
	"github.com/ledgerbank/ledger-service/internal/notify"
	"github.com/ledgerbank/ledger-service/internal/repository"
	"github.com/ledgerbank/ledger-service/internal/service"
)

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

	// Initialize database
	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}
	if err := repository.RunMigrations(logger, db); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize layers
	repo := repository.NewRepository(db)
	sender := notify.NewSender(cfg, logger)
	svc := service.NewService(repo, cfg, logger, sender)
	h := handler.NewHandler(svc)

	// The bank account must exist before any ledger operation runs
	if err := svc.EnsureBankAccount(context.Background(), cfg.BankInitialReserve); err != nil {
		logger.Fatalf("Failed to ensure bank account: %v", err)
	}

	// Schedule the conservation audit
	auditor := audit.NewAuditor(repo, logger, service.ReserveFloor)
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.AuditSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := auditor.Run(ctx); err != nil {
			logger.Errorf("Audit run failed: %v", err)
		}
	}); err != nil {
		logger.Fatalf("Failed to schedule audit: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Setup router
	r := mux.NewRouter()
	// Public routes
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/add", h.Add).Methods("POST")
	r.HandleFunc("/transfer", h.Transfer).Methods("POST")
	r.HandleFunc("/balance", h.Balance).Methods("POST")
	r.HandleFunc("/loan/take", h.TakeLoan).Methods("POST")
	r.HandleFunc("/loan/pay", h.PayLoan).Methods("POST")
	r.HandleFunc("/verify", h.Verify).Methods("POST")
	// Protected routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	authRouter.HandleFunc("/history", h.History).Methods("GET")

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
