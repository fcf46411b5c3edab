package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	"github.com/epicbank/ledger/internal/audit"
	rediscache "github.com/epicbank/ledger/internal/cache"
	"github.com/epicbank/ledger/internal/command"
	"github.com/epicbank/ledger/internal/config"
	"github.com/epicbank/ledger/internal/events"
	"github.com/epicbank/ledger/internal/handler"
	"github.com/epicbank/ledger/internal/middleware"
	"github.com/epicbank/ledger/internal/query"
	"github.com/epicbank/ledger/internal/repository"
	"github.com/epicbank/ledger/internal/session"
)

func main() {
	cfg := config.MustLoad()
	if cfg.JWTSecret != "" {
		os.Setenv("JWT_SECRET", cfg.JWTSecret)
	}

	// Write store: one JSON user record per CRN.
	var store repository.RecordStore
	var db *sql.DB
	if cfg.Storage == "memory" {
		log.Println("Using in-memory record store (no durability)")
		store = repository.NewMemoryRecordRepository()
	} else {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			log.Fatalf("Failed to ping database: %v", err)
		}
		store = repository.NewRecordRepository(db)
	}

	// Redis: read model cache, transfer idempotency markers, event stream.
	redis, err := rediscache.NewClient(cfg.RedisAddr, "", cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	// --- CQRS wiring ---
	publisher := events.NewPublisher(redis.Client, events.LedgerEventsStream)
	sessions := session.NewManager()
	viewRepo := repository.NewViewRepository(redis.Client)

	commandSvc := command.NewLedgerCommandService(store, viewRepo, publisher, sessions)

	// Unwind any transfer credit stranded by a crash between the two write
	// phases before accepting traffic.
	if err := commandSvc.ReconcileTransfers(context.Background()); err != nil {
		log.Fatalf("Failed to reconcile in-flight transfers: %v", err)
	}

	querySvc := query.NewLedgerQueryService(store, viewRepo, sessions)
	authSvc := query.NewAuthQueryService(store)

	ledgerHandler := handler.NewLedgerHandler(commandSvc, querySvc)
	authHandler := handler.NewAuthHandler(commandSvc, authSvc)

	router := gin.Default()
	router.Use(middleware.LoggingMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	auth := router.Group("/v1/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
	}

	v1 := router.Group("/v1", middleware.AuthMiddleware())
	{
		v1.POST("/accounts", ledgerHandler.OpenAccount)
		v1.GET("/accounts", ledgerHandler.ListAccounts)
		v1.GET("/accounts/:accountId", ledgerHandler.GetAccount)
		v1.DELETE("/accounts/:accountId", ledgerHandler.CloseAccount)
		v1.POST("/accounts/:accountId/deposit", ledgerHandler.Deposit)
		v1.POST("/accounts/:accountId/withdraw", ledgerHandler.Withdraw)
		v1.POST("/accounts/:accountId/transfer", ledgerHandler.Transfer)
		v1.POST("/accounts/:accountId/unlock", ledgerHandler.UnlockAccount)
		v1.PUT("/accounts/:accountId/mpin", ledgerHandler.ChangeMpin)
		v1.PUT("/accounts/:accountId/status", ledgerHandler.SetAccountStatus)
		v1.GET("/accounts/:accountId/transactions", ledgerHandler.ListTransactions)
		v1.POST("/session/lock", ledgerHandler.LockSession)
		v1.DELETE("/transactions", ledgerHandler.ClearHistory)
		v1.GET("/balance", ledgerHandler.TotalBalance)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Audit projection runs only with a durable store behind it.
	if db != nil {
		auditRepo := repository.NewAuditRepository(db)
		recorder := audit.NewRecorder(auditRepo)
		go func() {
			subscriber := events.NewSubscriber(redis.Client, events.SubscriberConfig{
				Group:    "ledger-audit-group",
				Consumer: "audit-consumer-1",
				Stream:   events.LedgerEventsStream,
				Handler:  recorder.Handle,
			})
			if err := subscriber.Start(ctx); err != nil {
				log.Printf("Subscriber stopped: %v", err)
			}
		}()
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down...")
		cancel()
	}()

	log.Printf("Ledger service starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
