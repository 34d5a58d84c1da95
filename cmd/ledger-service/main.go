package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/finlane/ledger-service/internal/app/background"
	"github.com/finlane/ledger-service/internal/client"
	"github.com/finlane/ledger-service/internal/config"
	httpdelivery "github.com/finlane/ledger-service/internal/delivery/http"
	"github.com/finlane/ledger-service/internal/delivery/http/handlers"
	"github.com/finlane/ledger-service/internal/infrastructure/kafka"
	"github.com/finlane/ledger-service/internal/infrastructure/metrics"
	"github.com/finlane/ledger-service/internal/infrastructure/migrate"
	"github.com/finlane/ledger-service/internal/infrastructure/postgres"
	"github.com/finlane/ledger-service/internal/infrastructure/postgres/repository"
	"github.com/finlane/ledger-service/internal/infrastructure/resilient"
	"github.com/finlane/ledger-service/internal/usecase/ledger"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("failed to load .env")
	}
	// Reading config
	cfg := config.MustLoad()
	// Init database
	db := postgres.MustInitDB(cfg)

	if err := migrate.RunMigrations(db, cfg.LedgerDB.MigrationsPath); err != nil {
		log.Printf("migrations skipped: %v", err)
	}

	brokers := []string{fmt.Sprintf("%s:%s", cfg.KafkaService.Host, cfg.KafkaService.Port)}
	eventPublisher, err := kafka.NewKafkaPublisher(kafka.KafkaConfig{
		Brokers:    brokers,
		Topic:      cfg.KafkaService.EventsTopic,
		Username:   cfg.KafkaService.Username,
		Password:   cfg.KafkaService.Password,
		Mechanism:  cfg.KafkaService.Mechanism,
		TLSEnabled: cfg.KafkaService.TLSEnabled,
	})
	if err != nil {
		log.Fatalf("failed to init kafka event publisher: %v", err)
	}
	expiryScheduler := kafka.NewKafkaExpiryScheduler(brokers, cfg.KafkaService.ExpiryTopic)

	// Init transaction repo
	txnRepo := repository.NewDefaultTransactionRepository(db)
	// Init account-ledger client
	accountClient := client.NewHTTPAccountClient(fmt.Sprintf("http://%s:%s", cfg.AccountService.Host, cfg.AccountService.Port))

	ledgerMetrics := metrics.NewLedgerMetrics()

	uc := ledger.NewDefaultLedgerUsecase(
		txnRepo,
		accountClient,
		expiryScheduler,
		eventPublisher,
		resilient.NewAccess(),
		ledgerMetrics,
		ledger.Options{
			PaymentWindow:      cfg.Ledger.PaymentWindow,
			SweepLimit:         cfg.Ledger.SweepLimit,
			CountFastLimit:     cfg.Export.CountFastLimit,
			CountBatchSize:     cfg.Export.CountBatchSize,
			LargeThreshold:     cfg.Export.LargeThreshold,
			StandardBatch:      cfg.Export.StandardBatch,
			LargeBatch:         cfg.Export.LargeBatch,
			Parallelism:        cfg.Export.Parallelism,
			BatchPause:         cfg.Export.BatchPause,
			CacheTTL:           cfg.Export.CacheTTL,
			MemoryCeilingBytes: cfg.Export.MemoryCeilingMB << 20,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tasks := background.NewBackgroundTasks(uc, cfg.Ledger.SweepInterval)
	tasks.StartAll(ctx)

	router := httpdelivery.NewRouter(handlers.NewTransactionHandler(uc))
	addr := fmt.Sprintf("%s:%s", cfg.HTTPServer.Host, cfg.HTTPServer.Port)
	server := &http.Server{Addr: addr, Handler: router}

	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
	}()

	log.Printf("ledger service started on %s\n", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("failed to serve: %v\n", err)
	}
}
