// main.go
package main

import (
	"context"
	"log"
	"time"

	"notary-booking/cmd"
	"notary-booking/internal/crm"
	"notary-booking/internal/data/repository"
	"notary-booking/internal/wire"
	"notary-booking/pkg/cache"
	"notary-booking/pkg/database"
	"notary-booking/pkg/mq"
	"notary-booking/pkg/utils"

	"go.uber.org/zap"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
	)

	// Connect to database
	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Database connected successfully")

	// Connect to Redis for webhook dedup
	deduper, err := cache.NewDeduper(config.Redis.Addr, config.Redis.Password, config.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer deduper.Close()

	// Connect to the message broker for CRM sync
	publisher, err := mq.NewPublisher(config.AMQP.URL, config.AMQP.Exchange)
	if err != nil {
		logger.Fatal("Failed to connect publisher to broker", zap.Error(err))
	}
	defer publisher.Close()

	consumer, err := mq.NewConsumer(config.AMQP.URL, config.AMQP.Exchange, config.AMQP.Queue, []string{"crm.sync.#"})
	if err != nil {
		logger.Fatal("Failed to connect consumer to broker", zap.Error(err))
	}
	defer consumer.Close()

	// Initialize all repositories
	repos := repository.NewRepository(db, logger)

	// CRM side: HTTP client, queue dispatcher, sync worker
	crmClient := crm.NewHTTPClient(config.CRM.APIBase, config.CRM.APIKey, logger)
	dispatcher := crm.NewDispatcher(publisher, repos.WorkflowTrigger, logger)
	worker := crm.NewWorker(consumer, crmClient, repos.WorkflowTrigger, logger)

	// Wire all dependencies
	app := wire.Wiring(repos, config, dispatcher, crmClient, deduper, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := worker.Run(ctx); err != nil {
			logger.Error("CRM sync worker stopped", zap.Error(err))
		}
	}()

	go app.Service.Pending.Run(ctx, time.Duration(config.Urgency.RescoreMinutes)*time.Minute)

	// Start server
	logger.Info("Starting HTTP server", zap.String("port", config.App.Port))

	cmd.APIServer(app.Router, config.App.Port)
}
