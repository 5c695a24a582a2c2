package configuration

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"Mercury/internal/db"
	"Mercury/internal/handler"
	"Mercury/internal/hub"
	"Mercury/internal/model"
	"Mercury/internal/repo"
	"Mercury/internal/service"
)

const uploadPruneAge = 30 * time.Minute

type Container struct {
	UserHandler    handler.UserHandler
	MonitorHandler handler.MonitorHandler
	Hub            *hub.Hub
	Config         Config
	Logger         *zap.Logger

	// private - for cleanup
	mongoClient *mongo.Database
	pruneStop   chan struct{}
}

// BuildContainer wires the whole dependency graph bottom-up: repositories,
// then the registry (the send surface), then services against it, then the
// dispatcher and hub. Every component gets its collaborators at construction.
func BuildContainer() (*Container, error) {
	config, err := LoadConfig("../../shared/config.dev.json")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	con, err := db.OpenConnection(config.ChatDatabase.Uri, config.ChatDatabase.Database)
	if err != nil {
		return nil, err
	}

	messageMongo := db.NewRepository[model.Message](con, config.ChatDatabase.MessagesCollection)
	userMongo := db.NewRepository[model.User](con, config.ChatDatabase.UsersCollection)

	logger, _ := zap.NewProduction()

	messageRepo := repo.NewMessageRepository(con, messageMongo, logger)
	userRepo := repo.NewUserRepository(con, userMongo)

	registry := hub.NewRegistry()
	gateway := service.NewGateway(registry, logger)

	uploadService, err := service.NewFileUploadService(config.Upload.Path, logger)
	if err != nil {
		return nil, err
	}

	messageService := service.NewMessageService(messageRepo, userRepo, gateway, logger)
	conversationService := service.NewConversationService(messageRepo, userRepo, logger)
	typingService := service.NewTypingService(gateway, logger)
	presenceService := service.NewPresenceService(userRepo, messageRepo, gateway, logger)
	uploadHandler := service.NewUploadHandlerService(userRepo, uploadService, gateway, logger)
	userService := service.NewUserService(userRepo, logger)
	audit := service.NewAuditLogger(logger)

	dispatcher := hub.NewDispatcher(messageService, conversationService, typingService, uploadHandler, gateway, audit, logger)
	h := hub.NewHub(registry, dispatcher, presenceService, config.Server.AllowedOrigins)

	monitorService := hub.NewMonitorService(registry, uploadService)

	c := &Container{
		UserHandler:    handler.NewUserHandler(userService),
		MonitorHandler: handler.NewMonitorHandler(monitorService),
		Hub:            h,
		Config:         *config,
		Logger:         logger,
		mongoClient:    con,
		pruneStop:      make(chan struct{}),
	}

	// Reap upload sessions that went quiet without finishing.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-c.pruneStop:
				return
			case <-ticker.C:
				uploadService.PruneIdle(uploadPruneAge)
			}
		}
	}()

	return c, nil
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	// Stop the hub first (closes all WebSocket connections)
	if c.Hub != nil {
		c.Hub.Stop()
	}

	if c.pruneStop != nil {
		close(c.pruneStop)
	}

	// Sync logger
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	// Close MongoDB connection pool
	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}
