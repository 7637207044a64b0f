package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messenger-service/internal/accounts"
	"messenger-service/internal/config"
	"messenger-service/internal/db"
	"messenger-service/internal/delivery"
	"messenger-service/internal/handlers"
	"messenger-service/internal/middleware"
	"messenger-service/internal/observability"
	"messenger-service/internal/presence"
	"messenger-service/internal/rabbitmq"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
	"messenger-service/internal/ws"
)

const serviceName = "messenger-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	shutdownTracing, err := observability.SetupTracing(context.Background(), serviceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	if eventsPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange); err != nil {
		log.Printf("observability events disabled: %v", err)
	} else {
		observability.SetPublisher(eventsPublisher)
		defer eventsPublisher.Close()
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer auditPublisher.Close()
	auditEmitter := telemetry.NewAuditEmitter(auditPublisher, cfg.AuditRoutingKey, serviceName, cfg.Environment)

	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	directory := accounts.NewSQLDirectory(database)
	verifier := accounts.NewJWTVerifier(cfg.JWTSecret)

	registry := presence.NewRegistry()
	engine := delivery.NewEngine(conversationRepo, messageRepo, directory, registry, cfg.ExplicitAck())
	reconciler := delivery.NewReconciler(conversationRepo, messageRepo, directory, registry, cfg.ReadGraceWindow)

	messageHandler := handlers.NewMessageHandler(engine, reconciler, conversationRepo, messageRepo, directory, auditEmitter)
	conversationHandler := handlers.NewConversationHandler(conversationRepo, directory)
	healthHandler := handlers.NewHealthHandler(database)
	wsHandler := ws.NewHandler(registry, engine, reconciler, verifier)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(verifier)

	router.GET("/conversations", authMiddleware, conversationHandler.ListConversations)
	router.POST("/conversations/open", authMiddleware, conversationHandler.OpenConversation)
	router.GET("/conversations/:conversation_id/messages", authMiddleware, messageHandler.GetConversationMessages)
	router.POST("/conversations/:conversation_id/read", authMiddleware, messageHandler.MarkConversationRead)
	router.POST("/messages", authMiddleware, messageHandler.SubmitMessage)

	router.GET("/ws", wsHandler.Handle)

	router.GET("/healthz", healthHandler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, auditEmitter, cfg.EnableDebugRoutes)

	log.Printf("starting %s on :%s (ack_mode=%s grace_window=%s)", serviceName, cfg.Port, cfg.DeliveryAckMode, cfg.ReadGraceWindow)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
