package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jimy3k/weapp-fangxianyu/internal/broadcast"
	"github.com/jimy3k/weapp-fangxianyu/internal/config"
	"github.com/jimy3k/weapp-fangxianyu/internal/logging"
	redisClient "github.com/jimy3k/weapp-fangxianyu/internal/redis"
)

func main() {
	config.LoadDotenv()
	cfg := loadConfig()
	logger := logging.New("broadcast-service", cfg.LogLevel)

	logger.Info("starting broadcast service")

	subscriber, err := redisClient.NewSubscriber(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer subscriber.Close()
	logger.Info("connected to Redis")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := subscriber.SubscribeCollectEvents(ctx); err != nil {
		logger.Error("failed to subscribe to collect events", "error", err)
		os.Exit(1)
	}

	manager := broadcast.NewManager(logger)
	go manager.Run()

	// Forward Redis Pub/Sub messages to WebSocket watchers
	messageChan := make(chan *redisClient.Message, 256)
	go func() {
		if err := subscriber.Listen(ctx, messageChan); err != nil && ctx.Err() == nil {
			logger.Error("redis listener error", "error", err)
		}
	}()
	go func() {
		for msg := range messageChan {
			manager.Broadcast(msg.ItemID, []byte(msg.Payload))
		}
	}()

	handler := broadcast.NewHandler(manager, logger)
	router := handler.SetupRoutes()

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("broadcast service listening", "addr", cfg.ServerAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped gracefully")
}

// Config holds application configuration
type Config struct {
	ServerAddr    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LogLevel      string
}

// loadConfig loads configuration from environment variables
func loadConfig() *Config {
	return &Config{
		ServerAddr:    config.GetEnv("SERVER_ADDR", ":8081"),
		RedisAddr:     config.GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: config.GetEnv("REDIS_PASSWORD", ""),
		RedisDB:       config.GetEnvInt("REDIS_DB", 0),
		LogLevel:      config.GetEnv("LOG_LEVEL", "info"),
	}
}
