package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/SvBorde/ResumeBooster/internal/api"
	"github.com/SvBorde/ResumeBooster/internal/auth"
	"github.com/SvBorde/ResumeBooster/internal/config"
	"github.com/SvBorde/ResumeBooster/internal/database"
	"github.com/SvBorde/ResumeBooster/internal/llm"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	logger.Info("api bootstrapping",
		slog.String("db_host", cfg.Database.Host),
		slog.Int("db_port", cfg.Database.Port),
		slog.String("db_name", cfg.Database.Name),
		slog.String("llm_model", cfg.LLM.Model),
	)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
	logger.Info("database ready")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})

	sessions := auth.NewRedisSessionStore(redisClient, cfg.Session.TTL())

	googleProvider := auth.NewGoogleProvider(auth.GoogleConfig{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		DiscoveryURL: cfg.Google.DiscoveryURL,
	})

	llmClient := llm.NewClient(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		APIURL:  cfg.LLM.APIURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout(),
	})

	router := api.NewRouter(cfg, logger)
	api.RegisterRoutes(router, db, sessions, googleProvider, llmClient, redisClient, logger, cfg)

	address := fmt.Sprintf(":%d", cfg.API.Port)
	logger.Info("api listening", slog.String("address", address))

	if err := router.Run(address); err != nil {
		log.Fatalf("failed to start api server: %v", err)
	}
}
