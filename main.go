package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/SaravananS30/Video-Q-A-with-gemini/internal/api"
	"github.com/SaravananS30/Video-Q-A-with-gemini/internal/assistant"
	"github.com/SaravananS30/Video-Q-A-with-gemini/internal/config"
	"github.com/SaravananS30/Video-Q-A-with-gemini/internal/gateway"
	"github.com/SaravananS30/Video-Q-A-with-gemini/internal/ingest"
	"github.com/SaravananS30/Video-Q-A-with-gemini/internal/session"
	"github.com/SaravananS30/Video-Q-A-with-gemini/internal/worker"
)

func main() {
	cfgPath := os.Getenv("VIDEOQA_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	identity, err := session.StrategyFor(cfg.BasicConfig.UploadIdentity)
	if err != nil {
		log.Fatalf("configure upload identity: %v", err)
	}
	log.Printf("upload identity strategy: %s", identity.Name())

	sessions := session.NewManager(gateway.NewGemini, identity, assistant.TitlerFactory)
	controller := ingest.NewController(cfg.BasicConfig.StagingDir, cfg.MaxUploadBytes(), cfg.PollInterval(), cfg.IngestTimeout())
	workers := worker.NewManager(cfg.BasicConfig.WorkerQueueSize, cfg.WorkerIdle())
	defer workers.Stop()

	janitorCtx, janitorCancel := context.WithCancel(context.Background())
	defer janitorCancel()
	sessions.StartJanitor(janitorCtx, cfg.CleanInterval(), cfg.SessionTTL(), workers.Purge)

	handlers := api.NewHandler(cfg, sessions, controller, workers)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	if err := router.Run(cfg.BasicConfig.ServerAddress); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
