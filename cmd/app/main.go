package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"skillpath_miniapp/internal/api"
	"skillpath_miniapp/internal/middleware"
	"skillpath_miniapp/internal/repository"
	"skillpath_miniapp/internal/service"
	"skillpath_miniapp/pkg/auth"
	"skillpath_miniapp/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	err = logger.Initialize(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zapLogger := logger.Logger()

	repo, err := repository.New(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	var rewardBot *service.RewardBot
	if cfg.Quest.RewardBotEnabled {
		rewardBot, err = service.NewRewardBot(service.RewardBotConfig{
			BotToken: cfg.TelegramAuth.TelegramBotToken,
			Debug:    cfg.TelegramAuth.DebugMode,
		})
		if err != nil {
			zapLogger.Fatal("Failed to initialize reward bot", zap.Error(err))
		}
	}

	events := service.NewQuestNotifier()
	userService := service.NewUserService(repo)
	challengeService := service.NewChallengeService(repo)
	questService := service.NewWeeklyQuestService(repo, repo, repo, events, rewardBot, cfg.Quest.ToService())

	telegramAuth := auth.NewTelegramAuth(cfg.TelegramAuth.TelegramBotToken, cfg.TelegramAuth.DebugMode)
	authz := middleware.NewAuthorization(userService)

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{
		http.MethodHead,
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
	}
	corsConfig.AllowHeaders = []string{"*"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour

	router.Use(cors.New(corsConfig))

	a := router.Group("/api/v1")
	api.NewUserRoutes(a, userService, telegramAuth)
	api.NewWeeklyQuestRoutes(a, questService, events, telegramAuth)
	api.NewChallengeRoutes(a, challengeService, authz, telegramAuth)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	zapLogger.Info("Starting server", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		zapLogger.Fatal("Failed to start server", zap.Error(err))
	}
}
