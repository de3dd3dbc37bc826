package main

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"

	"whatstasker/internal/adapter/bridge"
	dbadapter "whatstasker/internal/adapter/db"
	"whatstasker/internal/adapter/gcal"
	httpadapter "whatstasker/internal/adapter/http"
	"whatstasker/internal/adapter/http/handlers"
	httpmiddleware "whatstasker/internal/adapter/http/middleware"
	"whatstasker/internal/adapter/reasoner"
	"whatstasker/internal/adapter/scheduler"
	"whatstasker/internal/app/service"
	"whatstasker/internal/config"
	"whatstasker/internal/core/ports"
	"whatstasker/pkg/messages"
	"whatstasker/pkg/translator"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	// Make zap available to packages that log through zap.L().
	zap.ReplaceGlobals(logger)
	defer func() {
		if err := logger.Sync(); err != nil {
			zap.L().Debug("failed to sync logger", zap.Error(err))
		}
	}()

	cfg := config.LoadConfig()

	translator.InitTranslator(translator.Config{
		TranslationFolder:  cfg.Translations,
		SupportedLanguages: []string{translator.LanguageFr, translator.LanguageEn},
	})

	db, err := dbadapter.ConnectDB(cfg.DbPath)
	if err != nil {
		logger.Fatal("failed to open sqlite store", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("failed to close sqlite store", zap.Error(err))
		}
	}()
	repo := dbadapter.NewItemRepository(db)

	tokens, err := gcal.NewFileTokenStore(cfg.GoogleTokenDir)
	if err != nil {
		logger.Fatal("failed to prepare token store", zap.Error(err))
	}
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURI,
		Scopes:       []string{calendar.CalendarEventsScope},
		Endpoint:     google.Endpoint,
	}
	gateway := gcal.NewGateway(oauthConfig, tokens)
	authFlow := gcal.NewAuthFlow(oauthConfig, tokens, gateway)

	queue := bridge.NewQueue()
	catalog := messages.Load(cfg.MessagesPath)
	negotiator := service.NewNegotiator(repo, gateway)

	var brain ports.Reasoner
	if cfg.ReasonerURL != "" {
		brain = reasoner.NewClient(cfg.ReasonerURL)
	} else {
		logger.Warn("no reasoning service configured, replies will be static")
		brain = reasoner.Static{Message: "I'm not fully set up yet. Please try again later."}
	}
	orchestrator := service.NewOrchestrator(repo, gateway, negotiator, brain, queue)

	routine := service.NewRoutineService(repo, gateway, queue, catalog)
	syncService := service.NewSyncService(repo, gateway)
	jobs := scheduler.New(routine, syncService)
	if err := jobs.Start(cfg.RoutineCron); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer jobs.Stop()

	r := gin.New()
	r.Use(gin.Recovery(), httpmiddleware.GinZapMiddleware(logger))
	if len(cfg.TrustedProxies) > 0 {
		if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			logger.Fatal("invalid trusted proxies", zap.Error(err))
		}
	}

	healthHandler := handlers.NewHealthHandler(db)
	bridgeHandler := handlers.NewBridgeHandler(orchestrator, queue)
	itemHandler := handlers.NewItemHandler(repo)
	negotiationHandler := handlers.NewNegotiationHandler(negotiator, repo)
	oauthHandler := handlers.NewOAuthHandler(authFlow, repo)
	httpadapter.RegisterRoutes(r, healthHandler, bridgeHandler, itemHandler, negotiationHandler, oauthHandler)

	addr := ":" + cfg.AppPort
	logger.Info("starting server", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		logger.Fatal("could not start server", zap.Error(err))
	}
}
