package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bhandras/kubechat/internal/api/handlers"
	"github.com/bhandras/kubechat/internal/api/middleware"
	"github.com/bhandras/kubechat/internal/config"
	"github.com/bhandras/kubechat/internal/engine"
	"github.com/bhandras/kubechat/internal/engine/fakeengine"
	"github.com/bhandras/kubechat/internal/engine/gptscriptengine"
	"github.com/bhandras/kubechat/internal/session"
	"github.com/bhandras/kubechat/internal/tools"
	"github.com/bhandras/kubechat/internal/version"
	"github.com/bhandras/kubechat/internal/websocket"
	"github.com/bhandras/kubechat/shared/logger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const readHeaderTimeout = 10 * time.Second

type app struct {
	cfg     *config.Config
	engine  engine.Client
	manager *session.Manager
	ws      *websocket.Server
	router  *gin.Engine
}

func newEngine(cfg *config.Config) (engine.Client, error) {
	switch cfg.Engine {
	case config.EngineFake:
		logger.Warnf("Using the fake engine; replies are canned")
		return fakeengine.New(), nil
	default:
		client, err := gptscriptengine.New(gptscriptengine.Config{
			URL:           cfg.GPTScript.URL,
			OpenAIAPIKey:  cfg.GPTScript.OpenAIAPIKey,
			OpenAIBaseURL: cfg.GPTScript.OpenAIBaseURL,
			DefaultModel:  cfg.GPTScript.DefaultModel,
		})
		if err != nil {
			return nil, fmt.Errorf("start gptscript engine: %w", err)
		}
		return client, nil
	}
}

func newApp(cfg *config.Config, client engine.Client) (*app, error) {
	instructions, err := tools.LoadInstructions(cfg.ToolsDir)
	if err != nil {
		return nil, err
	}
	catalog := tools.NewCatalog(instructions)

	store := session.NewStore()
	machine := session.NewMachine(store, client, catalog, nil)
	manager := session.NewManager(machine, store, session.ManagerConfig{
		SessionTTL: cfg.SessionTTL,
	})
	ws := websocket.NewServer(manager, websocket.Config{
		WriteTimeout: cfg.WriteTimeout,
		ReadLimit:    cfg.ReadLimit,
	})

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"*"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))
	router.Use(middleware.LoggingMiddleware())

	health := handlers.NewHealthHandler(manager, ws)
	router.GET("/", handlers.Root(ws))
	router.GET("/healthz", health.GetHealth)

	return &app{
		cfg:     cfg,
		engine:  client,
		manager: manager,
		ws:      ws,
		router:  router,
	}, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	client, err := newEngine(cfg)
	if err != nil {
		logger.Errorf("Failed to create engine: %v", err)
		return err
	}
	defer func() { _ = client.Close() }()

	a, err := newApp(cfg, client)
	if err != nil {
		logger.Errorf("Failed to initialize server: %v", err)
		return err
	}
	return a.run(ctx)
}

// run serves HTTP until ctx is done, then drains connections and sessions.
func (a *app) run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           a.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("kubechat server %s listening on %s (engine=%s)", version.String(), a.cfg.Addr, a.cfg.Engine)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.manager.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Infof("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()

		// Upgraded connections are not tracked by http.Server.
		a.ws.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})

	return g.Wait()
}
