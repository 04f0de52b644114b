// Package app wires every Typephoon collaborator together and runs them
// side by side under one errgroup, mirroring cmd/gameserver/main.go's
// build-then-g.Go-everything shape.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AlexFangSW/typephoon/internal/broker"
	"github.com/AlexFangSW/typephoon/internal/cache"
	"github.com/AlexFangSW/typephoon/internal/config"
	"github.com/AlexFangSW/typephoon/internal/consumer"
	"github.com/AlexFangSW/typephoon/internal/httpapi"
	"github.com/AlexFangSW/typephoon/internal/service"
	"github.com/AlexFangSW/typephoon/internal/session"
	"github.com/AlexFangSW/typephoon/internal/store"
	"github.com/AlexFangSW/typephoon/internal/token"
	"github.com/AlexFangSW/typephoon/internal/words"
)

// App owns every long-running component and the http.Server fronting them.
type App struct {
	cfg config.Config

	db     *store.Store
	redis  *cache.Cache
	broker *broker.Broker

	manager *session.Manager
	server  *http.Server

	consumers []namedConsumer
	logger    *slog.Logger
}

type namedConsumer struct {
	name string
	run  func(context.Context) error
}

// Build connects every infra dependency and wires the service/session/http
// layers, but starts nothing (spec §6 "server startup sequence").
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := store.New(ctx, cfg.DB.DSN())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := store.RunMigrations(ctx, cfg.DB.DSN()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	redis := cache.New(cfg.Redis.Addr(), cfg.Redis.DB)

	b, err := broker.Connect(ctx, cfg.AMQP, cfg.Server.ServerName)
	if err != nil {
		db.Close()
		redis.Close()
		return nil, fmt.Errorf("connecting to broker: %w", err)
	}

	tokens, err := token.NewGenerator([]byte(cfg.Token.PrivateKey), cfg.Token.AccessDuration, cfg.Token.RefreshDuration)
	if err != nil {
		return nil, fmt.Errorf("building token generator: %w", err)
	}
	validator, err := token.NewValidator([]byte(cfg.Token.PublicKey))
	if err != nil {
		return nil, fmt.Errorf("building token validator: %w", err)
	}

	wordsGen, err := words.NewFileGenerator(cfg.Game.WordFile)
	if err != nil {
		return nil, fmt.Errorf("loading word list: %w", err)
	}

	games := store.NewGameStore(db)
	users := store.NewUserStore(db)
	results := store.NewGameResultStore(db)

	lobbyTTL := time.Duration(cfg.Redis.ExpireTime) * time.Second
	gameTTL := time.Duration(cfg.Redis.InGameCacheExpireTime) * time.Second
	lobbyCache := cache.NewLobbyCache(redis, lobbyTTL)
	gameCache := cache.NewGameCache(redis, gameTTL)
	guestTokens := cache.NewGuestTokenStore(redis, cfg.Token.RefreshDuration)
	oauthStates := cache.NewOAuthStateStore(redis, 10*time.Minute)

	manager := session.NewManager(nil, logger)

	queueIn := service.NewQueueInService(cfg.Game, games, lobbyCache, gameCache, tokens, validator, guestTokens, b, wordsGen)
	lobbySvc := service.NewLobbyService(games, lobbyCache, gameCache)
	gameSvc := service.NewGameService(gameCache, games, results)
	profileSvc := service.NewProfileService(results)

	googleProvider := service.NewGoogleProvider(cfg.Google)
	authSvc := service.NewAuthService(oauthStates, users, tokens, validator, googleProvider)
	providers := map[string]service.OAuthProvider{"google": googleProvider}

	handlers := httpapi.NewHandlers(httpapi.Deps{
		Config:      cfg,
		Auth:        authSvc,
		Providers:   providers,
		QueueIn:     queueIn,
		Lobby:       lobbySvc,
		Game:        gameSvc,
		Profile:     profileSvc,
		Manager:     manager,
		GuestTokens: guestTokens,
		Validator:   validator,
		Broker:      b,
		DB:          db,
		Redis:       redis,
		Logger:      logger,
	})

	router := httpapi.NewRouter(handlers)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	consumers := []namedConsumer{
		{"lobby-notify", consumer.NewLobbyNotify(b, manager, cfg.Server.ServerName, logger).Run},
		{"lobby-countdown", consumer.NewLobbyCountdown(b, games, queueIn, logger).Run},
		{"game-start", consumer.NewGameStart(b, manager, cfg.Server.ServerName, logger).Run},
		{"keystroke", consumer.NewKeystroke(b, manager, cfg.Server.ServerName, logger).Run},
		{"game-cleanup", consumer.NewGameCleanup(b, games, gameCache, lobbyCache, manager, logger).Run},
	}

	return &App{
		cfg:       cfg,
		db:        db,
		redis:     redis,
		broker:    b,
		manager:   manager,
		server:    server,
		consumers: consumers,
		logger:    logger,
	}, nil
}

// Run starts the session manager, every consumer, and the HTTP server, and
// blocks until one of them fails or ctx is canceled (spec §6 "server
// startup sequence", grounded on cmd/gameserver/main.go's errgroup fan-out).
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.manager.Run()
		return nil
	})

	for _, c := range a.consumers {
		c := c
		g.Go(func() error {
			a.logger.Info("starting consumer", "name", c.name)
			if err := c.run(gctx); err != nil {
				return fmt.Errorf("%s consumer: %w", c.name, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		a.logger.Info("starting http server", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http server shutdown", "error", err)
		}
		a.manager.Cleanup()
		return nil
	})

	return g.Wait()
}

// Close releases every infra connection. Call after Run returns.
func (a *App) Close() {
	a.broker.Close()
	a.redis.Close()
	a.db.Close()
}
