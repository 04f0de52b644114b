// Package httpapi is the gin REST surface sitting in front of the service
// layer: auth, lobby, game, profile, and healthcheck routes, plus the two
// streaming upgrades (spec §6, grounded on
// other_examples/Byabasaija-playpool's gin+gorilla/websocket handlers).
package httpapi

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AlexFangSW/typephoon/internal/apperr"
	"github.com/AlexFangSW/typephoon/internal/broker"
	"github.com/AlexFangSW/typephoon/internal/cache"
	"github.com/AlexFangSW/typephoon/internal/config"
	"github.com/AlexFangSW/typephoon/internal/service"
	"github.com/AlexFangSW/typephoon/internal/session"
	"github.com/AlexFangSW/typephoon/internal/store"
	"github.com/AlexFangSW/typephoon/internal/token"
)

// Handlers wires every service-layer collaborator the REST surface needs.
// One instance is shared by every route; gin handlers are bound methods on
// it, mirroring the teacher's pattern of a server struct owning its route
// handlers (cmd/gameserver's *Server types).
type Handlers struct {
	cfg config.Config

	auth      *service.AuthService
	providers map[string]service.OAuthProvider
	queueIn   *service.QueueInService
	lobby     *service.LobbyService
	game      *service.GameService
	profile   *service.ProfileService

	manager     *session.Manager
	guestTokens *cache.GuestTokenStore
	validator   *token.Validator

	broker *broker.Broker
	db     *store.Store
	redis  *cache.Cache

	logger *slog.Logger
}

// Deps groups the constructor arguments for Handlers; one field per
// service-layer collaborator plus the infra handles healthcheck pings.
type Deps struct {
	Config config.Config

	Auth      *service.AuthService
	Providers map[string]service.OAuthProvider
	QueueIn   *service.QueueInService
	Lobby     *service.LobbyService
	Game      *service.GameService
	Profile   *service.ProfileService

	Manager     *session.Manager
	GuestTokens *cache.GuestTokenStore
	Validator   *token.Validator

	Broker *broker.Broker
	DB     *store.Store
	Redis  *cache.Cache

	Logger *slog.Logger
}

// NewHandlers builds a Handlers from Deps.
func NewHandlers(d Deps) *Handlers {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		cfg:         d.Config,
		auth:        d.Auth,
		providers:   d.Providers,
		queueIn:     d.QueueIn,
		lobby:       d.Lobby,
		game:        d.Game,
		profile:     d.Profile,
		manager:     d.Manager,
		guestTokens: d.GuestTokens,
		validator:   d.Validator,
		broker:      d.Broker,
		db:          d.DB,
		redis:       d.Redis,
		logger:      logger,
	}
}

// upgrader is shared by both streaming endpoints. It accepts every origin;
// the CORS middleware only adds headers for allowed origins and rejects
// none, so the handshake itself is not origin-checked.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewRouter builds the full gin.Engine: CORS middleware plus every route
// group (spec §6 "HTTP surface").
func NewRouter(h *Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(h.corsMiddleware())

	auth := r.Group("/auth")
	auth.POST("/:provider/login", h.login)
	auth.GET("/:provider/login-redirect", h.loginRedirect)
	auth.POST("/logout", h.logout)
	auth.POST("/token-refresh", h.tokenRefresh)
	auth.GET("/guest-token", h.guestToken)

	lobby := r.Group("/lobby")
	lobby.GET("/players", h.lobbyPlayers)
	lobby.GET("/countdown", h.lobbyCountdown)
	lobby.GET("/queue-in/ws", h.lobbyQueueInWS)

	game := r.Group("/game")
	game.GET("/countdown", h.gameCountdown)
	game.POST("/statistics", h.postGameStatistics)
	game.GET("/statistics", h.getGameStatistics)
	game.GET("/words", h.gameWords)
	game.GET("/ws", h.gameWS)

	profile := r.Group("/profile")
	profile.GET("/statistics", h.profileStatistics)
	profile.GET("/graph", h.profileGraph)
	profile.GET("/history", h.profileHistory)

	health := r.Group("/healthcheck")
	health.GET("/alive", h.alive)
	health.GET("/ready", h.ready)

	return r
}

// providerFor looks up the OAuth provider named by the :provider path
// param. Returns apperr.CodeValidation for an unregistered name.
func (h *Handlers) providerFor(name string) (service.OAuthProvider, error) {
	p, ok := h.providers[name]
	if !ok {
		return nil, apperr.New(apperr.CodeValidation, "unknown oauth provider: "+name)
	}
	return p, nil
}

// corsMiddleware allows only the configured origins to carry credentialed
// requests (cookies), per cors.allow_origins (spec §6 "server/cors").
func (h *Handlers) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && slices.Contains(h.cfg.CORS.AllowOrigins, origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
