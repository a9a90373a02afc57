package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dkeye/Callbox/internal/adapters/signal"
	"github.com/dkeye/Callbox/internal/app/mirror"
	"github.com/dkeye/Callbox/internal/app/orch"
	"github.com/dkeye/Callbox/internal/config"
	"github.com/dkeye/Callbox/internal/core"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// Deps is everything the router hands requests to. A nil Mirror disables
// the loopback endpoint.
type Deps struct {
	Orch   *orch.Orchestrator
	Hub    *signal.Hub
	Creds  core.CredentialProvider
	Mirror *mirror.Service
}

type iceQuery struct {
	Username string `form:"username" binding:"required"`
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("CallboxSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	one2one := signal.NewSignalWSController(deps.Hub, deps.Orch)
	r.GET("/one2one", func(c *gin.Context) {
		one2one.HandleSignal(ctx, c)
	})
	if deps.Mirror != nil {
		mirrorCtl := signal.NewMirrorWSController(deps.Hub, deps.Mirror)
		r.GET("/magicmirror", func(c *gin.Context) {
			mirrorCtl.HandleSignal(ctx, c)
		})
	}

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"connections": deps.Hub.Len(),
			"users":       len(deps.Orch.Users()),
		})
	})
	api.GET("/users", func(c *gin.Context) {
		c.JSON(http.StatusOK, deps.Orch.Users())
	})
	api.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"client_token": c.GetString("client_token")})
	})
	api.GET("/ice", func(c *gin.Context) {
		var q iceQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
			return
		}
		timeout := cfg.Credentials.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		reqCtx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		ice, err := deps.Creds.Credentials(reqCtx, q.Username)
		if err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Str("user", q.Username).Msg("ice credentials")
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, ice)
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Bool("mirror", deps.Mirror != nil).Msg("router setup")
	return r
}

// NewHandler wraps the engine with CORS. Without an origin allowlist any
// origin is accepted.
func NewHandler(r *gin.Engine, cfg *config.Config) http.Handler {
	if len(cfg.AllowedOrigins) == 0 {
		return cors.Default().Handler(r)
	}
	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowCredentials: true,
	}).Handler(r)
}
