package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mangashelf/internal/auth"
	"mangashelf/internal/bookstore"
	"mangashelf/internal/favorites"
	"mangashelf/internal/ingest"
	"mangashelf/internal/metrics"
	"mangashelf/internal/ratelimit"
	"mangashelf/internal/recommend"
	synchub "mangashelf/internal/sync"
	"mangashelf/internal/usage"
	"mangashelf/internal/volumes"
	"mangashelf/pkg/logging"
)

type appDeps struct {
	DB      *sql.DB
	DBPath  string
	Hub     *synchub.Hub
	Catalog *bookstore.Client
	LLM     recommend.Completer
	Keys    *auth.KeyVerifier
	Tokens  auth.TokenService

	RateRPS   float64
	RateBurst int
}

type app struct {
	router *gin.Engine
	ingest *ingest.Service
}

func newApp(d appDeps) *app {
	router := gin.New()
	router.Use(gin.Recovery(), logging.RequestID(), logging.GinLogger())

	// Optional: avoid "trusted all proxies" warning
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.GET("/ws", synchub.WSHandler(d.Hub))
	router.GET("/metrics", metrics.Handler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": d.DBPath})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := d.Hub.Stats()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := d.DB.PingContext(ctx); err != nil {
			logging.Error().Err(err).Msg("readiness db ping failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":      "not_ready",
				"db":          "unavailable",
				"tcp_clients": stats.TCPClients,
				"ws_clients":  stats.WSClients,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"db":          "ok",
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	})

	limiter := ratelimit.New(d.RateRPS, d.RateBurst)
	limited := ratelimit.Middleware(limiter, usage.GinIdentity)

	// Auth
	auth.NewHandler(d.Keys, d.Tokens).RegisterRoutes(router.Group("/auth", limited))

	public := router.Group("")
	protected := router.Group("", auth.RequireOperator(d.Tokens, d.Keys))

	favRepo := favorites.NewRepo(d.DB)
	favHandler := favorites.NewHandler(favRepo, d.Hub)
	favHandler.RegisterPublicRoutes(public)
	favHandler.RegisterProtectedRoutes(protected)

	volRepo := volumes.NewRepo(d.DB)
	volumes.NewHandler(volRepo).RegisterPublicRoutes(public)

	ingestSvc := ingest.NewService(d.Catalog, favRepo, volRepo, d.Hub)
	ingest.NewHandler(ingestSvc).RegisterProtectedRoutes(router.Group("", limited, auth.RequireOperator(d.Tokens, d.Keys)))

	meter := usage.NewMeter(usage.NewRepo(d.DB))
	usage.NewHandler(meter).RegisterPublicRoutes(router.Group("", limited))

	pipeline := recommend.NewPipeline(recommend.NewRecommender(d.LLM), d.Catalog)
	recSvc := recommend.NewService(favRepo, pipeline, meter)
	recommend.NewHandler(recSvc).RegisterPublicRoutes(router.Group("", limited))

	return &app{router: router, ingest: ingestSvc}
}
