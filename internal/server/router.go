package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flock-server/internal/handler"
	"flock-server/internal/hub"
	"flock-server/internal/metrics"
	"flock-server/internal/middleware"
	"flock-server/internal/store"
)

type Deps struct {
	Store *store.Store
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	registry := hub.NewRegistry()
	var channels *hub.Channels
	channels = hub.NewChannels(func(c *hub.Conn) {
		// A failed delivery means the subscriber's transport is gone;
		// reap it everywhere so the next publish skips it entirely.
		registry.Deregister(c)
		channels.UnsubscribeAll(c)
		metrics.DeadConnections.Inc()
	})

	groupLimiter := middleware.NewRateLimiter(30, time.Minute)
	groupHandler := &handler.GroupHandler{Store: deps.Store}

	groups := r.Group("/api/groups")
	groups.POST("/create", middleware.RateLimit(groupLimiter), groupHandler.Create)
	groups.POST("/join", middleware.RateLimit(groupLimiter), groupHandler.Join)
	groups.GET("/:groupId/members", groupHandler.Members)

	wsHandler := &handler.WebSocketHandler{Registry: registry, Channels: channels, Store: deps.Store}
	r.GET("/ws", wsHandler.Serve)

	return r
}
