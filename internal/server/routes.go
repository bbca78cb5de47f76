// Package server exposes a small diagnostics HTTP surface over the
// adapter: open sessions, probe history and recent events.
package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mantonx/avinput/internal/catalog"
	"github.com/mantonx/avinput/internal/events"
	"github.com/mantonx/avinput/internal/input"
	"github.com/mantonx/avinput/internal/logger"
)

// Server serves diagnostics for one running plugin instance. Store and
// bus are optional; their routes report 404 when absent.
type Server struct {
	plugin *input.Plugin
	store  *catalog.Store
	bus    events.EventBus
}

// New creates a diagnostics server.
func New(plugin *input.Plugin, store *catalog.Store, bus events.EventBus) *Server {
	return &Server{plugin: plugin, store: store, bus: bus}
}

// RegisterRoutes registers the diagnostics routes
func (s *Server) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.GET("/status", s.getStatus)
		api.GET("/sessions", s.getSessions)
		api.GET("/probes", s.getProbes)
		api.GET("/events", s.getEvents)
	}
}

// Run serves the diagnostics API on addr, blocking.
func (s *Server) Run(addr string) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	s.RegisterRoutes(router)

	logger.Info("diagnostics server listening on %s", addr)
	return router.Run(addr)
}

func (s *Server) getStatus(c *gin.Context) {
	info := s.plugin.Info()
	c.JSON(http.StatusOK, gin.H{
		"plugin":        info,
		"open_sessions": len(s.plugin.Adapter().Sessions()),
	})
}

func (s *Server) getSessions(c *gin.Context) {
	sessions := s.plugin.Adapter().Sessions()
	out := make([]gin.H, 0, len(sessions))
	for handle, path := range sessions {
		out = append(out, gin.H{"handle": string(handle), "path": path})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out, "count": len(out)})
}

func (s *Server) getProbes(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "probe catalog not configured"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := s.store.Recent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"probes": records, "count": len(records)})
}

func (s *Server) getEvents(c *gin.Context) {
	if s.bus == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event bus not configured"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list := s.bus.GetEvents(limit)
	c.JSON(http.StatusOK, gin.H{"events": list, "count": len(list)})
}
