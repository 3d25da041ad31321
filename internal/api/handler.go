// Package api exposes the read-only control surface of the decision core:
// health, instance status, the trade journal, and pause/resume switches.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"decision-core/internal/instance"
	"decision-core/internal/monitor"
	"decision-core/pkg/db"
)

// Server wires HTTP endpoints around the running instances and the journal.
type Server struct {
	Router      *gin.Engine
	Store       *db.Store
	Runners     []*instance.Runner
	Equity      func() float64
	JWTSecret   string
	AdminSecret string
	Meta        SystemMeta

	byID map[string]*instance.Runner
}

// SystemMeta describes runtime status exposed to clients.
type SystemMeta struct {
	UseMockFeed bool
	Version     string
}

// NewServer builds the router and registers all routes.
func NewServer(store *db.Store, runners []*instance.Runner, equity func() float64, jwtSecret, adminSecret string, meta SystemMeta) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(CORSMiddleware())

	s := &Server{
		Router:      r,
		Store:       store,
		Runners:     runners,
		Equity:      equity,
		JWTSecret:   jwtSecret,
		AdminSecret: adminSecret,
		Meta:        meta,
		byID:        make(map[string]*instance.Runner, len(runners)),
	}
	for _, runner := range runners {
		s.byID[runner.ID()] = runner
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/metrics", gin.WrapH(monitor.Handler()))

	api := s.Router.Group("/api")
	{
		api.GET("/system/status", s.getSystemStatus)
		api.POST("/auth/login", s.login)

		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.GET("/instances", s.listInstances)
			protected.GET("/instances/:id", s.getInstance)
			protected.GET("/instances/:id/deals", s.getInstanceDeals)
			protected.GET("/instances/:id/summaries", s.getInstanceSummaries)
			protected.POST("/instances/:id/pause", s.pauseInstance)
			protected.POST("/instances/:id/resume", s.resumeInstance)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
