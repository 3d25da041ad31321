package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"decision-core/internal/instance"
)

func (s *Server) getSystemStatus(c *gin.Context) {
	running := 0
	for _, r := range s.Runners {
		if !r.Paused() {
			running++
		}
	}
	equity := 0.0
	if s.Equity != nil {
		equity = s.Equity()
	}
	c.JSON(http.StatusOK, gin.H{
		"version":       s.Meta.Version,
		"use_mock_feed": s.Meta.UseMockFeed,
		"instances":     len(s.Runners),
		"running":       running,
		"equity":        equity,
	})
}

func (s *Server) listInstances(c *gin.Context) {
	statuses := make([]instance.Status, 0, len(s.Runners))
	for _, r := range s.Runners {
		statuses = append(statuses, r.Status())
	}
	c.JSON(http.StatusOK, gin.H{"instances": statuses})
}

func (s *Server) runnerByID(c *gin.Context) (*instance.Runner, bool) {
	r, ok := s.byID[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"code":  "UNKNOWN_INSTANCE",
			"error": "no such instance",
		})
	}
	return r, ok
}

func (s *Server) getInstance(c *gin.Context) {
	r, ok := s.runnerByID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, r.Status())
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		return 50
	}
	return limit
}

func (s *Server) getInstanceDeals(c *gin.Context) {
	r, ok := s.runnerByID(c)
	if !ok {
		return
	}
	if s.Store == nil {
		c.JSON(http.StatusOK, gin.H{"deals": []any{}})
		return
	}
	deals, err := s.Store.RecentDeals(c.Request.Context(), r.ID(), queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "DB_ERROR",
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deals": deals})
}

func (s *Server) getInstanceSummaries(c *gin.Context) {
	r, ok := s.runnerByID(c)
	if !ok {
		return
	}
	if s.Store == nil {
		c.JSON(http.StatusOK, gin.H{"summaries": []any{}})
		return
	}
	summaries, err := s.Store.RecentSummaries(c.Request.Context(), r.ID(), queryLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":  "DB_ERROR",
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"summaries": summaries})
}

func (s *Server) pauseInstance(c *gin.Context) {
	r, ok := s.runnerByID(c)
	if !ok {
		return
	}
	r.Pause()
	c.JSON(http.StatusOK, gin.H{"id": r.ID(), "paused": true})
}

func (s *Server) resumeInstance(c *gin.Context) {
	r, ok := s.runnerByID(c)
	if !ok {
		return
	}
	r.Resume()
	c.JSON(http.StatusOK, gin.H{"id": r.ID(), "paused": false})
}
