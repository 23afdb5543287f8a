package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sharmavijay45/Infiverse-BHL-sub000/database"
	"github.com/sharmavijay45/Infiverse-BHL-sub000/monitoring"
	"github.com/sharmavijay45/Infiverse-BHL-sub000/storage"
)

type apiServer struct {
	engine    *monitoring.Engine
	whitelist *monitoring.Whitelist
	alerts    *monitoring.AlertFactory
	db        *database.Database
	storage   *storage.Storage
	registry  *prometheus.Registry
}

func (s *apiServer) routes(router *gin.Engine) {
	router.GET("/health", s.healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	{
		api.POST("/monitoring/start", s.startMonitoringHandler)
		api.POST("/monitoring/stop", s.stopMonitoringHandler)
		api.GET("/monitoring/employees", s.employeesHandler)
		api.GET("/monitoring/status/:employeeID", s.statusHandler)
		api.GET("/monitoring/stats/:employeeID", s.statsHandler)

		api.POST("/activity", s.activityHandler)
		api.POST("/application", s.applicationHandler)

		api.GET("/whitelist", s.getWhitelistHandler)
		api.PUT("/whitelist", s.putWhitelistHandler)

		api.POST("/alerts/:alertID/acknowledge", s.alertActionHandler(s.alerts.Acknowledge))
		api.POST("/alerts/:alertID/resolve", s.alertActionHandler(s.alerts.Resolve))
		api.POST("/alerts/:alertID/dismiss", s.alertActionHandler(s.alerts.Dismiss))
		api.GET("/alerts/history", s.alertHistoryHandler)

		api.GET("/evidence/:employeeID", s.listEvidenceHandler)
		api.GET("/evidence/:employeeID/url", s.evidenceURLHandler)
	}
}

func (s *apiServer) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"monitored": len(s.engine.ActiveEmployees()),
	})
}

func (s *apiServer) startMonitoringHandler(c *gin.Context) {
	var req struct {
		EmployeeID string `json:"employee_id" binding:"required"`
		SessionID  string `json:"session_id"`
		Mode       string `json:"mode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	err := s.engine.Start(c.Request.Context(), req.EmployeeID, req.SessionID, monitoring.Mode(req.Mode))
	switch {
	case errors.Is(err, monitoring.ErrAlreadyMonitored):
		c.JSON(http.StatusConflict, gin.H{"error": "Employee already monitored"})
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}

func (s *apiServer) stopMonitoringHandler(c *gin.Context) {
	var req struct {
		EmployeeID string `json:"employee_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := s.engine.Stop(c.Request.Context(), req.EmployeeID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Employee not monitored"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *apiServer) employeesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"employees": s.engine.ActiveEmployees()})
}

func (s *apiServer) statusHandler(c *gin.Context) {
	status, err := s.engine.Status(c.Param("employeeID"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Employee not monitored"})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *apiServer) statsHandler(c *gin.Context) {
	stats, err := s.engine.Stats(c.Param("employeeID"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Employee not monitored"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// activityHandler receives input counters reported by an endpoint agent.
func (s *apiServer) activityHandler(c *gin.Context) {
	var req struct {
		EmployeeID string  `json:"employee_id" binding:"required"`
		Keystrokes uint32  `json:"keystrokes"`
		MouseScore float64 `json:"mouse_activity_score"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := s.engine.RecordInput(req.EmployeeID, req.Keystrokes, req.MouseScore); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Employee not monitored"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// applicationHandler receives an externally detected context change, e.g.
// from a browser extension that sees the real URL.
func (s *apiServer) applicationHandler(c *gin.Context) {
	var req struct {
		EmployeeID string `json:"employee_id" binding:"required"`
		Name       string `json:"name"`
		URL        string `json:"url"`
		Title      string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	evt := monitoring.AppEvent{Name: req.Name, URL: req.URL, Title: req.Title}
	if err := s.engine.HandleApplicationChange(req.EmployeeID, evt); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Employee not monitored"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *apiServer) getWhitelistHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"entries": s.whitelist.Entries()})
}

func (s *apiServer) putWhitelistHandler(c *gin.Context) {
	var req struct {
		Entries []*monitoring.WhitelistEntry `json:"entries" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	s.whitelist.SetEntries(req.Entries)
	c.JSON(http.StatusOK, gin.H{"status": "success", "entries": len(req.Entries)})
}

func (s *apiServer) alertActionHandler(action func(ctx context.Context, alertID, user, notes string) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			User  string `json:"user"`
			Notes string `json:"notes"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}

		if err := action(c.Request.Context(), c.Param("alertID"), req.User, req.Notes); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}

func (s *apiServer) alertHistoryHandler(c *gin.Context) {
	employeeID := c.Query("employee_id")
	if employeeID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "employee_id required"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	events, err := s.db.AlertHistory(c.Request.Context(), employeeID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alert history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *apiServer) listEvidenceHandler(c *gin.Context) {
	objects, err := s.storage.ListEvidence(c.Request.Context(), c.Param("employeeID"), c.Query("day"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list evidence"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"objects": objects})
}

func (s *apiServer) evidenceURLHandler(c *gin.Context) {
	object := c.Query("object")
	if object == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "object required"})
		return
	}

	url, err := s.storage.GetPresignedURL(c.Request.Context(), object)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate URL"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
