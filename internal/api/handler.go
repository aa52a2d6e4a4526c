package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"commission-service/internal/engine"
	"commission-service/internal/models"
	"commission-service/internal/service"
	"commission-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Handler contains HTTP handlers
type Handler struct {
	settlementService *service.SettlementService
}

// NewHandler creates a new HTTP handler
func NewHandler(settlementService *service.SettlementService) *Handler {
	return &Handler{
		settlementService: settlementService,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/overview", h.getOverview)

		primaries := v1.Group("/primaries/:id")
		{
			primaries.GET("/settlement", h.getPrimarySettlement)
			primaries.PUT("/rate", h.updateRate(models.TierPrimary))
			primaries.POST("/payouts", h.recordPayout(models.TierPrimary))
		}

		secondaries := v1.Group("/secondaries/:id")
		{
			secondaries.GET("/settlement", h.getSecondarySettlement)
			secondaries.PUT("/rate", h.updateRate(models.TierSecondary))
			secondaries.POST("/payouts", h.recordPayout(models.TierSecondary))
			secondaries.POST("/unlink", h.unlinkSecondary)
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// getPrimarySettlement returns a primary agent's settlement for one window.
func (h *Handler) getPrimarySettlement(c *gin.Context) {
	agentID, ok := agentIDParam(c)
	if !ok {
		return
	}
	window, ok := windowQuery(c)
	if !ok {
		return
	}

	settlement, err := h.settlementService.GetPrimarySettlement(c.Request.Context(), agentID, window)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, settlement)
}

// getSecondarySettlement returns a secondary agent's settlement for one
// window. Independent and orphaned secondaries use the same route.
func (h *Handler) getSecondarySettlement(c *gin.Context) {
	agentID, ok := agentIDParam(c)
	if !ok {
		return
	}
	window, ok := windowQuery(c)
	if !ok {
		return
	}

	settlement, err := h.settlementService.GetSecondarySettlement(c.Request.Context(), agentID, window)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, settlement)
}

// getOverview returns the system-wide rollup for one window.
func (h *Handler) getOverview(c *gin.Context) {
	window, ok := windowQuery(c)
	if !ok {
		return
	}

	overview, err := h.settlementService.GetSystemOverview(c.Request.Context(), window)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, overview)
}

type updateRateRequest struct {
	Rate decimal.Decimal `json:"rate" binding:"required"`
}

// updateRate sets an agent's commission rate.
func (h *Handler) updateRate(tier models.AgentTier) gin.HandlerFunc {
	return func(c *gin.Context) {
		agentID, ok := agentIDParam(c)
		if !ok {
			return
		}

		var req updateRateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request body",
				"details": err.Error(),
			})
			return
		}

		if err := h.settlementService.UpdateRate(c.Request.Context(), tier, agentID, req.Rate); err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"agent_id": agentID,
			"tier":     tier,
			"rate":     req.Rate,
		})
	}
}

type recordPayoutRequest struct {
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Note      string          `json:"note"`
	EnteredBy string          `json:"entered_by"`
}

// recordPayout stores an administrator-entered payout.
func (h *Handler) recordPayout(tier models.AgentTier) gin.HandlerFunc {
	return func(c *gin.Context) {
		agentID, ok := agentIDParam(c)
		if !ok {
			return
		}

		var req recordPayoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request body",
				"details": err.Error(),
			})
			return
		}

		payout, err := h.settlementService.RecordPayout(c.Request.Context(), tier, agentID, req.Amount, req.Note, req.EnteredBy)
		if err != nil {
			writeError(c, err)
			return
		}

		c.JSON(http.StatusCreated, payout)
	}
}

// unlinkSecondary severs a secondary's parent link.
func (h *Handler) unlinkSecondary(c *gin.Context) {
	agentID, ok := agentIDParam(c)
	if !ok {
		return
	}

	if err := h.settlementService.UnlinkSecondary(c.Request.Context(), agentID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"agent_id": agentID,
		"status":   models.AgentStatusRemoved,
	})
}

func agentIDParam(c *gin.Context) (int64, bool) {
	agentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid agent ID",
		})
		return 0, false
	}
	return agentID, true
}

func windowQuery(c *gin.Context) (engine.Window, bool) {
	window, err := engine.ParseWindow(c.Query("window"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid time window",
			"details": err.Error(),
		})
		return "", false
	}
	return window, true
}

// writeError maps domain errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrAgentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
	case errors.Is(err, models.ErrInvalidRate),
		errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrNotLinked),
		errors.Is(err, models.ErrUnknownWindow):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrCurrencyMismatch):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal error",
			"details": err.Error(),
		})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
