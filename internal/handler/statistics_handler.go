package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/crm-orders-api/internal/middleware"
	"github.com/noah-isme/crm-orders-api/internal/service"
	"github.com/noah-isme/crm-orders-api/pkg/response"
)

// StatisticsHandler exposes the statistics endpoints.
type StatisticsHandler struct {
	statistics *service.StatisticsService
}

// NewStatisticsHandler constructs StatisticsHandler.
func NewStatisticsHandler(statistics *service.StatisticsService) *StatisticsHandler {
	return &StatisticsHandler{statistics: statistics}
}

// Orders godoc
// @Summary Order statistics
// @Description Per-status counts over the whole order book
// @Tags Statistics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/statistic/orders [get]
func (h *StatisticsHandler) Orders(c *gin.Context) {
	stats, cacheHit, err := h.statistics.GlobalStatusCounts(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}

// Manager godoc
// @Summary Manager statistics
// @Description Per-status counts over one manager's orders
// @Tags Statistics
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/statistic/users/{id} [get]
func (h *StatisticsHandler) Manager(c *gin.Context) {
	stats, cacheHit, err := h.statistics.ManagerStatusCounts(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}
