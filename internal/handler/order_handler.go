package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/crm-orders-api/internal/models"
	"github.com/noah-isme/crm-orders-api/internal/service"
	appErrors "github.com/noah-isme/crm-orders-api/pkg/errors"
	"github.com/noah-isme/crm-orders-api/pkg/response"
)

// OrderHandler exposes the order endpoints.
type OrderHandler struct {
	orders  *service.OrderService
	exports *service.ExportService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(orders *service.OrderService, exports *service.ExportService) *OrderHandler {
	return &OrderHandler{orders: orders, exports: exports}
}

// List godoc
// @Summary List orders
// @Tags Orders
// @Produce json
// @Param name query string false "Substring match on name"
// @Param surname query string false "Substring match on surname"
// @Param email query string false "Substring match on email"
// @Param phone query string false "Substring match on phone"
// @Param age query int false "Exact age"
// @Param course query string false "Exact course"
// @Param course_format query string false "Exact course format"
// @Param course_type query string false "Exact course type"
// @Param status query string false "Exact status"
// @Param group query string false "Exact group"
// @Param manager query string false "Manager first name"
// @Param created_at query string false "Creation date (YYYY-MM-DD)"
// @Param ordering query string false "Sort column, prefix with - for descending"
// @Param page query int false "Page"
// @Success 200 {object} response.Envelope
// @Router /orders [get]
func (h *OrderHandler) List(c *gin.Context) {
	filter := orderFilterFromQuery(c)

	orders, pagination, err := h.orders.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, orders, pagination)
}

// Get godoc
// @Summary Get order detail
// @Tags Orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Envelope
// @Router /orders/{id} [get]
func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, order, nil)
}

// Update godoc
// @Summary Update order
// @Description Partially update an order; the caller claims the order unless an admin reassigns it
// @Tags Orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param payload body service.OrderPatch true "Fields to update"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /orders/{id} [patch]
func (h *OrderHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var patch service.OrderPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	order, err := h.orders.Update(c.Request.Context(), c.Param("id"), patch, claims.UserID, claims.Role == models.RoleAdmin)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, order, nil)
}

// AssignGroup godoc
// @Summary Assign order to a group
// @Tags Orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param payload body object true "Group name"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /orders/{id}/group [post]
func (h *OrderHandler) AssignGroup(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Group string `json:"group" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "group required"))
		return
	}

	order, err := h.orders.AssignGroup(c.Request.Context(), c.Param("id"), payload.Group, claims.UserID, claims.Role == models.RoleAdmin)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, order, nil)
}

// Export godoc
// @Summary Export filtered orders
// @Description Download the filtered order book as a spreadsheet
// @Tags Orders
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param format query string false "xlsx, csv or pdf" default(xlsx)
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /orders/export [get]
func (h *OrderHandler) Export(c *gin.Context) {
	filter := orderFilterFromQuery(c)

	result, err := h.exports.Export(c.Request.Context(), filter, c.DefaultQuery("format", service.FormatXLSX))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.ContentType, result.Filename, result.Payload)
}

func orderFilterFromQuery(c *gin.Context) models.OrderFilter {
	var filter models.OrderFilter
	filter.Name = strings.TrimSpace(c.Query("name"))
	filter.Surname = strings.TrimSpace(c.Query("surname"))
	filter.Email = strings.TrimSpace(c.Query("email"))
	filter.Phone = strings.TrimSpace(c.Query("phone"))
	filter.Course = c.Query("course")
	filter.CourseFormat = c.Query("course_format")
	filter.CourseType = c.Query("course_type")
	filter.Status = c.Query("status")
	filter.Group = c.Query("group")
	filter.Manager = strings.TrimSpace(c.Query("manager"))
	filter.CreatedAt = c.Query("created_at")
	filter.Ordering = c.Query("ordering")

	filter.Age = intQuery(c, "age")
	filter.Sum = intQuery(c, "sum")
	filter.AlreadyPaid = intQuery(c, "already_paid")

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	return filter
}

func intQuery(c *gin.Context, key string) *int {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &v
}
