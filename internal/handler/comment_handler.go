package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/crm-orders-api/internal/service"
	appErrors "github.com/noah-isme/crm-orders-api/pkg/errors"
	"github.com/noah-isme/crm-orders-api/pkg/response"
)

// CommentHandler exposes the order comment endpoints.
type CommentHandler struct {
	comments *service.CommentService
}

// NewCommentHandler constructs CommentHandler.
func NewCommentHandler(comments *service.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

// Create godoc
// @Summary Comment on an order
// @Description Add a comment; the commenting manager claims the order as a side effect
// @Tags Comments
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param payload body service.CreateCommentRequest true "Comment payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /orders/{id}/comments [post]
func (h *CommentHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.OrderID = c.Param("id")

	comment, err := h.comments.Create(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

// List godoc
// @Summary List comments for an order
// @Tags Comments
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /orders/{id}/comments [get]
func (h *CommentHandler) List(c *gin.Context) {
	list, err := h.comments.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, nil)
}
