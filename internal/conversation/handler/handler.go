// Package handler exposes the conversation engine over the telephony webhook
// API.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/isaacasamoah/piano-move-ai/internal/conversation/service"
	"github.com/isaacasamoah/piano-move-ai/internal/conversation/transport"
	"github.com/isaacasamoah/piano-move-ai/platform/httpkit"
)

// Handler holds the engine service for the webhook routes.
type Handler struct {
	svc *service.Service
}

func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the call endpoints on the given group, typically
// /api/v1/calls behind webhook authentication.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.StartCall)
	rg.POST("/:id/turns", h.Turn)
	rg.DELETE("/:id", h.EndCall)
	rg.GET("/stats", h.Stats)
}

// StartCall handles POST /calls.
func (h *Handler) StartCall(c *gin.Context) {
	var req transport.StartCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "callId, from, and to are required", nil)
		return
	}

	res, err := h.svc.Begin(c.Request.Context(), req.CallID, req.From, req.To)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, transport.FromTurnResult(res))
}

// Turn handles POST /calls/:id/turns.
func (h *Handler) Turn(c *gin.Context) {
	var req transport.TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid turn payload", nil)
		return
	}

	res, err := h.svc.Advance(c.Request.Context(), c.Param("id"), req.Utterance)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.FromTurnResult(res))
}

// EndCall handles DELETE /calls/:id.
func (h *Handler) EndCall(c *gin.Context) {
	if err := h.svc.End(c.Request.Context(), c.Param("id")); httpkit.HandleError(c, err) {
		return
	}
	httpkit.NoContent(c)
}

// Stats handles GET /calls/stats.
func (h *Handler) Stats(c *gin.Context) {
	n, err := h.svc.ActiveCalls(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.StatsResponse{ActiveCalls: n})
}
