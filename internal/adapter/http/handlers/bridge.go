package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"whatstasker/internal/adapter/bridge"
	"whatstasker/internal/adapter/http/dto"
	"whatstasker/internal/adapter/http/middleware"
	"whatstasker/pkg/apierrors"
)

// IncomingHandler is the orchestrator entry point for one inbound
// message; kept as an interface so bridge handler tests can mock it.
type IncomingHandler interface {
	HandleIncoming(ctx context.Context, owner, message string) error
}

// BridgeHandler exposes the chat bridge endpoints: the bridge process
// pushes user messages in, polls outgoing replies and acknowledges
// delivered ones. Outgoing never clears on read.
type BridgeHandler struct {
	incoming IncomingHandler
	queue    *bridge.Queue
}

func NewBridgeHandler(incoming IncomingHandler, queue *bridge.Queue) *BridgeHandler {
	return &BridgeHandler{incoming: incoming, queue: queue}
}

func (h *BridgeHandler) ReceiveMessage(c *gin.Context) {
	lang := middleware.GetLang(c)

	var req dto.IncomingMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(
			http.StatusBadRequest,
			apierrors.CreateError(http.StatusBadRequest, apierrors.MsgInvalidBridgePayload, lang),
		)
		return
	}

	owner := bridge.NormalizeChatID(req.From)
	if err := h.incoming.HandleIncoming(c.Request.Context(), owner, req.Body); err != nil {
		zap.L().Error("failed to handle incoming message", zap.String("owner", owner), zap.Error(err))
		c.JSON(
			http.StatusInternalServerError,
			apierrors.CreateError(http.StatusInternalServerError, apierrors.MsgFailHandleIncoming, lang),
		)
		return
	}

	c.JSON(http.StatusOK, dto.IncomingMessageResponse{Ack: true})
}

func (h *BridgeHandler) ListOutgoing(c *gin.Context) {
	pending := h.queue.Pending()
	views := make([]dto.OutgoingMessageView, 0, len(pending))
	for _, msg := range pending {
		views = append(views, dto.OutgoingMessageView{
			ID:       msg.ID,
			ChatID:   msg.ChatID,
			Body:     msg.Body,
			QueuedAt: msg.QueuedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, dto.OutgoingMessagesResponse{Messages: views})
}

func (h *BridgeHandler) AckMessages(c *gin.Context) {
	lang := middleware.GetLang(c)

	var req dto.AckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(
			http.StatusBadRequest,
			apierrors.CreateError(http.StatusBadRequest, apierrors.MsgInvalidBridgePayload, lang),
		)
		return
	}

	removed := h.queue.Ack(req.IDs)
	c.JSON(http.StatusOK, dto.AckResponse{Removed: removed})
}
