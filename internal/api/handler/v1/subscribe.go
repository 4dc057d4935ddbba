package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rifadigital/rifa-api/internal/api/handler/v1/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Adjust this for production!
	},
}

// HandleSubscribe godoc
// @Summary      Live raffle subscription
// @Description  Streams the owner's full raffle set over a websocket on every change, with a synced flag that is false while optimistic writes are unconfirmed. Each message replaces the previous state entirely.
// @Tags         raffles
// @Produce      json
// @Success      101  {string}  string "Switching Protocols to WebSocket"
// @Failure      401  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /raffles/ws [get]
// @Security BearerAuth
func (h *RaffleHandler) HandleSubscribe(ctx *gin.Context) {
	ownerID, respErr := getUserIDFromContext(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		zap.L().Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sess, err := h.store.Attach(ctx.Request.Context(), ownerID)
	if err != nil {
		zap.L().Error("failed to attach raffle session",
			zap.Uint("owner_id", ownerID),
			zap.Error(err))
		conn.WriteJSON(gin.H{"error": "could not load raffles"})
		return
	}
	defer sess.Detach()

	snapshots, cancel := sess.Subscribe()
	defer cancel()

	// The read pump only watches for the peer going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
