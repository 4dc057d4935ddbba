package v1

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rifadigital/rifa-api/internal/api/handler/v1/response"
)

// HandleDrawStream godoc
// @Summary      Animated drawing stream
// @Description  Streams the drawing's flash samples followed by one final event carrying the winning ticket. Closing the socket dismisses the drawing and releases its timer; the winner is an independent draw from the flashed numbers.
// @Tags         raffles
// @Produce      json
// @Param        raffleID  path      string  true "raffle ID"
// @Success      101       {string}  string "Switching Protocols to WebSocket"
// @Failure      401       {object}  response.Err
// @Failure      404       {object}  response.Err
// @Failure      500       {object}  response.Err
// @Router       /raffles/{raffleID}/draw/ws [get]
// @Security BearerAuth
func (h *RaffleHandler) HandleDrawStream(ctx *gin.Context) {
	sess, respErr := h.attach(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}
	defer sess.Detach()

	id := ctx.Param("raffleID")
	raffle, ok := sess.GetRaffle(id)
	if !ok {
		response.RenderErr(ctx, response.ErrNotFound("raffle", "ID", id))
		return
	}

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		zap.L().Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	drawCtx, cancel := context.WithCancel(ctx.Request.Context())
	defer cancel()

	drawing, err := h.engine.Start(drawCtx, raffle)
	if err != nil {
		conn.WriteJSON(gin.H{"error": err.Error()})
		return
	}
	defer drawing.Stop()

	// Dismissal by the client cancels the animation timer.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for event := range drawing.Events() {
		if err := conn.WriteJSON(event); err != nil {
			return
		}
	}
}
