package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rifadigital/rifa-api/internal/api/handler/v1/request"
	"github.com/rifadigital/rifa-api/internal/api/handler/v1/response"
	"github.com/rifadigital/rifa-api/internal/domain"
	"github.com/rifadigital/rifa-api/internal/draw"
	"github.com/rifadigital/rifa-api/internal/store"
)

// RaffleStore hands out per-owner sessions; every session must be
// detached when the request is done.
type RaffleStore interface {
	Attach(ctx context.Context, ownerID uint) (*store.Session, error)
}

type RaffleHandler struct {
	store  RaffleStore
	engine *draw.Engine
}

func NewRaffleHandler(s RaffleStore, engine *draw.Engine) *RaffleHandler {
	return &RaffleHandler{
		store:  s,
		engine: engine,
	}
}

func (h *RaffleHandler) attach(ctx *gin.Context) (*store.Session, *response.Err) {
	ownerID, respErr := getUserIDFromContext(ctx)
	if respErr != nil {
		return nil, respErr
	}

	sess, err := h.store.Attach(ctx.Request.Context(), ownerID)
	if err != nil {
		err = fmt.Errorf("v1.attach -> h.store.Attach -> %w", err)
		return nil, response.ErrInternalServerError(err)
	}

	return sess, nil
}

// HandleListRaffles godoc
// @Summary      List the raffles of the authenticated user
// @Tags         raffles
// @Produce      json
// @Success      200  {object}  store.Snapshot
// @Failure      401  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /raffles [get]
// @Security BearerAuth
func (h *RaffleHandler) HandleListRaffles(ctx *gin.Context) {
	sess, respErr := h.attach(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}
	defer sess.Detach()

	ctx.JSON(http.StatusOK, store.Snapshot{
		Raffles: sess.Raffles(),
		Synced:  sess.Synced(),
	})
}

// HandleCreateRaffle godoc
// @Summary      Create a raffle
// @Tags         raffles
// @Produce      json
// @Param        request  body      request.CreateRaffleRequest true "request body"
// @Success      201      {object}  response.CreateRaffleResponse
// @Failure      400      {object}  response.Err
// @Failure      401      {object}  response.Err
// @Failure      500      {object}  response.Err
// @Router       /raffles [post]
// @Security BearerAuth
func (h *RaffleHandler) HandleCreateRaffle(ctx *gin.Context) {
	var req request.CreateRaffleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	input, err := req.ToInput()
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	sess, respErr := h.attach(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}
	defer sess.Detach()

	id, err := sess.AddRaffle(input)
	if err != nil {
		if errors.Is(err, store.ErrEmptyTitle) || errors.Is(err, store.ErrInvalidTicketCount) {
			response.RenderErr(ctx, response.ErrBadRequest(err))
			return
		}

		err = fmt.Errorf("v1.HandleCreateRaffle -> sess.AddRaffle -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusCreated, response.CreateRaffleResponse{ID: id})
}

// HandleGetRaffle godoc
// @Summary      Get a raffle by ID
// @Tags         raffles
// @Produce      json
// @Param        raffleID  path      string  true "raffle ID"
// @Success      200       {object}  domain.Raffle
// @Failure      401       {object}  response.Err
// @Failure      404       {object}  response.Err
// @Failure      500       {object}  response.Err
// @Router       /raffles/{raffleID} [get]
// @Security BearerAuth
func (h *RaffleHandler) HandleGetRaffle(ctx *gin.Context) {
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

	ctx.JSON(http.StatusOK, raffle)
}

// HandleUpdateRaffle godoc
// @Summary      Update a raffle
// @Description  Re-submits the whole creation form; resizing the ticket count preserves tickets that stay in range and truncates the rest.
// @Tags         raffles
// @Produce      json
// @Param        raffleID  path      string  true "raffle ID"
// @Param        request   body      request.UpdateRaffleRequest true "request body"
// @Success      200       {object}  domain.Raffle
// @Failure      400       {object}  response.Err
// @Failure      401       {object}  response.Err
// @Failure      404       {object}  response.Err
// @Failure      500       {object}  response.Err
// @Router       /raffles/{raffleID} [put]
// @Security BearerAuth
func (h *RaffleHandler) HandleUpdateRaffle(ctx *gin.Context) {
	var req request.UpdateRaffleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	input, err := req.ToInput()
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	sess, respErr := h.attach(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}
	defer sess.Detach()

	id := ctx.Param("raffleID")
	if err := sess.UpdateRaffle(id, input); err != nil {
		switch {
		case errors.Is(err, store.ErrRaffleNotFound):
			response.RenderErr(ctx, response.ErrNotFound("raffle", "ID", id))
		case errors.Is(err, store.ErrEmptyTitle), errors.Is(err, store.ErrInvalidTicketCount):
			response.RenderErr(ctx, response.ErrBadRequest(err))
		default:
			err = fmt.Errorf("v1.HandleUpdateRaffle -> sess.UpdateRaffle -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	raffle, _ := sess.GetRaffle(id)
	ctx.JSON(http.StatusOK, raffle)
}

// HandleDeleteRaffle godoc
// @Summary      Delete a raffle
// @Description  Irreversible; there is no undo.
// @Tags         raffles
// @Produce      json
// @Param        raffleID  path      string  true "raffle ID"
// @Success      204       "No Content"
// @Failure      401       {object}  response.Err
// @Failure      404       {object}  response.Err
// @Failure      500       {object}  response.Err
// @Router       /raffles/{raffleID} [delete]
// @Security BearerAuth
func (h *RaffleHandler) HandleDeleteRaffle(ctx *gin.Context) {
	sess, respErr := h.attach(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}
	defer sess.Detach()

	id := ctx.Param("raffleID")
	if err := sess.DeleteRaffle(ctx.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrRaffleNotFound) {
			response.RenderErr(ctx, response.ErrNotFound("raffle", "ID", id))
			return
		}

		err = fmt.Errorf("v1.HandleDeleteRaffle -> sess.DeleteRaffle -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.Status(http.StatusNoContent)
}

// HandleUpdateTicket godoc
// @Summary      Sell or release a ticket
// @Description  A non-null holder sells the ticket; a null holder releases it. Last writer wins on concurrent edits.
// @Tags         raffles
// @Produce      json
// @Param        raffleID      path      string  true "raffle ID"
// @Param        ticketNumber  path      int     true "ticket number"
// @Param        request       body      request.UpdateTicketRequest true "request body"
// @Success      200           {object}  domain.Ticket
// @Failure      400           {object}  response.Err
// @Failure      401           {object}  response.Err
// @Failure      404           {object}  response.Err
// @Failure      500           {object}  response.Err
// @Router       /raffles/{raffleID}/tickets/{ticketNumber} [put]
// @Security BearerAuth
func (h *RaffleHandler) HandleUpdateTicket(ctx *gin.Context) {
	number, err := strconv.Atoi(ctx.Param("ticketNumber"))
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(errors.New("invalid ticket number")))
		return
	}

	var req request.UpdateTicketRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	var holder *domain.Holder
	if req.Holder != nil {
		holder = &domain.Holder{
			Name:  req.Holder.Name,
			Phone: req.Holder.Phone,
		}
	}

	sess, respErr := h.attach(ctx)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}
	defer sess.Detach()

	id := ctx.Param("raffleID")
	if err := sess.UpdateTicket(id, number, holder); err != nil {
		switch {
		case errors.Is(err, store.ErrRaffleNotFound):
			response.RenderErr(ctx, response.ErrNotFound("raffle", "ID", id))
		case errors.Is(err, store.ErrTicketNotFound):
			response.RenderErr(ctx, response.ErrNotFound("ticket", "number", number))
		case errors.Is(err, store.ErrEmptyHolderName):
			response.RenderErr(ctx, response.ErrBadRequest(err))
		default:
			err = fmt.Errorf("v1.HandleUpdateTicket -> sess.UpdateTicket -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	raffle, _ := sess.GetRaffle(id)
	ticket, _ := raffle.FindTicket(number)
	ctx.JSON(http.StatusOK, ticket)
}

// HandleDrawWinner godoc
// @Summary      Draw the winning ticket
// @Description  Picks one uniform random ticket number. Nothing is persisted; the winning ticket may be available or sold.
// @Tags         raffles
// @Produce      json
// @Param        raffleID  path      string  true "raffle ID"
// @Success      200       {object}  response.DrawResultResponse
// @Failure      400       {object}  response.Err
// @Failure      401       {object}  response.Err
// @Failure      404       {object}  response.Err
// @Failure      500       {object}  response.Err
// @Router       /raffles/{raffleID}/draw [post]
// @Security BearerAuth
func (h *RaffleHandler) HandleDrawWinner(ctx *gin.Context) {
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

	ticket, err := h.engine.Resolve(raffle)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	ctx.JSON(http.StatusOK, response.DrawResultResponse{
		Number: ticket.Number,
		Ticket: ticket,
	})
}
