package response

import "github.com/rifadigital/rifa-api/internal/domain"

type CreateRaffleResponse struct {
	ID string `json:"id"`
}

type DrawResultResponse struct {
	Number int           `json:"number"`
	Ticket domain.Ticket `json:"ticket"`
}
