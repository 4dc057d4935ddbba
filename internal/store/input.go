package store

import (
	"strconv"
	"time"

	"github.com/rifadigital/rifa-api/internal/domain"
)

// RaffleInput carries the fields of the creation and edit flows.
// TicketCount holds the chosen preset; when it is "custom", CustomCount
// is taken verbatim instead.
type RaffleInput struct {
	Title       string
	Prizes      []string
	TicketCount string
	CustomCount string
	Template    domain.Template
	TicketColor string
	Image       string
	DrawDate    *time.Time
}

func (in RaffleInput) resolveCount() (int, error) {
	raw := in.TicketCount
	if raw == "custom" {
		raw = in.CustomCount
	}

	count, err := strconv.Atoi(raw)
	if err != nil || count <= 0 {
		return 0, ErrInvalidTicketCount
	}

	return count, nil
}

func (in RaffleInput) template() domain.Template {
	if in.Template == domain.TemplateImage {
		return domain.TemplateImage
	}

	return domain.TemplateRandom
}
