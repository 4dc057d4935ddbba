package request

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/rifadigital/rifa-api/internal/domain"
	"github.com/rifadigital/rifa-api/internal/store"
)

// maxImageBytes keeps embedded images under the remote document size
// ceiling.
const maxImageBytes = 400 * 1024

const drawDateLayout = "2006-01-02"

var errImageTooLarge = errors.New("image must be smaller than 400KB")

type CreateRaffleRequest struct {
	Title       string   `json:"title"`
	Prizes      []string `json:"prizes"`
	TicketCount string   `json:"ticket_count"`
	CustomCount string   `json:"custom_count,omitempty"`
	Template    string   `json:"template"`
	TicketColor string   `json:"ticket_color,omitempty"`
	Image       string   `json:"image,omitempty"`
	DrawDate    string   `json:"draw_date,omitempty"`
}

// UpdateRaffleRequest carries the same form as creation; the edit flow
// re-submits every field.
type UpdateRaffleRequest = CreateRaffleRequest

func (req *CreateRaffleRequest) Validate() error {
	err := validation.ValidateStruct(
		req,
		validation.Field(&req.Title, validation.Required),
		validation.Field(&req.TicketCount, validation.Required),
		validation.Field(&req.Template, validation.In("", "random", "image")),
		validation.Field(&req.DrawDate, validation.Date(drawDateLayout)),
	)
	if err != nil {
		return err
	}

	if len(req.Image) > maxImageBytes {
		return errImageTooLarge
	}

	return nil
}

// ToInput converts the request into the store's input form. The custom
// count is passed through verbatim; the store decides whether it parses.
func (req *CreateRaffleRequest) ToInput() (store.RaffleInput, error) {
	input := store.RaffleInput{
		Title:       req.Title,
		Prizes:      req.Prizes,
		TicketCount: req.TicketCount,
		CustomCount: req.CustomCount,
		TicketColor: req.TicketColor,
		Image:       req.Image,
	}
	if req.Template != "" {
		input.Template = templateFromString(req.Template)
	}
	if req.DrawDate != "" {
		drawDate, err := time.Parse(drawDateLayout, req.DrawDate)
		if err != nil {
			return store.RaffleInput{}, err
		}
		input.DrawDate = &drawDate
	}

	return input, nil
}

func templateFromString(s string) domain.Template {
	if s == "image" {
		return domain.TemplateImage
	}

	return domain.TemplateRandom
}

type TicketHolder struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// UpdateTicketRequest sells a ticket when Holder is set, or releases it
// when Holder is null.
type UpdateTicketRequest struct {
	Holder *TicketHolder `json:"holder"`
}

func (req *UpdateTicketRequest) Validate() error {
	if req.Holder == nil {
		return nil
	}

	return validation.ValidateStruct(
		req.Holder,
		validation.Field(&req.Holder.Name, validation.Required),
	)
}
