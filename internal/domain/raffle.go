package domain

import "time"

type TicketStatus string

const (
	TicketAvailable TicketStatus = "available"
	TicketSold      TicketStatus = "sold"
)

type Template string

const (
	TemplateRandom Template = "random"
	TemplateImage  Template = "image"
)

// Holder is the person a sold ticket is recorded against.
type Holder struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Ticket is one numbered slot in a raffle. Holder is non-nil iff the
// ticket is sold.
type Ticket struct {
	Number int          `json:"number"`
	Status TicketStatus `json:"status"`
	Holder *Holder      `json:"holder"`
}

type Raffle struct {
	ID          string     `json:"id"`
	OwnerID     uint       `json:"owner_id"`
	Title       string     `json:"title"`
	Prizes      []string   `json:"prizes"`
	TicketCount int        `json:"ticket_count"`
	Template    Template   `json:"template"`
	TicketColor string     `json:"ticket_color,omitempty"`
	Image       string     `json:"image,omitempty"`
	DrawDate    *time.Time `json:"draw_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Tickets     []Ticket   `json:"tickets"`
}

// NewTickets builds the ticket sequence for a fresh raffle: numbers
// 1..count, all available, no holders.
func NewTickets(count int) []Ticket {
	tickets := make([]Ticket, count)
	for i := range tickets {
		tickets[i] = Ticket{
			Number: i + 1,
			Status: TicketAvailable,
		}
	}

	return tickets
}

// ResizeTickets adjusts an existing ticket sequence to count entries.
// Growing appends fresh available tickets; shrinking truncates the tail,
// dropping any sold state on the discarded numbers. Tickets that stay in
// range keep their status and holder.
func ResizeTickets(existing []Ticket, count int) []Ticket {
	tickets := make([]Ticket, 0, count)
	tickets = append(tickets, existing...)

	if count > len(tickets) {
		for n := len(tickets) + 1; n <= count; n++ {
			tickets = append(tickets, Ticket{
				Number: n,
				Status: TicketAvailable,
			})
		}
	} else if count < len(tickets) {
		tickets = tickets[:count]
	}

	return tickets
}

// FindTicket returns the ticket with the given number, or false when the
// number is out of range.
func (r *Raffle) FindTicket(number int) (Ticket, bool) {
	for _, t := range r.Tickets {
		if t.Number == number {
			return t, true
		}
	}

	return Ticket{}, false
}
