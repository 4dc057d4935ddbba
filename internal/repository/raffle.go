package repository

import (
	"context"
	"fmt"

	"github.com/rifadigital/rifa-api/internal/domain"
	"github.com/rifadigital/rifa-api/internal/repository/dao"
)

var ErrRaffleNotFound = dao.ErrRaffleNotFound

type RaffleDAO interface {
	FindByOwnerID(ctx context.Context, ownerID uint) ([]dao.Raffle, error)
	GetByID(ctx context.Context, id string) (dao.Raffle, error)
	Insert(ctx context.Context, raffle dao.Raffle) (dao.Raffle, error)
	Update(ctx context.Context, raffle dao.Raffle) (dao.Raffle, error)
	ReplaceTickets(ctx context.Context, raffleID string, tickets []dao.Ticket) error
	Delete(ctx context.Context, id string) error
}

type RaffleRepository struct {
	dao RaffleDAO
}

func NewRaffleRepository(dao RaffleDAO) *RaffleRepository {
	return &RaffleRepository{
		dao: dao,
	}
}

func (r *RaffleRepository) FindByOwnerID(ctx context.Context, ownerID uint) ([]domain.Raffle, error) {
	found, err := r.dao.FindByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindByOwnerID -> %w", err)
	}

	raffles := make([]domain.Raffle, len(found))
	for i, raffle := range found {
		raffles[i] = r.daoToDomain(raffle)
	}

	return raffles, nil
}

func (r *RaffleRepository) GetByID(ctx context.Context, id string) (domain.Raffle, error) {
	found, err := r.dao.GetByID(ctx, id)
	if err != nil {
		return domain.Raffle{}, fmt.Errorf("r.dao.GetByID -> %w", err)
	}

	return r.daoToDomain(found), nil
}

func (r *RaffleRepository) Create(ctx context.Context, raffle domain.Raffle) (domain.Raffle, error) {
	created, err := r.dao.Insert(ctx, r.domainToDao(raffle))
	if err != nil {
		return domain.Raffle{}, fmt.Errorf("r.dao.Insert -> %w", err)
	}

	return r.daoToDomain(created), nil
}

func (r *RaffleRepository) Update(ctx context.Context, raffle domain.Raffle) (domain.Raffle, error) {
	updated, err := r.dao.Update(ctx, r.domainToDao(raffle))
	if err != nil {
		return domain.Raffle{}, fmt.Errorf("r.dao.Update -> %w", err)
	}

	return r.daoToDomain(updated), nil
}

func (r *RaffleRepository) ReplaceTickets(ctx context.Context, raffleID string, tickets []domain.Ticket) error {
	daoTickets := make([]dao.Ticket, len(tickets))
	for i, t := range tickets {
		daoTickets[i] = r.ticketDomainToDao(raffleID, t)
	}

	if err := r.dao.ReplaceTickets(ctx, raffleID, daoTickets); err != nil {
		return fmt.Errorf("r.dao.ReplaceTickets -> %w", err)
	}

	return nil
}

func (r *RaffleRepository) Delete(ctx context.Context, id string) error {
	if err := r.dao.Delete(ctx, id); err != nil {
		return fmt.Errorf("r.dao.Delete -> %w", err)
	}

	return nil
}

func (r *RaffleRepository) domainToDao(raffle domain.Raffle) dao.Raffle {
	tickets := make([]dao.Ticket, len(raffle.Tickets))
	for i, t := range raffle.Tickets {
		tickets[i] = r.ticketDomainToDao(raffle.ID, t)
	}

	return dao.Raffle{
		ID:          raffle.ID,
		OwnerID:     raffle.OwnerID,
		Title:       raffle.Title,
		Prizes:      raffle.Prizes,
		TicketCount: raffle.TicketCount,
		Template:    string(raffle.Template),
		TicketColor: raffle.TicketColor,
		Image:       raffle.Image,
		DrawDate:    raffle.DrawDate,
		CreatedAt:   raffle.CreatedAt,
		UpdatedAt:   raffle.UpdatedAt,
		Tickets:     tickets,
	}
}

func (r *RaffleRepository) daoToDomain(raffle dao.Raffle) domain.Raffle {
	tickets := make([]domain.Ticket, len(raffle.Tickets))
	for i, t := range raffle.Tickets {
		tickets[i] = r.ticketDaoToDomain(t)
	}

	return domain.Raffle{
		ID:          raffle.ID,
		OwnerID:     raffle.OwnerID,
		Title:       raffle.Title,
		Prizes:      raffle.Prizes,
		TicketCount: raffle.TicketCount,
		Template:    domain.Template(raffle.Template),
		TicketColor: raffle.TicketColor,
		Image:       raffle.Image,
		DrawDate:    raffle.DrawDate,
		CreatedAt:   raffle.CreatedAt,
		UpdatedAt:   raffle.UpdatedAt,
		Tickets:     tickets,
	}
}

func (r *RaffleRepository) ticketDomainToDao(raffleID string, t domain.Ticket) dao.Ticket {
	daoTicket := dao.Ticket{
		RaffleID: raffleID,
		Number:   t.Number,
		Status:   string(t.Status),
	}
	if t.Holder != nil {
		daoTicket.HolderName = t.Holder.Name
		daoTicket.HolderPhone = t.Holder.Phone
	}

	return daoTicket
}

func (r *RaffleRepository) ticketDaoToDomain(t dao.Ticket) domain.Ticket {
	ticket := domain.Ticket{
		Number: t.Number,
		Status: domain.TicketStatus(t.Status),
	}
	if ticket.Status == domain.TicketSold {
		ticket.Holder = &domain.Holder{
			Name:  t.HolderName,
			Phone: t.HolderPhone,
		}
	}

	return ticket
}
