package dao

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrRaffleNotFound = errors.New("raffle not found")

type Raffle struct {
	ID      string `gorm:"primaryKey"`
	OwnerID uint   `gorm:"index;not null"`

	Title       string         `gorm:"not null"`
	Prizes      pq.StringArray `gorm:"type:text[]"`
	TicketCount int            `gorm:"not null"`
	Template    string         `gorm:"not null;default:random"`
	TicketColor string
	Image       string // data URI, size-capped at the request layer
	DrawDate    *time.Time

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Tickets []Ticket `gorm:"foreignKey:RaffleID;references:ID;constraint:OnDelete:CASCADE"`
}

type Ticket struct {
	RaffleID string `gorm:"primaryKey"`
	Number   int    `gorm:"primaryKey"`

	Status      string `gorm:"not null;default:available"`
	HolderName  string
	HolderPhone string
}

type RaffleDAO struct {
	db *gorm.DB
}

func NewRaffleDAO(db *gorm.DB) *RaffleDAO {
	return &RaffleDAO{
		db: db,
	}
}

func (d *RaffleDAO) FindByOwnerID(ctx context.Context, ownerID uint) ([]Raffle, error) {
	var raffles []Raffle
	result := d.db.WithContext(ctx).
		Preload("Tickets", func(db *gorm.DB) *gorm.DB {
			return db.Order("tickets.number ASC")
		}).
		Where("owner_id = ?", ownerID).
		Find(&raffles)
	if result.Error != nil {
		return nil, result.Error
	}

	return raffles, nil
}

func (d *RaffleDAO) GetByID(ctx context.Context, id string) (Raffle, error) {
	var raffle Raffle
	result := d.db.WithContext(ctx).
		Preload("Tickets", func(db *gorm.DB) *gorm.DB {
			return db.Order("tickets.number ASC")
		}).
		Where("id = ?", id).
		First(&raffle)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Raffle{}, ErrRaffleNotFound
		}

		return Raffle{}, result.Error
	}

	return raffle, nil
}

func (d *RaffleDAO) Insert(ctx context.Context, raffle Raffle) (Raffle, error) {
	result := d.db.WithContext(ctx).Create(&raffle)
	if result.Error != nil {
		return Raffle{}, result.Error
	}

	return raffle, nil
}

// Update replaces the raffle row and its whole ticket set. The remote
// store keeps no versioning: the last writer wins, including on the
// embedded tickets.
func (d *RaffleDAO) Update(ctx context.Context, raffle Raffle) (Raffle, error) {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tickets := raffle.Tickets
		raffle.Tickets = nil

		result := tx.Model(&Raffle{}).
			Where("id = ?", raffle.ID).
			Select("Title", "Prizes", "TicketCount", "Template", "TicketColor", "Image", "DrawDate").
			Updates(&raffle)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrRaffleNotFound
		}

		if err := tx.Where("raffle_id = ?", raffle.ID).Delete(&Ticket{}).Error; err != nil {
			return err
		}
		if len(tickets) > 0 {
			if err := tx.Create(&tickets).Error; err != nil {
				return err
			}
		}

		raffle.Tickets = tickets

		return nil
	})
	if err != nil {
		return Raffle{}, err
	}

	return raffle, nil
}

// ReplaceTickets overwrites the full ticket set of a raffle, unguarded.
func (d *RaffleDAO) ReplaceTickets(ctx context.Context, raffleID string, tickets []Ticket) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Raffle{}).Where("id = ?", raffleID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrRaffleNotFound
		}

		if err := tx.Where("raffle_id = ?", raffleID).Delete(&Ticket{}).Error; err != nil {
			return err
		}
		if len(tickets) == 0 {
			return nil
		}

		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&tickets).Error
	})
}

func (d *RaffleDAO) Delete(ctx context.Context, id string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("raffle_id = ?", id).Delete(&Ticket{}).Error; err != nil {
			return err
		}

		result := tx.Where("id = ?", id).Delete(&Raffle{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrRaffleNotFound
		}

		return nil
	})
}
