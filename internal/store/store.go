// Package store keeps the authoritative in-process view of each owner's
// raffles. Writes apply to local state first and are persisted by
// background tasks; the next authoritative read from the repository
// supersedes any optimistic entry. Failed background writes are logged
// and leave the session flagged as not synced; they are never retried
// and never rolled back. A later successful write reconciles against the
// authoritative set and clears the flag.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rifadigital/rifa-api/internal/domain"
)

var (
	ErrEmptyTitle         = errors.New("title is required")
	ErrInvalidTicketCount = errors.New("ticket count must be a positive number")
	ErrEmptyHolderName    = errors.New("holder name is required")
	ErrRaffleNotFound     = errors.New("raffle not found")
	ErrTicketNotFound     = errors.New("ticket not found")
)

const defaultWriteTimeout = 10 * time.Second

type RaffleRepository interface {
	FindByOwnerID(ctx context.Context, ownerID uint) ([]domain.Raffle, error)
	Create(ctx context.Context, raffle domain.Raffle) (domain.Raffle, error)
	Update(ctx context.Context, raffle domain.Raffle) (domain.Raffle, error)
	ReplaceTickets(ctx context.Context, raffleID string, tickets []domain.Ticket) error
	Delete(ctx context.Context, id string) error
}

// ReminderScheduler is the local-notification collaborator. Scheduling is
// fire and forget; implementations must tolerate being called for raffles
// without a draw date.
type ReminderScheduler interface {
	Schedule(raffle domain.Raffle)
	Cancel(raffleID string)
}

type noopReminders struct{}

func (noopReminders) Schedule(domain.Raffle) {}
func (noopReminders) Cancel(string)          {}

type Store struct {
	repo         RaffleRepository
	reminders    ReminderScheduler
	writeTimeout time.Duration

	mu       sync.Mutex
	sessions map[uint]*Session
}

type Option func(*Store)

// WithWriteTimeout bounds every background write so a submit action never
// blocks on the remote store indefinitely.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.writeTimeout = d
	}
}

func WithReminders(r ReminderScheduler) Option {
	return func(s *Store) {
		s.reminders = r
	}
}

func New(repo RaffleRepository, opts ...Option) *Store {
	s := &Store{
		repo:         repo,
		reminders:    noopReminders{},
		writeTimeout: defaultWriteTimeout,
		sessions:     make(map[uint]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Attach binds the store to an owner and returns their session, loading
// the owner's raffles on first attach. Sessions are shared between
// concurrent callers for the same owner and refcounted; every Attach must
// be paired with a Detach.
func (s *Store) Attach(ctx context.Context, ownerID uint) (*Session, error) {
	s.mu.Lock()
	if sess, ok := s.sessions[ownerID]; ok {
		sess.refs++
		s.mu.Unlock()
		return sess, nil
	}
	s.mu.Unlock()

	raffles, err := s.repo.FindByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	sortRaffles(raffles)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have attached while we were loading.
	if sess, ok := s.sessions[ownerID]; ok {
		sess.refs++
		return sess, nil
	}

	sess := newSession(s, ownerID, raffles)
	s.sessions[ownerID] = sess

	return sess, nil
}

func (s *Store) release(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess.refs--
	if sess.refs > 0 {
		return
	}

	// In-flight background writes keep running against the detached
	// session; a future Attach starts over from an authoritative read.
	delete(s.sessions, sess.ownerID)
	sess.closeSubscribers()
}
