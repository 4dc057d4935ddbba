package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rifadigital/rifa-api/internal/domain"
	"github.com/rifadigital/rifa-api/internal/metrics"
)

// Snapshot is a complete replacement of the owner's raffle set, newest
// first. Synced is false while optimistic writes are unconfirmed or after
// a background write has failed.
type Snapshot struct {
	Raffles []domain.Raffle `json:"raffles"`
	Synced  bool            `json:"synced"`
}

// Session is the write-ahead local cache for a single owner. All reads
// answer from local state; all writes apply locally before the remote
// store confirms them.
type Session struct {
	store   *Store
	ownerID uint

	mu      sync.RWMutex
	raffles []domain.Raffle
	pending int  // in-flight background writes
	dirty   bool // a write failed; cleared once a reconcile confirms remote state
	subs    map[int]chan Snapshot
	nextSub int

	refs int // guarded by store.mu
}

func newSession(s *Store, ownerID uint, raffles []domain.Raffle) *Session {
	return &Session{
		store:   s,
		ownerID: ownerID,
		raffles: raffles,
		subs:    make(map[int]chan Snapshot),
		refs:    1,
	}
}

func (s *Session) OwnerID() uint {
	return s.ownerID
}

// Detach releases the caller's reference. The last Detach drops the
// session; background writes already in flight still complete.
func (s *Session) Detach() {
	s.store.release(s)
}

// Subscribe delivers a snapshot on every local or confirmed change,
// starting with the current state. The returned cancel func must be
// called when the consumer goes away.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Snapshot, 1)
	s.subs[id] = ch
	ch <- s.snapshotLocked()
	metrics.SetLiveSubscribers(s.ownerID, len(s.subs))

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
			metrics.SetLiveSubscribers(s.ownerID, len(s.subs))
		}
	}
}

// Raffles returns the current local state, newest first.
func (s *Session) Raffles() []domain.Raffle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.Raffle(nil), s.raffles...)
}

// GetRaffle answers from local state only.
func (s *Session) GetRaffle(id string) (domain.Raffle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.raffles {
		if r.ID == id {
			return r, true
		}
	}

	return domain.Raffle{}, false
}

// Synced reports whether local state has been confirmed by the remote
// store.
func (s *Session) Synced() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.pending == 0 && !s.dirty
}

// AddRaffle validates the input, builds the full ticket sequence and
// applies the new raffle to local state before the remote write is
// issued. The returned id is usable immediately.
func (s *Session) AddRaffle(input RaffleInput) (string, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return "", ErrEmptyTitle
	}
	count, err := input.resolveCount()
	if err != nil {
		return "", err
	}

	now := time.Now()
	raffle := domain.Raffle{
		ID:          uuid.NewString(),
		OwnerID:     s.ownerID,
		Title:       title,
		Prizes:      filterPrizes(input.Prizes),
		TicketCount: count,
		Template:    input.template(),
		TicketColor: input.TicketColor,
		Image:       input.Image,
		DrawDate:    input.DrawDate,
		CreatedAt:   now,
		UpdatedAt:   now,
		Tickets:     domain.NewTickets(count),
	}

	s.mu.Lock()
	s.raffles = append([]domain.Raffle{raffle}, s.raffles...)
	s.pending++
	s.publishLocked()
	s.mu.Unlock()

	s.persist("create raffle", raffle.ID, func(ctx context.Context) error {
		_, err := s.store.repo.Create(ctx, raffle)
		return err
	})

	if raffle.DrawDate != nil {
		s.store.reminders.Schedule(raffle)
	}

	return raffle.ID, nil
}

// UpdateRaffle re-validates like AddRaffle and resizes the ticket
// sequence: numbers that stay in range keep their status and holder,
// growing appends available tickets, shrinking truncates even when the
// dropped tickets were sold.
func (s *Session) UpdateRaffle(id string, input RaffleInput) error {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return ErrEmptyTitle
	}
	count, err := input.resolveCount()
	if err != nil {
		return err
	}

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrRaffleNotFound
	}

	raffle := s.raffles[idx]
	raffle.Title = title
	raffle.Prizes = filterPrizes(input.Prizes)
	raffle.TicketCount = count
	raffle.Tickets = domain.ResizeTickets(raffle.Tickets, count)
	raffle.Template = input.template()
	raffle.TicketColor = input.TicketColor
	if input.Image != "" {
		raffle.Image = input.Image
	}
	raffle.DrawDate = input.DrawDate
	raffle.UpdatedAt = time.Now()

	s.raffles[idx] = raffle
	s.pending++
	s.publishLocked()
	s.mu.Unlock()

	s.persist("update raffle", raffle.ID, func(ctx context.Context) error {
		_, err := s.store.repo.Update(ctx, raffle)
		return err
	})

	if raffle.DrawDate != nil {
		s.store.reminders.Schedule(raffle)
	} else {
		s.store.reminders.Cancel(raffle.ID)
	}

	return nil
}

// UpdateTicket sells the ticket to the given holder, or releases it when
// holder is nil. There is no concurrency control beyond last writer wins:
// two editors racing on the same number silently overwrite each other.
func (s *Session) UpdateTicket(raffleID string, number int, holder *domain.Holder) error {
	if holder != nil && strings.TrimSpace(holder.Name) == "" {
		return ErrEmptyHolderName
	}

	s.mu.Lock()
	idx := s.indexLocked(raffleID)
	if idx < 0 {
		s.mu.Unlock()
		return ErrRaffleNotFound
	}

	raffle := s.raffles[idx]
	found := false
	tickets := make([]domain.Ticket, len(raffle.Tickets))
	for i, t := range raffle.Tickets {
		if t.Number == number {
			found = true
			if holder != nil {
				h := *holder
				t.Status = domain.TicketSold
				t.Holder = &h
			} else {
				t.Status = domain.TicketAvailable
				t.Holder = nil
			}
		}
		tickets[i] = t
	}
	if !found {
		s.mu.Unlock()
		return ErrTicketNotFound
	}

	raffle.Tickets = tickets
	raffle.UpdatedAt = time.Now()
	s.raffles[idx] = raffle
	s.pending++
	s.publishLocked()
	s.mu.Unlock()

	s.persist("update ticket", raffleID, func(ctx context.Context) error {
		return s.store.repo.ReplaceTickets(ctx, raffleID, tickets)
	})

	return nil
}

// DeleteRaffle removes the raffle from the remote store and lets the next
// authoritative snapshot update the local view. There is no optimistic
// removal and no undo.
func (s *Session) DeleteRaffle(ctx context.Context, id string) error {
	s.mu.RLock()
	idx := s.indexLocked(id)
	s.mu.RUnlock()
	if idx < 0 {
		return ErrRaffleNotFound
	}

	if err := s.store.repo.Delete(ctx, id); err != nil {
		zap.L().Error("failed to delete raffle",
			zap.String("raffle_id", id),
			zap.Error(err))
		return err
	}

	s.store.reminders.Cancel(id)
	s.reconcile()

	return nil
}

func (s *Session) persist(op, raffleID string, write func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.store.writeTimeout)
		defer cancel()

		err := write(ctx)

		s.mu.Lock()
		s.pending--
		if err != nil {
			// Logged and surfaced only through the synced flag;
			// local state stays as the user last saw it.
			s.dirty = true
			metrics.RecordRaffleWrite(op, "failure")
			zap.L().Error("background write failed",
				zap.String("op", op),
				zap.String("raffle_id", raffleID),
				zap.Uint("owner_id", s.ownerID),
				zap.Error(err))
			s.publishLocked()
			s.mu.Unlock()
			return
		}
		metrics.RecordRaffleWrite(op, "success")
		remaining := s.pending
		s.mu.Unlock()

		if remaining == 0 {
			s.reconcile()
		}
	}()
}

// reconcile re-reads the authoritative owner set and publishes it,
// superseding optimistic entries. Once local state matches the remote
// store again the session counts as synced, even after an earlier failed
// write. A failed read keeps the last known good state visible.
func (s *Session) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), s.store.writeTimeout)
	defer cancel()

	raffles, err := s.store.repo.FindByOwnerID(ctx, s.ownerID)
	if err != nil {
		zap.L().Warn("reconcile read failed, keeping local state",
			zap.Uint("owner_id", s.ownerID),
			zap.Error(err))
		s.mu.Lock()
		s.publishLocked()
		s.mu.Unlock()
		return
	}
	sortRaffles(raffles)

	s.mu.Lock()
	if s.pending == 0 {
		s.raffles = raffles
		s.dirty = false
	}
	s.publishLocked()
	s.mu.Unlock()
}

func (s *Session) indexLocked(id string) int {
	for i, r := range s.raffles {
		if r.ID == id {
			return i
		}
	}

	return -1
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Raffles: append([]domain.Raffle(nil), s.raffles...),
		Synced:  s.pending == 0 && !s.dirty,
	}
}

func (s *Session) publishLocked() {
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		// A stale snapshot is superseded by the new one, so drop it
		// rather than block.
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (s *Session) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	metrics.SetLiveSubscribers(s.ownerID, 0)
}

func sortRaffles(raffles []domain.Raffle) {
	sort.SliceStable(raffles, func(i, j int) bool {
		return raffles[i].CreatedAt.After(raffles[j].CreatedAt)
	})
}

func filterPrizes(prizes []string) []string {
	filtered := make([]string, 0, len(prizes))
	for _, p := range prizes {
		if strings.TrimSpace(p) != "" {
			filtered = append(filtered, p)
		}
	}

	return filtered
}
