// Package draw picks a raffle's winning ticket. A drawing flashes random
// numbers at a fixed interval for effect, then resolves one independent
// uniform sample as the winner. The flashed numbers and the winning
// number are separate draws: the winner is not guaranteed to be the last
// number shown. Nothing is persisted.
package draw

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rifadigital/rifa-api/internal/domain"
	"github.com/rifadigital/rifa-api/internal/metrics"
)

var ErrNoTickets = errors.New("raffle has no tickets")

const (
	DefaultIterations = 30
	DefaultInterval   = 100 * time.Millisecond
)

type State int32

const (
	StateIdle State = iota
	StateAnimating
	StateResolved
)

// Event is one step of a drawing. Final is set on the last event, which
// carries the winning ticket.
type Event struct {
	Number int            `json:"number"`
	Final  bool           `json:"final"`
	Ticket *domain.Ticket `json:"ticket,omitempty"`
}

type Engine struct {
	interval   time.Duration
	iterations int

	mu  sync.Mutex
	rng *rand.Rand
}

type Option func(*Engine)

func WithInterval(d time.Duration) Option {
	return func(e *Engine) {
		e.interval = d
	}
}

func WithIterations(n int) Option {
	return func(e *Engine) {
		e.iterations = n
	}
}

// WithSeed makes the engine deterministic, for tests.
func WithSeed(seed int64) Option {
	return func(e *Engine) {
		e.rng = rand.New(rand.NewSource(seed))
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		interval:   DefaultInterval,
		iterations: DefaultIterations,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

func (e *Engine) sample(ticketCount int) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.rng.Intn(ticketCount) + 1
}

// Resolve performs the resolution phase alone: one uniform sample in
// [1, ticketCount] mapped to its ticket.
func (e *Engine) Resolve(raffle domain.Raffle) (domain.Ticket, error) {
	if raffle.TicketCount <= 0 || len(raffle.Tickets) == 0 {
		return domain.Ticket{}, ErrNoTickets
	}

	number := e.sample(raffle.TicketCount)
	ticket, ok := raffle.FindTicket(number)
	if !ok {
		return domain.Ticket{}, ErrNoTickets
	}

	return ticket, nil
}

// Start begins a drawing for a raffle already loaded in memory. The
// drawing owns a repeating timer; it is released when the animation
// resolves, the context is cancelled or Stop is called.
func (e *Engine) Start(ctx context.Context, raffle domain.Raffle) (*Drawing, error) {
	if raffle.TicketCount <= 0 || len(raffle.Tickets) == 0 {
		return nil, ErrNoTickets
	}

	d := &Drawing{
		events: make(chan Event, e.iterations+1),
		stop:   make(chan struct{}),
	}
	d.state.Store(int32(StateAnimating))
	metrics.RecordDrawStarted()

	go d.run(ctx, e, raffle)

	return d, nil
}

type Drawing struct {
	events   chan Event
	state    atomic.Int32
	stop     chan struct{}
	stopOnce sync.Once
}

// Events streams the flash samples followed by the final event. The
// channel closes when the drawing resolves or is dismissed.
func (d *Drawing) Events() <-chan Event {
	return d.events
}

func (d *Drawing) State() State {
	return State(d.state.Load())
}

// Stop dismisses the drawing early and releases its timer. Safe to call
// more than once.
func (d *Drawing) Stop() {
	d.stopOnce.Do(func() {
		close(d.stop)
	})
}

func (d *Drawing) run(ctx context.Context, e *Engine, raffle domain.Raffle) {
	defer close(d.events)
	defer metrics.RecordDrawFinished()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for i := 0; i < e.iterations; i++ {
		select {
		case <-ctx.Done():
			d.state.Store(int32(StateIdle))
			return
		case <-d.stop:
			d.state.Store(int32(StateIdle))
			return
		case <-ticker.C:
			d.events <- Event{Number: e.sample(raffle.TicketCount)}
		}
	}

	// Resolution is an independent draw from the animation samples.
	number := e.sample(raffle.TicketCount)
	ticket, _ := raffle.FindTicket(number)
	d.events <- Event{Number: number, Final: true, Ticket: &ticket}
	d.state.Store(int32(StateResolved))
}
