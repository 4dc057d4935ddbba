// Package reminder schedules one local reminder per raffle, fired at
// noon the day before the draw date. Reminder ids derive from the raffle
// id, so re-scheduling a raffle replaces its previous reminder.
package reminder

import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rifadigital/rifa-api/internal/domain"
)

// Notifier delivers a due reminder. The default implementation only logs;
// a platform with native scheduling plugs in its own.
type Notifier interface {
	Notify(raffleID, title, body string)
}

type logNotifier struct{}

func (logNotifier) Notify(raffleID, title, body string) {
	zap.L().Info("raffle reminder due",
		zap.String("raffle_id", raffleID),
		zap.String("title", title),
		zap.String("body", body))
}

// NotificationID derives a stable numeric id from a raffle id: the byte
// values summed, mod 2^31-1.
func NotificationID(raffleID string) int {
	sum := 0
	for _, b := range []byte(raffleID) {
		sum += int(b)
	}

	return sum % math.MaxInt32
}

// ReminderTime is noon the day before the draw date, in the draw date's
// location.
func ReminderTime(drawDate time.Time) time.Time {
	dayBefore := drawDate.AddDate(0, 0, -1)
	return time.Date(dayBefore.Year(), dayBefore.Month(), dayBefore.Day(), 12, 0, 0, 0, drawDate.Location())
}

type Scheduler struct {
	notifier Notifier
	now      func() time.Time

	mu     sync.Mutex
	timers map[int]*time.Timer
}

type Option func(*Scheduler)

func WithNotifier(n Notifier) Option {
	return func(s *Scheduler) {
		s.notifier = n
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		notifier: logNotifier{},
		now:      time.Now,
		timers:   make(map[int]*time.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Schedule sets the reminder for a raffle, replacing any prior reminder
// for the same raffle. No-ops when the raffle has no draw date or the
// reminder time has already passed.
func (s *Scheduler) Schedule(raffle domain.Raffle) {
	if raffle.DrawDate == nil {
		return
	}

	at := ReminderTime(*raffle.DrawDate)
	now := s.now()
	if !at.After(now) {
		zap.L().Debug("reminder time already passed, skipping",
			zap.String("raffle_id", raffle.ID),
			zap.Time("at", at))
		return
	}

	id := NotificationID(raffle.ID)
	raffleID := raffle.ID
	title := "Raffle draw reminder"
	body := fmt.Sprintf("Your raffle %q draws tomorrow", raffle.Title)

	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[id]; ok {
		timer.Stop()
	}
	s.timers[id] = time.AfterFunc(at.Sub(now), func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		s.notifier.Notify(raffleID, title, body)
	})

	zap.L().Info("reminder scheduled",
		zap.String("raffle_id", raffle.ID),
		zap.Int("notification_id", id),
		zap.Time("at", at))
}

// Cancel drops the reminder for a raffle, if one is pending.
func (s *Scheduler) Cancel(raffleID string) {
	id := NotificationID(raffleID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
}

// Close stops every pending reminder.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}
