package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rifadigital/rifa-api/internal/domain"
)

var errRemote = errors.New("remote store unavailable")

// fakeRaffleRepo is an in-memory stand-in for the remote store. Writes
// can be gated (to observe optimistic state before confirmation) or
// forced to fail.
type fakeRaffleRepo struct {
	mu         sync.Mutex
	raffles    map[string]domain.Raffle
	failWrites bool
	failReads  bool
	writeGate  chan struct{}
}

func newFakeRepo() *fakeRaffleRepo {
	return &fakeRaffleRepo{
		raffles: make(map[string]domain.Raffle),
	}
}

func (f *fakeRaffleRepo) waitGate(ctx context.Context) error {
	f.mu.Lock()
	gate := f.writeGate
	f.mu.Unlock()
	if gate == nil {
		return nil
	}

	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeRaffleRepo) FindByOwnerID(ctx context.Context, ownerID uint) ([]domain.Raffle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failReads {
		return nil, errRemote
	}

	var raffles []domain.Raffle
	for _, r := range f.raffles {
		if r.OwnerID == ownerID {
			raffles = append(raffles, r)
		}
	}

	return raffles, nil
}

func (f *fakeRaffleRepo) Create(ctx context.Context, raffle domain.Raffle) (domain.Raffle, error) {
	if err := f.waitGate(ctx); err != nil {
		return domain.Raffle{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWrites {
		return domain.Raffle{}, errRemote
	}
	f.raffles[raffle.ID] = raffle

	return raffle, nil
}

func (f *fakeRaffleRepo) Update(ctx context.Context, raffle domain.Raffle) (domain.Raffle, error) {
	if err := f.waitGate(ctx); err != nil {
		return domain.Raffle{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWrites {
		return domain.Raffle{}, errRemote
	}
	f.raffles[raffle.ID] = raffle

	return raffle, nil
}

func (f *fakeRaffleRepo) ReplaceTickets(ctx context.Context, raffleID string, tickets []domain.Ticket) error {
	if err := f.waitGate(ctx); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWrites {
		return errRemote
	}
	raffle, ok := f.raffles[raffleID]
	if !ok {
		return errRemote
	}
	raffle.Tickets = tickets
	f.raffles[raffleID] = raffle

	return nil
}

func (f *fakeRaffleRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWrites {
		return errRemote
	}
	delete(f.raffles, id)

	return nil
}

func attach(t *testing.T, s *Store, ownerID uint) *Session {
	t.Helper()

	sess, err := s.Attach(context.Background(), ownerID)
	require.NoError(t, err)
	t.Cleanup(sess.Detach)

	return sess
}

func waitSynced(t *testing.T, sess *Session) {
	t.Helper()

	require.Eventually(t, sess.Synced, 2*time.Second, 10*time.Millisecond)
}

func TestAddRaffle_BuildsFullTicketSequence(t *testing.T) {
	repo := newFakeRepo()
	sess := attach(t, New(repo), 1)

	id, err := sess.AddRaffle(RaffleInput{Title: "Summer raffle", TicketCount: "25"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	raffle, ok := sess.GetRaffle(id)
	require.True(t, ok)
	assert.Equal(t, uint(1), raffle.OwnerID)
	assert.Equal(t, 25, raffle.TicketCount)
	require.Len(t, raffle.Tickets, 25)
	for i, ticket := range raffle.Tickets {
		assert.Equal(t, i+1, ticket.Number)
		assert.Equal(t, domain.TicketAvailable, ticket.Status)
		assert.Nil(t, ticket.Holder)
	}

	waitSynced(t, sess)
}

func TestAddRaffle_CustomCountTakenVerbatim(t *testing.T) {
	repo := newFakeRepo()
	sess := attach(t, New(repo), 1)

	id, err := sess.AddRaffle(RaffleInput{
		Title:       "Custom",
		TicketCount: "custom",
		CustomCount: "12",
	})
	require.NoError(t, err)

	raffle, _ := sess.GetRaffle(id)
	assert.Equal(t, 12, raffle.TicketCount)
	assert.Len(t, raffle.Tickets, 12)
}

func TestAddRaffle_Validation(t *testing.T) {
	repo := newFakeRepo()
	sess := attach(t, New(repo), 1)

	_, err := sess.AddRaffle(RaffleInput{Title: "  ", TicketCount: "10"})
	assert.ErrorIs(t, err, ErrEmptyTitle)

	_, err = sess.AddRaffle(RaffleInput{Title: "No count", TicketCount: "0"})
	assert.ErrorIs(t, err, ErrInvalidTicketCount)

	_, err = sess.AddRaffle(RaffleInput{Title: "Bad count", TicketCount: "many"})
	assert.ErrorIs(t, err, ErrInvalidTicketCount)

	_, err = sess.AddRaffle(RaffleInput{Title: "Bad custom", TicketCount: "custom", CustomCount: "-3"})
	assert.ErrorIs(t, err, ErrInvalidTicketCount)

	// Nothing was applied locally or remotely.
	assert.Empty(t, sess.Raffles())
	assert.Empty(t, repo.raffles)
}

func TestAddRaffle_FiltersBlankPrizes(t *testing.T) {
	repo := newFakeRepo()
	sess := attach(t, New(repo), 1)

	id, err := sess.AddRaffle(RaffleInput{
		Title:       "Prizes",
		TicketCount: "5",
		Prizes:      []string{"Bicycle", "  ", "", "TV"},
	})
	require.NoError(t, err)

	raffle, _ := sess.GetRaffle(id)
	assert.Equal(t, []string{"Bicycle", "TV"}, raffle.Prizes)
}

func TestAddRaffle_OptimisticBeforeRemoteConfirm(t *testing.T) {
	repo := newFakeRepo()
	gate := make(chan struct{})
	repo.writeGate = gate

	sess := attach(t, New(repo), 1)

	id, err := sess.AddRaffle(RaffleInput{Title: "Pending", TicketCount: "10"})
	require.NoError(t, err)

	// The remote write has not confirmed yet, but local state already
	// reflects the new raffle.
	raffle, ok := sess.GetRaffle(id)
	require.True(t, ok)
	assert.Equal(t, "Pending", raffle.Title)
	assert.False(t, sess.Synced())

	close(gate)
	waitSynced(t, sess)

	repo.mu.Lock()
	_, persisted := repo.raffles[id]
	repo.mu.Unlock()
	assert.True(t, persisted)
}

func TestAddRaffle_FailedWriteKeepsLocalState(t *testing.T) {
	repo := newFakeRepo()
	repo.failWrites = true

	sess := attach(t, New(repo), 1)

	id, err := sess.AddRaffle(RaffleInput{Title: "Doomed", TicketCount: "5"})
	require.NoError(t, err)

	// The write fails in the background; the raffle stays visible and
	// the session is never reported as synced again.
	require.Eventually(t, func() bool {
		return !sess.Synced()
	}, 2*time.Second, 10*time.Millisecond)

	_, ok := sess.GetRaffle(id)
	assert.True(t, ok)

	time.Sleep(50 * time.Millisecond)
	assert.False(t, sess.Synced())
}

func TestFailedWriteSyncedRecoversAfterReconcile(t *testing.T) {
	repo := newFakeRepo()
	repo.failWrites = true

	sess := attach(t, New(repo), 1)

	lostID, err := sess.AddRaffle(RaffleInput{Title: "Lost", TicketCount: "5"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return !sess.Synced()
	}, 2*time.Second, 10*time.Millisecond)

	repo.mu.Lock()
	repo.failWrites = false
	repo.mu.Unlock()

	// The next successful write reconciles against the authoritative
	// set: the session is synced again and the failed raffle is gone.
	keptID, err := sess.AddRaffle(RaffleInput{Title: "Kept", TicketCount: "5"})
	require.NoError(t, err)
	waitSynced(t, sess)

	_, ok := sess.GetRaffle(lostID)
	assert.False(t, ok)
	_, ok = sess.GetRaffle(keptID)
	assert.True(t, ok)
}

func TestUpdateRaffle_GrowPreservesSoldTickets(t *testing.T) {
	repo := newFakeRepo()
	sess := attach(t, New(repo), 1)

	id, err := sess.AddRaffle(RaffleInput{Title: "Grow", TicketCount: "5"})
	require.NoError(t, err)
	require.NoError(t, sess.UpdateTicket(id, 3, &domain.Holder{Name: "Ana", Phone: "555"}))

	require.NoError(t, sess.UpdateRaffle(id, RaffleInput{Title: "Grow", TicketCount: "8"}))

	raffle, _ := sess.GetRaffle(id)
	require.Len(t, raffle.Tickets, 8)
	assert.Equal(t, domain.TicketSold, raffle.Tickets[2].Status)
	require.NotNil(t, raffle.Tickets[2].Holder)
	assert.Equal(t, "Ana", raffle.Tickets[2].Holder.Name)
	for _, ticket := range raffle.Tickets[5:] {
		assert.Equal(t, domain.TicketAvailable, ticket.Status)
	}

	waitSynced(t, sess)
}

func TestUpdateRaffle_ShrinkDiscardsSoldTail(t *testing.T) {
	repo := newFakeRepo()
	sess := attach(t, New(repo), 1)

	id, err := sess.AddRaffle(RaffleInput{Title: "Shrink", TicketCount: "10"})
	require.NoError(t, err)
	require.NoError(t, sess.UpdateTicket(id, 9, &domain.Holder{Name: "Luis"}))

	require.NoError(t, sess.UpdateRaffle(id, RaffleInput{Title: "Shrink", TicketCount: "4"}))

	raffle, _ := sess.GetRaffle(id)
	require.Len(t, raffle.Tickets, 4)
	assert.Equal(t, 4, raffle.TicketCount)
	for i, ticket := range raffle.Tickets {
		assert.Equal(t, i+1, ticket.Number)
		assert.Equal(t, domain.TicketAvailable, ticket.Status)
	}

	waitSynced(t, sess)
}

func TestUpdateRaffle_NotFound(t *testing.T) {
	repo := newFakeRepo()
	sess := attach(t, New(repo), 1)

	err := sess.UpdateRaffle("missing", RaffleInput{Title: "X", TicketCount: "5"})
	assert.ErrorIs(t, err, ErrRaffleNotFound)
}

func TestUpdateTicket_SellThenRelease(t *testing.T) {
	repo := newFakeRepo()
	gate := make(chan struct{})

	sess := attach(t, New(repo), 1)

	id, err := sess.AddRaffle(RaffleInput{Title: "Tickets", TicketCount: "10"})
	require.NoError(t, err)
	waitSynced(t, sess)

	// Gate further writes so the read-after-write below is served purely
	// from optimistic local state.
	repo.mu.Lock()
	repo.writeGate = gate
	repo.mu.Unlock()

	require.NoError(t, sess.UpdateTicket(id, 5, &domain.Holder{Name: "Ana", Phone: "555"}))

	raffle, ok := sess.GetRaffle(id)
	require.True(t, ok)
	ticket, ok := raffle.FindTicket(5)
	require.True(t, ok)
	assert.Equal(t, domain.TicketSold, ticket.Status)
	require.NotNil(t, ticket.Holder)
	assert.Equal(t, "Ana", ticket.Holder.Name)
	assert.Equal(t, "555", ticket.Holder.Phone)
	assert.False(t, sess.Synced())

	close(gate)
	waitSynced(t, sess)

	require.NoError(t, sess.UpdateTicket(id, 5, nil))

	raffle, _ = sess.GetRaffle(id)
	ticket, _ = raffle.FindTicket(5)
	assert.Equal(t, domain.TicketAvailable, ticket.Status)
	assert.Nil(t, ticket.Holder)

	waitSynced(t, sess)
}

func TestUpdateTicket_Validation(t *testing.T) {
	repo := newFakeRepo()
	sess := attach(t, New(repo), 1)

	id, err := sess.AddRaffle(RaffleInput{Title: "Tickets", TicketCount: "3"})
	require.NoError(t, err)

	err = sess.UpdateTicket(id, 2, &domain.Holder{Name: "  "})
	assert.ErrorIs(t, err, ErrEmptyHolderName)

	err = sess.UpdateTicket(id, 99, &domain.Holder{Name: "Ana"})
	assert.ErrorIs(t, err, ErrTicketNotFound)

	err = sess.UpdateTicket("missing", 1, nil)
	assert.ErrorIs(t, err, ErrRaffleNotFound)
}

func TestDeleteRaffle(t *testing.T) {
	repo := newFakeRepo()
	sess := attach(t, New(repo), 1)

	id, err := sess.AddRaffle(RaffleInput{Title: "Gone", TicketCount: "5"})
	require.NoError(t, err)
	waitSynced(t, sess)

	require.NoError(t, sess.DeleteRaffle(context.Background(), id))

	_, ok := sess.GetRaffle(id)
	assert.False(t, ok)
	assert.Empty(t, sess.Raffles())

	err = sess.DeleteRaffle(context.Background(), id)
	assert.ErrorIs(t, err, ErrRaffleNotFound)
}

func TestListingIsOwnerScoped(t *testing.T) {
	repo := newFakeRepo()
	s := New(repo)

	mine := attach(t, s, 1)
	theirs := attach(t, s, 2)

	_, err := mine.AddRaffle(RaffleInput{Title: "Mine", TicketCount: "5"})
	require.NoError(t, err)
	_, err = theirs.AddRaffle(RaffleInput{Title: "Theirs", TicketCount: "5"})
	require.NoError(t, err)
	waitSynced(t, mine)
	waitSynced(t, theirs)

	myRaffles := mine.Raffles()
	require.Len(t, myRaffles, 1)
	assert.Equal(t, "Mine", myRaffles[0].Title)

	theirRaffles := theirs.Raffles()
	require.Len(t, theirRaffles, 1)
	assert.Equal(t, "Theirs", theirRaffles[0].Title)
}

func TestRafflesSortedNewestFirst(t *testing.T) {
	repo := newFakeRepo()
	now := time.Now()
	repo.raffles["old"] = domain.Raffle{ID: "old", OwnerID: 1, Title: "Old", CreatedAt: now.Add(-time.Hour)}
	repo.raffles["new"] = domain.Raffle{ID: "new", OwnerID: 1, Title: "New", CreatedAt: now}

	sess := attach(t, New(repo), 1)

	raffles := sess.Raffles()
	require.Len(t, raffles, 2)
	assert.Equal(t, "New", raffles[0].Title)
	assert.Equal(t, "Old", raffles[1].Title)
}

func TestSubscribe_DeliversSnapshots(t *testing.T) {
	repo := newFakeRepo()
	sess := attach(t, New(repo), 1)

	snapshots, cancel := sess.Subscribe()
	defer cancel()

	// The current state arrives first.
	snap := <-snapshots
	assert.Empty(t, snap.Raffles)
	assert.True(t, snap.Synced)

	id, err := sess.AddRaffle(RaffleInput{Title: "Live", TicketCount: "5"})
	require.NoError(t, err)

	// Every delivered snapshot is the complete replacement set; wait for
	// the one confirming the write.
	require.Eventually(t, func() bool {
		select {
		case snap = <-snapshots:
		default:
		}
		return len(snap.Raffles) == 1 && snap.Synced
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, id, snap.Raffles[0].ID)
}

func TestSubscribe_CancelClosesChannel(t *testing.T) {
	repo := newFakeRepo()
	sess := attach(t, New(repo), 1)

	snapshots, cancel := sess.Subscribe()
	<-snapshots
	cancel()

	_, open := <-snapshots
	assert.False(t, open)
}

func TestAttach_InitialLoadFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.failReads = true

	_, err := New(repo).Attach(context.Background(), 1)
	assert.Error(t, err)
}

func TestAttach_SharesSessionPerOwner(t *testing.T) {
	repo := newFakeRepo()
	s := New(repo)

	first := attach(t, s, 1)
	second := attach(t, s, 1)

	assert.Same(t, first, second)
}

// The end-to-end scenario from the data-layer contract: create, sell,
// then shrink below the sold number.
func TestScenario_CreateSellShrink(t *testing.T) {
	repo := newFakeRepo()
	sess := attach(t, New(repo), 1)

	id, err := sess.AddRaffle(RaffleInput{
		Title:       "Test",
		TicketCount: "25",
		Prizes:      []string{"Bicycle"},
	})
	require.NoError(t, err)

	raffle, ok := sess.GetRaffle(id)
	require.True(t, ok)
	assert.Equal(t, []string{"Bicycle"}, raffle.Prizes)
	require.Len(t, raffle.Tickets, 25)

	require.NoError(t, sess.UpdateTicket(id, 5, &domain.Holder{Name: "Ana", Phone: "555"}))

	raffle, _ = sess.GetRaffle(id)
	for _, ticket := range raffle.Tickets {
		if ticket.Number == 5 {
			assert.Equal(t, domain.TicketSold, ticket.Status)
			require.NotNil(t, ticket.Holder)
			assert.Equal(t, "Ana", ticket.Holder.Name)
			assert.Equal(t, "555", ticket.Holder.Phone)
			continue
		}
		assert.Equal(t, domain.TicketAvailable, ticket.Status)
		assert.Nil(t, ticket.Holder)
	}

	require.NoError(t, sess.UpdateRaffle(id, RaffleInput{
		Title:       "Test",
		TicketCount: "3",
		Prizes:      []string{"Bicycle"},
	}))

	raffle, _ = sess.GetRaffle(id)
	require.Len(t, raffle.Tickets, 3)
	for i, ticket := range raffle.Tickets {
		assert.Equal(t, i+1, ticket.Number)
		assert.Equal(t, domain.TicketAvailable, ticket.Status)
		assert.Nil(t, ticket.Holder)
	}

	waitSynced(t, sess)
}
