package v1

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rifadigital/rifa-api/internal/api/middleware"
	"github.com/rifadigital/rifa-api/internal/draw"
	"github.com/rifadigital/rifa-api/internal/metrics"
	"github.com/rifadigital/rifa-api/internal/store"
)

func setupStreamServer(t *testing.T, engine *draw.Engine) (*httptest.Server, *store.Session) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	s := store.New(newMemoryRepo())
	h := NewRaffleHandler(s, engine)

	sess, err := s.Attach(context.Background(), 1)
	require.NoError(t, err)
	t.Cleanup(sess.Detach)

	router := gin.New()
	authed := router.Group("/api/v1")
	authed.Use(func(ctx *gin.Context) {
		ctx.Set(middleware.ContextKeyUserID, uint(1))
	})
	authed.GET("/raffles/ws", h.HandleSubscribe)
	authed.GET("/raffles/:raffleID/draw/ws", h.HandleDrawStream)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return server, sess
}

func dialWS(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	return conn
}

func TestHandleSubscribe_StreamsSnapshots(t *testing.T) {
	server, sess := setupStreamServer(t, draw.NewEngine())

	conn := dialWS(t, server, "/api/v1/raffles/ws")

	// The current state arrives as the first message.
	var snap store.Snapshot
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Empty(t, snap.Raffles)
	assert.True(t, snap.Synced)

	id, err := sess.AddRaffle(store.RaffleInput{Title: "Live", TicketCount: "5"})
	require.NoError(t, err)

	// Snapshots keep arriving until the write is confirmed; each one is
	// the complete replacement set.
	for !snap.Synced || len(snap.Raffles) != 1 {
		require.NoError(t, conn.ReadJSON(&snap))
	}
	assert.Equal(t, id, snap.Raffles[0].ID)
}

func TestHandleSubscribe_ClientCloseTearsDown(t *testing.T) {
	server, _ := setupStreamServer(t, draw.NewEngine())

	conn := dialWS(t, server, "/api/v1/raffles/ws")

	var snap store.Snapshot
	require.NoError(t, conn.ReadJSON(&snap))
	require.NoError(t, conn.Close())

	// The handler cancels its subscription once the peer goes away.
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.LiveSubscribers.WithLabelValues("1")) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestHandleDrawStream_FlashesThenFinal(t *testing.T) {
	engine := draw.NewEngine(
		draw.WithSeed(9),
		draw.WithIterations(3),
		draw.WithInterval(time.Millisecond),
	)
	server, sess := setupStreamServer(t, engine)

	id, err := sess.AddRaffle(store.RaffleInput{Title: "Draw", TicketCount: "10"})
	require.NoError(t, err)

	conn := dialWS(t, server, "/api/v1/raffles/"+id+"/draw/ws")

	var events []draw.Event
	for {
		var ev draw.Event
		require.NoError(t, conn.ReadJSON(&ev))
		events = append(events, ev)
		if ev.Final {
			break
		}
	}

	require.Len(t, events, 4)
	for _, ev := range events[:3] {
		assert.False(t, ev.Final)
		assert.GreaterOrEqual(t, ev.Number, 1)
		assert.LessOrEqual(t, ev.Number, 10)
	}
	final := events[3]
	require.NotNil(t, final.Ticket)
	assert.Equal(t, final.Number, final.Ticket.Number)

	// The server closes the stream after the final event.
	var extra draw.Event
	assert.Error(t, conn.ReadJSON(&extra))
}

func TestHandleDrawStream_ClientCloseDismisses(t *testing.T) {
	engine := draw.NewEngine(
		draw.WithIterations(100000),
		draw.WithInterval(time.Millisecond),
	)
	server, sess := setupStreamServer(t, engine)

	id, err := sess.AddRaffle(store.RaffleInput{Title: "Dismissed", TicketCount: "10"})
	require.NoError(t, err)

	conn := dialWS(t, server, "/api/v1/raffles/"+id+"/draw/ws")

	var ev draw.Event
	require.NoError(t, conn.ReadJSON(&ev))
	require.NoError(t, conn.Close())

	// Closing the socket cancels the animation timer long before its
	// iterations run out.
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.DrawsActive) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestHandleDrawStream_UnknownRaffle(t *testing.T) {
	server, _ := setupStreamServer(t, draw.NewEngine())

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/raffles/missing/draw/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.Nil(t, conn)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
