package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startFeedServer(t *testing.T, received chan<- subscribeCommand) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var cmd subscribeCommand
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			received <- cmd
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

// The connection permits a single concurrent writer, so parallel Subscribe
// calls must be serialized rather than racing each other or the ping loop.
func TestPriceFeedConcurrentSubscribes(t *testing.T) {
	const writers = 8

	received := make(chan subscribeCommand, writers)
	srv := startFeedServer(t, received)

	feed := NewPriceFeed(wsURL(srv.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, feed.Connect(ctx))
	defer feed.Close()

	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs <- feed.Subscribe([]string{fmt.Sprintf("contract-%d", n)})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	for i := 0; i < writers; i++ {
		select {
		case cmd := <-received:
			assert.Equal(t, "subscribe", cmd.Type)
			assert.Equal(t, "market", cmd.Channel)
			assert.Len(t, cmd.Markets, 1)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for subscribe frames")
		}
	}
}

func TestPriceFeedSubscribeBeforeConnect(t *testing.T) {
	feed := NewPriceFeed("ws://unused")
	assert.Error(t, feed.Subscribe([]string{"c-1"}))
}

func TestPriceFeedRecentMove(t *testing.T) {
	feed := NewPriceFeed("ws://unused")
	now := time.Now()

	feed.Record("c-1", 0.40, now.Add(-30*time.Minute))
	feed.Record("c-1", 0.52, now.Add(-time.Minute))

	move, ok := feed.RecentMove("c-1", time.Hour)
	require.True(t, ok)
	assert.InDelta(t, 0.12, move, 1e-9)

	// Window too narrow to contain a baseline point.
	_, ok = feed.RecentMove("c-1", 10*time.Second)
	assert.False(t, ok)

	// Unknown contract has no history.
	_, ok = feed.RecentMove("c-2", time.Hour)
	assert.False(t, ok)
}
