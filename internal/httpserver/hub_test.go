package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xNerd/degen-server/internal/domain"
)

// testHub sets up a hub behind a websocket-upgrading test server and
// returns a dial function for clients.
func testHub(t *testing.T) (*Hub, func() *ws.Conn) {
	t.Helper()

	hub := NewHub()
	t.Cleanup(func() { hub.Stop() })

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		_ = hub.Register(conn)

		go func() {
			defer hub.Unregister(conn)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					break
				}
			}
		}()
	}))
	t.Cleanup(server.Close)

	dial := func() *ws.Conn {
		url := "ws" + strings.TrimPrefix(server.URL, "http")
		conn, _, err := ws.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}
	return hub, dial
}

func TestHubBroadcastReachesAllClients(t *testing.T) {
	hub, dial := testHub(t)

	first := dial()
	second := dial()

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 2
	}, 2*time.Second, 10*time.Millisecond)

	digest := domain.Digest{
		Metadata: domain.DigestMetadata{BatchID: "batch-7", SignificantCount: 3},
	}
	hub.Broadcast(digest)

	for _, conn := range []*ws.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err)

		var got domain.Digest
		require.NoError(t, json.Unmarshal(payload, &got))
		assert.Equal(t, "batch-7", got.Metadata.BatchID)
	}
}

func TestHubClientCountTracksDisconnects(t *testing.T) {
	hub, dial := testHub(t)

	conn := dial()
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHubForwardPumpsFeed(t *testing.T) {
	hub, dial := testHub(t)

	conn := dial()
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	feed := make(chan domain.Digest, 1)
	hub.Forward(feed)

	feed <- domain.Digest{Metadata: domain.DigestMetadata{BatchID: "live-1"}}
	close(feed)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var got domain.Digest
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, "live-1", got.Metadata.BatchID)
}

func TestHubStopDisconnectsClients(t *testing.T) {
	hub := NewHub()

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		_ = hub.Register(conn)
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.Stop()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestHubRegisterAfterStopReturns(t *testing.T) {
	hub, dial := testHub(t)

	dial()
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.Stop()
	require.Eventually(t, func() bool {
		return hub.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)

	// A late connection must be rejected promptly, not parked forever.
	late := dial()
	done := make(chan error, 1)
	go func() { done <- hub.Register(late) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errHubStopped)
	case <-time.After(2 * time.Second):
		t.Fatal("Register blocked on a stopped hub")
	}
}
