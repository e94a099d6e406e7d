package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/auctioneer/internal/domain"
	"github.com/alanyoungcy/auctioneer/internal/store/memory"
)

func startHub(t *testing.T, cfg Config) (*memory.SignalBus, *httptest.Server) {
	t.Helper()
	bus := memory.NewSignalBus()
	hub := NewHub(bus, slog.New(slog.NewTextHandler(io.Discard, nil)), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	return bus, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func publish(t *testing.T, bus *memory.SignalBus, ev domain.ListingEvent) {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), domain.ListingChannel(ev.Listing), data))
}

func TestHubRoutesByListing(t *testing.T) {
	house := solana.NewWallet().PublicKey()
	bus, srv := startHub(t, Config{AuctionHouse: house.String()})

	watched := solana.NewWallet().PublicKey()
	other := solana.NewWallet().PublicKey()

	conn := dial(t, srv, "?listing="+watched.String())
	hello := readJSON(t, conn)
	assert.Equal(t, "hello", hello["type"])
	assert.Equal(t, house.String(), hello["auction_house"])

	publish(t, bus, domain.ListingEvent{ID: "1", Type: domain.EventBidPlaced, Listing: other})
	publish(t, bus, domain.ListingEvent{ID: "2", Type: domain.EventBidPlaced, Listing: watched})

	got := readJSON(t, conn)
	assert.Equal(t, "2", got["id"])
	assert.Equal(t, watched.String(), got["listing"])
}

func TestHubDefaultsToEveryListing(t *testing.T) {
	bus, srv := startHub(t, Config{})
	conn := dial(t, srv, "")
	readJSON(t, conn)

	listing := solana.NewWallet().PublicKey()
	publish(t, bus, domain.ListingEvent{ID: "a", Type: domain.EventListingCreated, Listing: listing})
	got := readJSON(t, conn)
	assert.Equal(t, "listing_created", got["event"])
}

func TestHubSubscribeMessage(t *testing.T) {
	bus, srv := startHub(t, Config{})
	first := solana.NewWallet().PublicKey()
	second := solana.NewWallet().PublicKey()

	conn := dial(t, srv, "?listing="+first.String())
	readJSON(t, conn)

	require.NoError(t, conn.WriteJSON(subscribeMsg{Action: "unsubscribe", Listings: []string{first.String()}}))
	require.NoError(t, conn.WriteJSON(subscribeMsg{Action: "subscribe", Listings: []string{second.String()}}))

	// The read pump applies subscription changes asynchronously, so keep
	// publishing until one is delivered.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				data, _ := json.Marshal(domain.ListingEvent{ID: "warmup", Listing: second})
				_ = bus.Publish(context.Background(), domain.ListingChannel(second), data)
			}
		}
	}()

	got := readJSON(t, conn)
	assert.Equal(t, second.String(), got["listing"])
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example"})
	req := httptest.NewRequest("GET", "/ws", nil)
	assert.True(t, check(req), "no origin header")

	req.Header.Set("Origin", "https://app.example")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
	assert.True(t, originChecker(nil)(req))
}
