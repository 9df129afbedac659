package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/edgescout/edgescout/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// historyRetention caps how far back price points are kept.
	historyRetention = 48 * time.Hour
)

// pricePoint is one observed price with its arrival time.
type pricePoint struct {
	price float64
	at    time.Time
}

// feedMessage is the envelope of price frames on the market channel.
type feedMessage struct {
	EventType string `json:"event_type"`
	Market    string `json:"market"`
	Price     string `json:"price"`
	Timestamp string `json:"timestamp"`
}

// subscribeCommand is the JSON payload sent to subscribe to market channels.
type subscribeCommand struct {
	Type    string   `json:"type"`
	Channel string   `json:"channel,omitempty"`
	Markets []string `json:"markets,omitempty"`
}

// PriceFeed is a WebSocket client that records recent prices per contract so
// the scoring engine can check for large moves immediately preceding
// analysis. It implements domain.PriceHistory; contracts it has no points
// for report ok=false and the caller skips the check.
type PriceFeed struct {
	wsURL string
	conn  *websocket.Conn

	// writeMu serializes connection writes; the websocket permits only one
	// concurrent writer and both Subscribe and the ping loop write.
	writeMu sync.Mutex

	mu      sync.RWMutex
	closed  bool
	history map[string][]pricePoint

	done chan struct{}
}

// NewPriceFeed creates a price feed client for the given WebSocket URL.
func NewPriceFeed(wsURL string) *PriceFeed {
	return &PriceFeed{
		wsURL:   wsURL,
		history: make(map[string][]pricePoint),
		done:    make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the read and ping
// loops.
func (p *PriceFeed) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("catalog/feed: client closed")
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, p.wsURL, nil)
	if err != nil {
		return fmt.Errorf("catalog/feed: connect: %w", err)
	}

	p.conn = conn

	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go p.readLoop()
	go p.pingLoop()

	return nil
}

// Subscribe registers interest in price updates for the given contract IDs.
func (p *PriceFeed) Subscribe(contractIDs []string) error {
	p.mu.RLock()
	conn := p.conn
	p.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("catalog/feed: subscribe before connect")
	}

	cmd := subscribeCommand{
		Type:    "subscribe",
		Channel: "market",
		Markets: contractIDs,
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("catalog/feed: subscribe: %w", err)
	}
	return nil
}

// Close shuts down the feed. It is safe to call multiple times.
func (p *PriceFeed) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)

	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// RecentMove returns the absolute price change observed for the contract over
// the given window, and whether enough history exists to answer. It
// implements domain.PriceHistory.
func (p *PriceFeed) RecentMove(contractID string, window time.Duration) (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	points := p.history[contractID]
	if len(points) < 2 {
		return 0, false
	}

	cutoff := time.Now().Add(-window)
	latest := points[len(points)-1]

	// Earliest point inside the window serves as the baseline.
	for _, pt := range points {
		if pt.at.After(cutoff) {
			if pt.at.Equal(latest.at) {
				return 0, false
			}
			delta := latest.price - pt.price
			if delta < 0 {
				delta = -delta
			}
			return delta, true
		}
	}
	return 0, false
}

// Record stores an observed price point for a contract. Exposed so the
// orchestrator can seed history from catalog snapshots, and used internally
// by the read loop.
func (p *PriceFeed) Record(contractID string, price float64, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	points := append(p.history[contractID], pricePoint{price: price, at: at})

	// Drop points older than the retention horizon.
	cutoff := time.Now().Add(-historyRetention)
	start := 0
	for start < len(points) && points[start].at.Before(cutoff) {
		start++
	}
	p.history[contractID] = points[start:]
}

func (p *PriceFeed) readLoop() {
	for {
		select {
		case <-p.done:
			return
		default:
		}

		p.mu.RLock()
		conn := p.conn
		p.mu.RUnlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			// Connection lost. The feed is best-effort; history simply stops
			// growing and RecentMove degrades to ok=false for new contracts.
			return
		}

		var msg feedMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.EventType != "price_change" && msg.EventType != "last_trade_price" {
			continue
		}

		price, err := strconv.ParseFloat(msg.Price, 64)
		if err != nil {
			continue
		}

		at := time.Now()
		if ms, err := strconv.ParseInt(msg.Timestamp, 10, 64); err == nil && ms > 0 {
			at = time.UnixMilli(ms)
		}

		p.Record(msg.Market, price, at)
	}
}

func (p *PriceFeed) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.mu.RLock()
			conn := p.conn
			p.mu.RUnlock()
			if conn == nil {
				return
			}
			p.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			p.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Compile-time interface check.
var _ domain.PriceHistory = (*PriceFeed)(nil)
