package feeds

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/wagmibets/predictfolio/internal/markets"
)

const (
	reconnectDelay = 5 * time.Second
	pingInterval   = 30 * time.Second
)

// QuoteFeed subscribes to the metadata service's quote stream and keeps the
// latest yes/no bid/ask per market ticker. The aggregator consults it as a
// fresher quote source before falling back to resolver snapshots.
type QuoteFeed struct {
	mu sync.RWMutex

	wsURL     string
	conn      *websocket.Conn
	connected bool
	running   bool
	stopCh    chan struct{}

	// Latest quote per market ticker
	quotes map[string]quoteEntry
}

type quoteEntry struct {
	quote     markets.Quote
	updatedAt time.Time
}

// NewQuoteFeed creates a feed for the given websocket endpoint
func NewQuoteFeed(wsURL string) *QuoteFeed {
	return &QuoteFeed{
		wsURL:  wsURL,
		stopCh: make(chan struct{}),
		quotes: make(map[string]quoteEntry),
	}
}

// Start connects and begins processing
func (f *QuoteFeed) Start() {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return
	}
	f.running = true
	f.mu.Unlock()

	go f.connectionLoop()
	log.Info().Str("url", f.wsURL).Msg("Quote feed started")
}

// Stop closes the connection
func (f *QuoteFeed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return
	}

	f.running = false
	close(f.stopCh)

	if f.conn != nil {
		f.conn.Close()
	}

	log.Info().Msg("Quote feed stopped")
}

// Quote returns the latest streamed quote for a ticker, if one arrived
func (f *QuoteFeed) Quote(ticker string) (markets.Quote, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	entry, ok := f.quotes[ticker]
	if !ok {
		return markets.Quote{}, false
	}
	return entry.quote, true
}

// connectionLoop maintains the WebSocket connection
func (f *QuoteFeed) connectionLoop() {
	for {
		select {
		case <-f.stopCh:
			return
		default:
		}

		if err := f.connect(); err != nil {
			log.Error().Err(err).Msg("Quote feed connection failed, retrying...")
			time.Sleep(reconnectDelay)
			continue
		}

		f.readLoop()
		time.Sleep(reconnectDelay)
	}
}

// connect establishes the connection and subscribes to the quote channel
func (f *QuoteFeed) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL, nil)
	if err != nil {
		return err
	}

	sub := map[string]any{
		"type":    "subscribe",
		"channel": "quotes",
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return err
	}

	f.mu.Lock()
	f.conn = conn
	f.connected = true
	f.mu.Unlock()

	log.Info().Msg("Quote stream connected")

	go f.pingLoop()

	return nil
}

// pingLoop sends periodic pings to keep the connection alive
func (f *QuoteFeed) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.stopCh:
			return
		case <-ticker.C:
			f.mu.RLock()
			conn := f.conn
			connected := f.connected
			f.mu.RUnlock()

			if connected && conn != nil {
				conn.WriteMessage(websocket.PingMessage, nil)
			}
		}
	}
}

// readLoop reads messages until the connection drops
func (f *QuoteFeed) readLoop() {
	for {
		select {
		case <-f.stopCh:
			return
		default:
		}

		f.mu.RLock()
		conn := f.conn
		f.mu.RUnlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("Quote stream read error")
			f.mu.Lock()
			f.connected = false
			f.mu.Unlock()
			return
		}

		f.processMessage(message)
	}
}

// quoteMessage is one quote update on the stream
type quoteMessage struct {
	Type   string           `json:"type"`
	Ticker string           `json:"ticker"`
	YesBid *decimal.Decimal `json:"yes_bid"`
	YesAsk *decimal.Decimal `json:"yes_ask"`
	NoBid  *decimal.Decimal `json:"no_bid"`
	NoAsk  *decimal.Decimal `json:"no_ask"`
}

func (f *QuoteFeed) processMessage(data []byte) {
	var msgs []quoteMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		// Try single message
		var msg quoteMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		msgs = []quoteMessage{msg}
	}

	now := time.Now()
	f.mu.Lock()
	for _, msg := range msgs {
		if msg.Ticker == "" || msg.Type != "quote" {
			continue
		}
		f.quotes[msg.Ticker] = quoteEntry{
			quote: markets.Quote{
				YesBid: msg.YesBid,
				YesAsk: msg.YesAsk,
				NoBid:  msg.NoBid,
				NoAsk:  msg.NoAsk,
			},
			updatedAt: now,
		}
	}
	f.mu.Unlock()
}
