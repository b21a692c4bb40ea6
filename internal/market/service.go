package market

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/GoPolymarket/polychat/internal/pkg/logger"
	"github.com/gorilla/websocket"
)

const (
	DefaultWSURL    = "wss://ws-subscriptions-clob.polymarket.com/ws/market"
	ReconnBaseDelay = 1 * time.Second
	ReconnMaxDelay  = 30 * time.Second
	PingPeriod      = 15 * time.Second
)

// MarketService keeps live order books for tokens the agent has looked at.
// Subscriptions are added on demand by the order book tool.
type MarketService struct {
	url string

	mu          sync.RWMutex
	books       map[string]*Orderbook
	subs        []string
	isConnected bool

	connMu sync.Mutex // guards conn writes
	conn   *websocket.Conn

	ctx    context.Context
	cancel context.CancelFunc
}

func NewMarketService(url string) *MarketService {
	if url == "" {
		url = DefaultWSURL
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MarketService{
		url:    url,
		books:  make(map[string]*Orderbook),
		subs:   make([]string, 0),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the connection loop in a background goroutine
func (s *MarketService) Start() {
	go s.runLoop()
}

func (s *MarketService) Stop() {
	s.cancel()
	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.connMu.Unlock()
}

// Subscribe adds tokenIDs to the subscription list and updates the connection if active
func (s *MarketService) Subscribe(tokenIDs []string) {
	s.mu.Lock()
	added := make([]string, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		if id == "" {
			continue
		}
		if _, ok := s.books[id]; ok {
			continue
		}
		s.subs = append(s.subs, id)
		s.books[id] = NewOrderbook(id)
		added = append(added, id)
	}
	connected := s.isConnected
	s.mu.Unlock()

	if len(added) > 0 && connected {
		if err := s.sendSubscribe(added); err != nil {
			logger.Warn("market subscribe failed", "error", err, "tokens", len(added))
		}
	}
}

func (s *MarketService) GetBook(tokenID string) *Orderbook {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.books[tokenID]
}

func (s *MarketService) runLoop() {
	delay := ReconnBaseDelay

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		if err := s.connect(); err != nil {
			logger.Error("market feed connection failed", "error", err, "retry_in", delay)
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > ReconnMaxDelay {
				delay = ReconnMaxDelay
			}
			continue
		}

		delay = ReconnBaseDelay
		s.mu.Lock()
		s.isConnected = true
		allSubs := append([]string(nil), s.subs...)
		s.mu.Unlock()

		if len(allSubs) > 0 {
			if err := s.sendSubscribe(allSubs); err != nil {
				logger.Error("market resubscribe failed", "error", err)
				s.closeConn()
				s.setDisconnected()
				continue
			}
		}

		s.readLoop()
		s.setDisconnected()
	}
}

func (s *MarketService) setDisconnected() {
	s.mu.Lock()
	s.isConnected = false
	s.mu.Unlock()
}

func (s *MarketService) connect() error {
	conn, _, err := websocket.DefaultDialer.DialContext(s.ctx, s.url, nil)
	if err != nil {
		return err
	}
	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(PingPeriod + 10*time.Second))
	})

	go s.pingLoop(conn)
	return nil
}

func (s *MarketService) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != conn {
				s.connMu.Unlock()
				return
			}
			err := conn.WriteMessage(websocket.PingMessage, nil)
			s.connMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (s *MarketService) closeConn() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

type WSMessage struct {
	EventType string          `json:"event_type"` // "book" or "price_change"
	AssetID   string          `json:"asset_id"`
	Market    string          `json:"market"`
	Bids      []PriceLevelRaw `json:"bids"`
	Asks      []PriceLevelRaw `json:"asks"`
	Changes   []PriceChange   `json:"changes"`
}

type PriceLevelRaw struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type PriceChange struct {
	Price string `json:"price"`
	Size  string `json:"size"`
	Side  string `json:"side"`
}

func (s *MarketService) readLoop() {
	defer s.closeConn()

	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()
	if conn == nil {
		return
	}

	readTimeout := PingPeriod + 10*time.Second
	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() == nil {
				logger.Warn("market feed read error", "error", err)
			}
			return
		}
		s.HandleMessage(message)
	}
}

// HandleMessage applies one raw feed frame. Frames are either an array of
// events or a single event object.
func (s *MarketService) HandleMessage(raw []byte) {
	var msgs []WSMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		var single WSMessage
		if err2 := json.Unmarshal(raw, &single); err2 != nil {
			return
		}
		msgs = []WSMessage{single}
	}

	for _, m := range msgs {
		book := s.GetBook(m.AssetID)
		if book == nil {
			continue
		}
		switch m.EventType {
		case "book":
			book.Snapshot(parseLevels(m.Bids), parseLevels(m.Asks))
		case "price_change":
			for _, c := range m.Changes {
				if err := book.Update(c.Side, c.Price, c.Size); err != nil {
					logger.Debug("bad price change", "error", err, "asset_id", m.AssetID)
				}
			}
		}
	}
}

func parseLevels(raw []PriceLevelRaw) []Level {
	out := make([]Level, 0, len(raw))
	for _, l := range raw {
		lvl, err := ParseLevel(l.Price, l.Size)
		if err != nil {
			continue
		}
		out = append(out, lvl)
	}
	return out
}

func (s *MarketService) sendSubscribe(tokenIDs []string) error {
	msg := map[string]interface{}{
		"type":       "market",
		"assets_ids": tokenIDs,
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("no connection")
	}
	return s.conn.WriteJSON(msg)
}
