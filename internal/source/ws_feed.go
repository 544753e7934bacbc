package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Websocket feed tuning.
const (
	wsHandshakeTimeout = 10 * time.Second
	wsReadDeadline     = 30 * time.Second
	wsPingInterval     = 15 * time.Second
	wsWriteTimeout     = 5 * time.Second
	wsMaxMessageSize   = 1 << 20
	wsInitialBackoff   = time.Second
	wsMaxBackoff       = 30 * time.Second
	wsBackoffFactor    = 1.8
)

// WSFeed streams live trades from the Binance combined websocket and keeps
// the latest price per pair. Fetch snapshots that map, so the poll loop
// stays synchronous while prices arrive continuously in the background.
type WSFeed struct {
	endpoint string
	pairs    []string
	logger   *log.Logger

	mu         sync.RWMutex
	lastPrices map[string]float64
}

// NewWSFeed creates a websocket price feed for the given pairs. Run must
// be started before Fetch returns anything.
func NewWSFeed(pairs []string, logger *log.Logger) *WSFeed {
	streams := make([]string, len(pairs))
	for i, p := range pairs {
		streams[i] = strings.ToLower(p) + "@trade"
	}
	return &WSFeed{
		endpoint:   fmt.Sprintf("wss://stream.binance.com:9443/stream?streams=%s", strings.Join(streams, "/")),
		pairs:      pairs,
		logger:     logger,
		lastPrices: make(map[string]float64),
	}
}

// Name identifies the source on persisted observations.
func (f *WSFeed) Name() string {
	return "binance-ws"
}

// Fetch returns the latest streamed price for each pair that has traded
// since the feed connected. Pairs without a price yet are omitted.
func (f *WSFeed) Fetch(_ context.Context, pairs []string) map[string]float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	prices := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		if price, ok := f.lastPrices[pair]; ok {
			prices[pair] = price
		}
	}
	return prices
}

// Run consumes the stream until ctx is cancelled, reconnecting with
// exponential backoff on transient failures.
func (f *WSFeed) Run(ctx context.Context) error {
	backoff := wsInitialBackoff
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := f.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logf("feed disconnected, retrying in %s: %v", backoff, err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = time.Duration(math.Min(float64(wsMaxBackoff), float64(backoff)*wsBackoffFactor))
	}
}

// streamEnvelope is the combined-stream message wrapper.
type streamEnvelope struct {
	Stream string      `json:"stream"`
	Data   tradeUpdate `json:"data"`
}

// tradeUpdate carries the fields of a trade message this feed uses.
type tradeUpdate struct {
	Symbol string `json:"s"`
	Price  string `json:"p"`
}

func (f *WSFeed) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", f.endpoint, err)
	}
	defer conn.Close()

	f.logf("connected, pairs=%v", f.pairs)

	conn.SetReadLimit(wsMaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					f.logf("ping failed: %v", err)
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var env streamEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			f.logf("bad message: %v", err)
			continue
		}
		if env.Data.Symbol == "" || env.Data.Price == "" {
			continue
		}
		price, err := strconv.ParseFloat(env.Data.Price, 64)
		if err != nil {
			f.logf("bad price %q: %v", env.Data.Price, err)
			continue
		}

		f.mu.Lock()
		f.lastPrices[strings.ToUpper(env.Data.Symbol)] = price
		f.mu.Unlock()
	}
}

func (f *WSFeed) logf(format string, args ...interface{}) {
	if f.logger != nil {
		f.logger.Printf("[binance-ws] "+format, args...)
	}
}
