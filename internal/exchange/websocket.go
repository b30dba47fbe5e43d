package exchange

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"ictengine/internal/core"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// KlineHandler is invoked with each closed candle parsed off the feed.
type KlineHandler func(core.Candle)

// klineMessage is the wire shape of a single kline update, independent of
// any particular venue's field names beyond this minimal set.
type klineMessage struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"interval"`
	OpenTime  int64  `json:"openTime"`
	Open      string `json:"open"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Close     string `json:"close"`
	Volume    string `json:"volume"`
	Closed    bool   `json:"closed"`
}

// WebSocketFeed is a resilient reconnecting kline stream: on disconnect it
// waits reconnectWait and redials, so a single network blip never requires
// restarting the realtime processor that consumes it (§6).
type WebSocketFeed struct {
	url           string
	handler       KlineHandler
	reconnectWait time.Duration
	logger        core.ILogger

	mu   sync.Mutex
	conn *websocket.Conn

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWebSocketFeed constructs a feed against url, delivering parsed candles
// to handler.
func NewWebSocketFeed(url string, handler KlineHandler, logger core.ILogger) *WebSocketFeed {
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocketFeed{
		url:           url,
		handler:       handler,
		reconnectWait: 5 * time.Second,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Start connects and begins listening for messages in the background.
func (f *WebSocketFeed) Start() {
	f.wg.Add(1)
	go f.runLoop()
}

// Stop closes the connection and stops the reconnect loop.
func (f *WebSocketFeed) Stop() {
	f.cancel()
	f.wg.Wait()
	f.closeConn()
}

func (f *WebSocketFeed) runLoop() {
	defer f.wg.Done()
	for {
		select {
		case <-f.ctx.Done():
			return
		default:
			if err := f.connect(); err != nil {
				if f.logger != nil {
					f.logger.Error("exchange feed: connection failed", "error", err, "url", f.url)
				}
				time.Sleep(f.reconnectWait)
				continue
			}
			f.readLoop()
			time.Sleep(f.reconnectWait)
		}
	}
}

func (f *WebSocketFeed) connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	if err != nil {
		return err
	}
	f.conn = conn
	return nil
}

func (f *WebSocketFeed) closeConn() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
}

func (f *WebSocketFeed) readLoop() {
	defer f.closeConn()
	for {
		select {
		case <-f.ctx.Done():
			return
		default:
			f.mu.Lock()
			conn := f.conn
			f.mu.Unlock()
			if conn == nil {
				return
			}
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			candle, ok := parseKlineMessage(message, f.logger)
			if ok && candle.Closed && f.handler != nil {
				f.handler(candle)
			}
		}
	}
}

func parseKlineMessage(raw []byte, logger core.ILogger) (core.Candle, bool) {
	var msg klineMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		if logger != nil {
			logger.Warn("exchange feed: malformed kline message", "error", err)
		}
		return core.Candle{}, false
	}
	tf, err := core.ParseTimeframe(msg.Timeframe)
	if err != nil {
		if logger != nil {
			logger.Warn("exchange feed: unknown timeframe", "raw", msg.Timeframe)
		}
		return core.Candle{}, false
	}
	open, errO := decimal.NewFromString(msg.Open)
	high, errH := decimal.NewFromString(msg.High)
	low, errL := decimal.NewFromString(msg.Low)
	cls, errC := decimal.NewFromString(msg.Close)
	vol, errV := decimal.NewFromString(msg.Volume)
	if errO != nil || errH != nil || errL != nil || errC != nil || errV != nil {
		if logger != nil {
			logger.Warn("exchange feed: malformed kline decimal field")
		}
		return core.Candle{}, false
	}
	candle := core.Candle{
		Symbol:    msg.Symbol,
		Timeframe: tf,
		OpenTime:  msg.OpenTime,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cls,
		Volume:    vol,
		Closed:    msg.Closed,
	}
	if err := candle.Validate(); err != nil {
		if logger != nil {
			logger.Warn("exchange feed: invalid candle", "error", err)
		}
		return core.Candle{}, false
	}
	return candle, true
}
