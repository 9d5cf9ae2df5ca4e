package binance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
	domrepo "github.com/Yoitsuro/mySkripsiWebsite/internal/domain/repository"
	xlogger "github.com/Yoitsuro/mySkripsiWebsite/pkg/logger"
	"github.com/Yoitsuro/mySkripsiWebsite/pkg/util"
)

// Stream is a kline websocket for one market.
type Stream struct {
	url            string
	stream         string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	logger         *xlogger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected atomic.Bool
	nextID    atomic.Int64
}

func NewStream(wsURL, symbol string, tf domrepo.Timeframe, reconnectDelay, pingInterval time.Duration, logger *xlogger.Logger) *Stream {
	if logger == nil {
		logger = xlogger.NewNop()
	}
	return &Stream{
		url:            strings.TrimRight(wsURL, "/"),
		stream:         fmt.Sprintf("%s@kline_%s", strings.ToLower(util.ExchangeSymbol(symbol)), tf),
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		logger:         logger.With(xlogger.String("component", "binance_stream")),
	}
}

// Connect dials the websocket endpoint.
func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("binance stream connect: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.connected.Store(true)
	s.logger.Info("connected", xlogger.String("url", s.url))
	return nil
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// Subscribe requests the kline stream of the configured market.
func (s *Stream) Subscribe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || !s.connected.Load() {
		return fmt.Errorf("binance stream not connected")
	}
	req := subscribeRequest{Method: "SUBSCRIBE", Params: []string{s.stream}, ID: s.nextID.Add(1)}
	if err := s.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.stream, err)
	}
	s.logger.Info("subscribed", xlogger.String("stream", s.stream))
	return nil
}

// Read streams kline updates. The error channel carries at most one error,
// after which both channels close.
func (s *Stream) Read(ctx context.Context) (<-chan models.Candle, <-chan error) {
	candles := make(chan models.Candle, 256)
	errs := make(chan error, 1)

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	done := make(chan struct{})
	go s.pingLoop(ctx, conn, done)

	go func() {
		defer close(candles)
		defer close(errs)
		defer close(done)
		if conn == nil {
			errs <- fmt.Errorf("binance stream conn nil")
			return
		}
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil && s.connected.Load() {
					errs <- fmt.Errorf("binance stream read: %w", err)
				}
				return
			}
			var ev binance.WsKlineEvent
			if err := sonic.Unmarshal(b, &ev); err != nil || ev.Event != "kline" {
				// subscription acks and unknown frames
				continue
			}
			c, err := candleFromStrings(ev.Kline.StartTime, ev.Kline.Open, ev.Kline.High, ev.Kline.Low, ev.Kline.Close, ev.Kline.Volume)
			if err != nil {
				s.logger.Warn("bad kline frame", xlogger.Error(err))
				continue
			}
			select {
			case candles <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return candles, errs
}

func (s *Stream) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	if conn == nil || s.pingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			s.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			s.mu.Unlock()
			if err != nil {
				s.logger.Debug("ping failed", xlogger.Error(err))
			}
		}
	}
}

// Reconnect closes, waits and reconnects.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	select {
	case <-time.After(s.reconnectDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

func (s *Stream) Close() error {
	s.connected.Store(false)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

func (s *Stream) IsConnected() bool { return s.connected.Load() }

var _ domrepo.CandleStream = (*Stream)(nil)
