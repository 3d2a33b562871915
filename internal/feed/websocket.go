package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/LoShan17/loshan-chainflip-challenge/internal/metrics"
	"github.com/LoShan17/loshan-chainflip-challenge/internal/utils"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ConnectionState represents the state of the websocket connection
// (for health checks and monitoring)
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Reconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// DisconnectHandler is called after every failed connection with the number
// of consecutive failures so far.
type DisconnectHandler func(failures int, err error)

// Subscriber keeps the pool price and prewitness swap subscriptions open and
// forwards their notifications on a channel.
type Subscriber struct {
	url        string
	baseAsset  string
	quoteAsset string
	dialer     *websocket.Dialer
	out        chan Notification

	pingInterval  time.Duration
	readTimeout   time.Duration
	minRetryDelay time.Duration
	maxRetryDelay time.Duration
	onDisconnect  DisconnectHandler

	mu        sync.RWMutex
	conn      *websocket.Conn
	cancel    context.CancelFunc
	closed    bool
	healthErr error
	connState ConnectionState
	lastPong  time.Time
}

type SubscriberOption func(*Subscriber)

// WithRetryDelay bounds the reconnect backoff.
func WithRetryDelay(minDelay, maxDelay time.Duration) SubscriberOption {
	return func(s *Subscriber) {
		s.minRetryDelay = minDelay
		s.maxRetryDelay = maxDelay
	}
}

// WithKeepalive sets the ping period and how long a read may block.
func WithKeepalive(ping, readTimeout time.Duration) SubscriberOption {
	return func(s *Subscriber) {
		s.pingInterval = ping
		s.readTimeout = readTimeout
	}
}

func WithDisconnectHandler(h DisconnectHandler) SubscriberOption {
	return func(s *Subscriber) { s.onDisconnect = h }
}

func WithBuffer(size int) SubscriberOption {
	return func(s *Subscriber) { s.out = make(chan Notification, size) }
}

func NewSubscriber(url, baseAsset, quoteAsset string, opts ...SubscriberOption) *Subscriber {
	s := &Subscriber{
		url:           url,
		baseAsset:     baseAsset,
		quoteAsset:    quoteAsset,
		dialer:        websocket.DefaultDialer,
		out:           make(chan Notification, 64),
		pingInterval:  20 * time.Second,
		readTimeout:   60 * time.Second,
		minRetryDelay: time.Second,
		maxRetryDelay: 60 * time.Second,
		connState:     Disconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notifications is closed once the subscriber stops.
func (s *Subscriber) Notifications() <-chan Notification {
	return s.out
}

// IsConnected returns true if the websocket is currently connected
func (s *Subscriber) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connState == Connected
}

func (s *Subscriber) State() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connState
}

// Health returns the last health error (if any)
func (s *Subscriber) Health() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.healthErr
}

// LastPong is the time of the last pong, or of the connect.
func (s *Subscriber) LastPong() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPong
}

// Close closes the websocket connection and cancels the context
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.conn != nil {
		s.conn.Close()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.closed = true
	s.connState = Disconnected
	utils.GetLogger().Info().Str("url", s.url).Msg("Subscriber closed")
}

// Start connects in the background and keeps reconnecting until ctx is
// cancelled or Close is called.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("subscriber closed")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	go s.run(ctx)
	return nil
}

func (s *Subscriber) run(ctx context.Context) {
	logger := utils.GetLogger()
	defer close(s.out)
	defer s.setClosed()

	retryDelay := s.minRetryDelay
	failures := 0
	for {
		connected, err := s.connectAndStream(ctx)
		if ctx.Err() != nil {
			logger.Info().Msg("Context cancelled, stopping subscriber")
			return
		}
		if connected {
			failures = 0
			retryDelay = s.minRetryDelay
		}
		failures++
		s.setHealthErr(err)
		s.setConnState(Reconnecting)
		metrics.WSReconnectsTotal.Inc()
		logger.Warn().Err(err).Dur("retry_in", retryDelay).Int("failures", failures).Msg("Subscription disconnected")
		if s.onDisconnect != nil {
			s.onDisconnect(failures, err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
		}
		retryDelay *= 2
		if retryDelay > s.maxRetryDelay {
			retryDelay = s.maxRetryDelay
		}
	}
}

// connectAndStream reports whether the dial succeeded along with the error that
// ended the session.
func (s *Subscriber) connectAndStream(ctx context.Context) (bool, error) {
	logger := utils.GetLogger()
	s.setConnState(Connecting)

	c, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return false, err
	}
	s.setConn(c)
	s.setLastPong(time.Now())
	s.setHealthErr(nil)
	s.setConnState(Connected)
	logger.Info().Str("url", s.url).Str("pair", s.baseAsset+"/"+s.quoteAsset).Msg("Connection established")
	defer func() {
		c.Close()
		s.setConn(nil)
		s.setConnState(Disconnected)
	}()

	params := subscribeParams{FromAsset: s.baseAsset, ToAsset: s.quoteAsset}
	for _, method := range []string{MethodPoolPrice, MethodPrewitnessSwaps} {
		msg, err := json.Marshal(Request{JSONRPC: jsonRPCVersion, ID: uuid.NewString(), Method: method, Params: params})
		if err != nil {
			return true, err
		}
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			return true, fmt.Errorf("failed to subscribe to %s: %w", method, err)
		}
		logger.Debug().Str("method", method).Msg("Sent subscription")
	}

	c.SetPongHandler(func(string) error {
		s.setLastPong(time.Now())
		return c.SetReadDeadline(time.Now().Add(s.readTimeout))
	})

	messages := make(chan []byte)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			c.SetReadDeadline(time.Now().Add(s.readTimeout))
			_, data, err := c.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case messages <- data:
			case <-done:
				return
			}
		}
	}()

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return true, ctx.Err()
		case err := <-readErr:
			return true, err
		case <-pingTicker.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.readTimeout)); err != nil {
				return true, err
			}
		case data := <-messages:
			logger.Debug().Bytes("message", data).Msg("Subscription message")
			n, ok, err := decodeNotification(data)
			if err != nil {
				logger.Error().Err(err).Msg("Skipping subscription message")
				continue
			}
			if !ok {
				continue
			}
			select {
			case s.out <- n:
			case <-ctx.Done():
				return true, ctx.Err()
			}
		}
	}
}

func (s *Subscriber) setConn(c *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = c
}

func (s *Subscriber) setConnState(state ConnectionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.connState = state
}

func (s *Subscriber) setHealthErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthErr = err
}

func (s *Subscriber) setLastPong(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPong = t
}

func (s *Subscriber) setClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.connState = Disconnected
}
