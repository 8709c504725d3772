// Package live maintains the realtime connection to the coaching
// endpoint. It reconnects with backoff forever, drops media frames
// rather than queueing them, and reduces received assistant audio to
// level readings for the speech tracker.
package live

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	coachaudio "github.com/osinkolu/AIEsports-Coach-Live/internal/audio"
	"github.com/osinkolu/AIEsports-Coach-Live/internal/logging"
)

var log = logging.L("live")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024 * 1024
	initialBackoff = 1 * time.Second
	maxBackoff     = 60 * time.Second
	backoffFactor  = 2.0
	jitterFactor   = 0.3
)

// Config holds live client configuration.
type Config struct {
	// URL is the ws:// or wss:// endpoint.
	URL       string
	AuthToken string
	DeviceID  string
	Model     string
}

// Handlers receive server events. All callbacks run on the client's
// read goroutine and must not block; nil callbacks are skipped.
type Handlers struct {
	// OnText receives assistant text parts.
	OnText func(text string)

	// OnAudioLevel receives the RMS level of each assistant audio
	// chunk. The speech tracker derives the assistant-speaking flag
	// from these.
	OnAudioLevel func(level float64)

	// OnTurnComplete fires when the assistant finishes a turn.
	OnTurnComplete func()

	// OnInterrupted fires when the server cut the assistant off.
	OnInterrupted func()

	// OnMuteChange fires when the paired dashboard flips the mute
	// switch.
	OnMuteChange func(muted bool)

	// OnConnect fires once per established session, after setup
	// completes.
	OnConnect func()

	// OnDisconnect fires when an established session drops.
	OnDisconnect func()
}

// Client manages the realtime connection.
type Client struct {
	config   *Config
	handlers Handlers

	conn      *websocket.Conn
	connMu    sync.RWMutex
	connected atomic.Bool

	done      chan struct{}
	sendChan  chan []byte
	mediaChan chan []byte
	stopOnce  sync.Once
	isRunning bool
	runningMu sync.RWMutex
}

// New creates a live client.
func New(cfg *Config, handlers Handlers) *Client {
	return &Client{
		config:    cfg,
		handlers:  handlers,
		done:      make(chan struct{}),
		sendChan:  make(chan []byte, 256),
		mediaChan: make(chan []byte, 30),
	}
}

// Start begins the connection loop. Blocks until Stop; run it on its
// own goroutine.
func (c *Client) Start() {
	c.runningMu.Lock()
	if c.isRunning {
		c.runningMu.Unlock()
		return
	}
	c.isRunning = true
	c.runningMu.Unlock()

	c.reconnectLoop()
}

// Stop gracefully closes the connection.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		c.runningMu.Lock()
		c.isRunning = false
		c.runningMu.Unlock()

		close(c.done)

		c.connMu.Lock()
		if c.conn != nil {
			c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			c.conn.Close()
			c.conn = nil
		}
		c.connMu.Unlock()

		c.connected.Store(false)
		log.Info("client stopped")
	})
}

// Connected reports whether a session is established and set up.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

func (c *Client) closeConn() {
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()
}

func (c *Client) connect() error {
	wsURL, err := c.buildWSURL()
	if err != nil {
		return fmt.Errorf("failed to build live URL: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	conn.SetReadLimit(maxMessageSize)

	// Open the session before the pumps start.
	setup := setupEnvelope{Setup: setupPayload{Model: c.config.Model}}
	data, err := json.Marshal(setup)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to marshal setup: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		conn.Close()
		return fmt.Errorf("failed to send setup: %w", err)
	}

	log.Info("connected", "endpoint", c.config.URL)
	return nil
}

func (c *Client) buildWSURL() (string, error) {
	liveURL, err := url.Parse(c.config.URL)
	if err != nil {
		return "", err
	}

	switch liveURL.Scheme {
	case "https":
		liveURL.Scheme = "wss"
	case "http":
		liveURL.Scheme = "ws"
	}

	q := liveURL.Query()
	q.Set("token", c.config.AuthToken)
	q.Set("device", c.config.DeviceID)
	liveURL.RawQuery = q.Encode()

	return liveURL.String(), nil
}

func (c *Client) reconnectLoop() {
	backoff := initialBackoff

	for {
		select {
		case <-c.done:
			return
		default:
		}

		if err := c.connect(); err != nil {
			log.Warn("connection failed", logging.KeyError, err.Error())

			jitter := time.Duration(float64(backoff) * jitterFactor * (rand.Float64()*2 - 1))
			sleep := backoff + jitter
			if sleep < 0 {
				sleep = backoff
			}

			log.Info("retrying", "delay", sleep.String())
			select {
			case <-c.done:
				return
			case <-time.After(sleep):
			}

			backoff = time.Duration(float64(backoff) * backoffFactor)
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		// Reset backoff on successful connection
		backoff = initialBackoff

		done := make(chan struct{})
		go c.writePump(done)
		c.readPump()
		close(done)
		c.closeConn()

		if c.connected.Swap(false) && c.handlers.OnDisconnect != nil {
			c.handlers.OnDisconnect()
		}

		c.runningMu.RLock()
		running := c.isRunning
		c.runningMu.RUnlock()
		if !running {
			return
		}
	}
}

func (c *Client) readPump() {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil {
		return
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("read error", logging.KeyError, err.Error())
			}
			return
		}
		c.handleMessage(message)
	}
}

func (c *Client) handleMessage(raw []byte) {
	var msg serverMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Warn("failed to parse server message", logging.KeyError, err.Error())
		return
	}

	switch {
	case msg.SetupComplete != nil:
		c.connected.Store(true)
		log.Info("session ready")
		if c.handlers.OnConnect != nil {
			c.handlers.OnConnect()
		}

	case msg.ServerContent != nil:
		sc := msg.ServerContent
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				if part.Text != "" && c.handlers.OnText != nil {
					c.handlers.OnText(part.Text)
				}
				if part.InlineData != nil && strings.HasPrefix(part.InlineData.MimeType, "audio/pcm") {
					c.emitAudioLevel(part.InlineData.Data)
				}
			}
		}
		if sc.Interrupted && c.handlers.OnInterrupted != nil {
			c.handlers.OnInterrupted()
		}
		if sc.TurnComplete && c.handlers.OnTurnComplete != nil {
			c.handlers.OnTurnComplete()
		}

	case msg.Control != nil:
		if msg.Control.Muted != nil && c.handlers.OnMuteChange != nil {
			log.Info("mute switched remotely", "muted", *msg.Control.Muted)
			c.handlers.OnMuteChange(*msg.Control.Muted)
		}

	case msg.Error != nil:
		log.Warn("server error", "code", msg.Error.Code, "message", msg.Error.Message)
	}
}

func (c *Client) emitAudioLevel(b64 string) {
	if c.handlers.OnAudioLevel == nil {
		return
	}
	pcm, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		log.Debug("bad audio chunk encoding", logging.KeyError, err.Error())
		return
	}
	c.handlers.OnAudioLevel(coachaudio.PCM16RMS(pcm))
}

func (c *Client) writePump(done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-c.done:
			return

		case message := <-c.sendChan:
			c.connMu.RLock()
			conn := c.conn
			c.connMu.RUnlock()

			if conn == nil {
				continue
			}

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Warn("write error", logging.KeyError, err.Error())
				// Unblock the read pump immediately instead of waiting
				// out its pong deadline.
				c.closeConn()
				return
			}

		case frame := <-c.mediaChan:
			c.connMu.RLock()
			conn := c.conn
			c.connMu.RUnlock()

			if conn == nil {
				continue
			}

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Warn("media write error", logging.KeyError, err.Error())
				c.closeConn()
				return
			}

		case <-ticker.C:
			c.connMu.RLock()
			conn := c.conn
			c.connMu.RUnlock()

			if conn == nil {
				continue
			}

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.closeConn()
				return
			}
		}
	}
}

// SendText sends a complete user text turn.
func (c *Client) SendText(text string) error {
	env := contentEnvelope{
		ClientContent: clientContent{
			Turns: []contentTurn{{
				Role:  "user",
				Parts: []contentPart{{Text: text}},
			}},
			TurnComplete: true,
		},
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal text turn: %w", err)
	}

	select {
	case <-c.done:
		return fmt.Errorf("client is stopped")
	default:
	}
	select {
	case c.sendChan <- data:
		return nil
	default:
		return fmt.Errorf("send channel is full")
	}
}

// SendRealtimeInput sends one media chunk, base64 encoded. Non-blocking:
// the chunk is dropped when the media channel is full.
func (c *Client) SendRealtimeInput(mimeType string, data []byte) error {
	env := realtimeEnvelope{
		RealtimeInput: realtimeInput{
			MediaChunks: []mediaChunk{{
				MimeType: mimeType,
				Data:     base64.StdEncoding.EncodeToString(data),
			}},
		},
	}
	msg, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal media chunk: %w", err)
	}

	select {
	case <-c.done:
		return fmt.Errorf("client is stopped")
	default:
	}
	select {
	case c.mediaChan <- msg:
		return nil
	default:
		return fmt.Errorf("media channel full, dropping chunk")
	}
}
