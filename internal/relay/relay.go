// Package relay maintains a persistent WebSocket connection to the
// backend's realtime relay endpoint, dispatching inbound commands
// (terminal sessions, file operations, network scans) and forwarding their
// responses back over the same connection.
package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ajime-dev/ajime-agent/internal/agenterr"
	"github.com/ajime-dev/ajime-agent/internal/alog"
	"github.com/ajime-dev/ajime-agent/internal/authn"
	"github.com/ajime-dev/ajime-agent/internal/clock"
)

// Options configures the relay client's heartbeat cadence; reconnect delay
// uses clock.DefaultReconnectOptions.
type Options struct {
	HeartbeatInterval time.Duration
}

// DefaultOptions matches the original's tuned heartbeat interval.
func DefaultOptions() Options {
	return Options{HeartbeatInterval: 30 * time.Second}
}

// envelope is the wire shape of every relay message, request or response.
type envelope struct {
	Type        string          `json:"type"`
	MsgID       string          `json:"msg_id,omitempty"`
	CommandType string          `json:"command_type,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Result      interface{}     `json:"result,omitempty"`
	Error       *string         `json:"error,omitempty"`
	DeploymentID string         `json:"deployment_id,omitempty"`
}

// sendQueue is an unbounded outbound queue draining into a single writer
// goroutine, the Go analogue of the original's tokio mpsc channel feeding
// the WebSocket sink.
type sendQueue struct {
	mu    sync.Mutex
	items []interface{}
	cond  *sync.Cond
	closed bool
}

func newSendQueue() *sendQueue {
	q := &sendQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Send implements terminal.Sender.
func (q *sendQueue) Send(v interface{}) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, v)
	q.cond.Signal()
}

func (q *sendQueue) closeQueue() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

func (q *sendQueue) drain() ([]interface{}, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	items := q.items
	q.items = nil
	return items, true
}

// Client maintains the relay connection and dispatches inbound commands.
type Client struct {
	backendURL string
	tokens     *authn.Manager
	opts       Options
	runners    CommandRunners
}

// CommandRunners lets the supervisor wire in the behavior for commands
// that need access to components outside this package. Its only hook is
// OnNewDeployment; when it is nil, a new_deployment notification is only
// logged.
type CommandRunners struct {
	// OnNewDeployment is invoked (fire-and-forget) when the backend pushes
	// a new_deployment notification; it should trigger the deployer's next
	// poll rather than block the relay loop.
	OnNewDeployment func(deploymentID string)
}

// New returns a relay Client that will connect to backendURL's relay
// endpoint using tokens for device authentication.
func New(backendURL string, tokens *authn.Manager, runners CommandRunners) *Client {
	return &Client{backendURL: backendURL, tokens: tokens, opts: DefaultOptions(), runners: runners}
}

// Run connects to the relay and reconnects with jittered exponential
// backoff on failure until shutdown is closed.
func (c *Client) Run(ctx context.Context, shutdown <-chan struct{}) {
	log := alog.WithComponent("relay")
	log.Info().Msg("relay worker starting")

	relayURL, err := buildRelayURL(c.backendURL)
	if err != nil {
		log.Error().Err(err).Msg("failed to build relay URL")
		return
	}

	attempt := 0
	for {
		select {
		case <-shutdown:
			log.Info().Msg("relay worker shutting down")
			return
		case <-ctx.Done():
			return
		default:
		}

		deviceID, err := c.tokens.DeviceID(ctx)
		if err != nil {
			attempt = c.backoffAndContinue(log, "failed to get device ID", err, attempt, shutdown)
			if attempt < 0 {
				return
			}
			continue
		}
		tok, err := c.tokens.Current(ctx)
		if err != nil {
			attempt = c.backoffAndContinue(log, "failed to get token", err, attempt, shutdown)
			if attempt < 0 {
				return
			}
			continue
		}

		log.Info().Str("url", relayURL).Int("attempt", attempt+1).Msg("connecting to relay")
		conn, err := c.connect(ctx, relayURL, deviceID, tok.Raw)
		if err != nil {
			attempt = c.backoffAndContinue(log, "failed to connect to relay", err, attempt, shutdown)
			if attempt < 0 {
				return
			}
			continue
		}

		log.Info().Msg("connected to websocket relay")
		attempt = 0
		if !c.serve(ctx, conn, shutdown) {
			return
		}

		delay := clock.Backoff(attempt, clock.DefaultReconnectOptions())
		log.Info().Dur("delay", delay).Msg("relay disconnected, reconnecting")
		if !sleepOrShutdown(delay, shutdown) {
			return
		}
		attempt++
	}
}

// backoffAndContinue logs msg/err, sleeps the jittered reconnect backoff for
// attempt, and returns attempt+1 — or -1 if shutdown fired during the sleep,
// signaling the caller to stop entirely.
func (c *Client) backoffAndContinue(log zerolog.Logger, msg string, err error, attempt int, shutdown <-chan struct{}) int {
	log.Warn().Err(err).Msg(msg)
	delay := clock.Backoff(attempt, clock.DefaultReconnectOptions())
	if !sleepOrShutdown(delay, shutdown) {
		return -1
	}
	return attempt + 1
}

func (c *Client) connect(ctx context.Context, relayURL, deviceID, token string) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("X-Device-ID", deviceID)
	header.Set("X-Device-Secret", token)

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, relayURL, header)
	if err != nil {
		return nil, agenterr.New(agenterr.KindRelay, "dial relay", err)
	}
	return conn, nil
}

// serve drives a single connection's lifetime: heartbeat ticks, inbound
// message dispatch, and the outbound writer. Returns false if the caller
// should stop entirely (shutdown/ctx fired), true if it should reconnect.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn, shutdown <-chan struct{}) bool {
	log := alog.WithComponent("relay")
	defer conn.Close()

	queue := newSendQueue()
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			items, ok := queue.drain()
			if !ok {
				return
			}
			for _, item := range items {
				b, err := json.Marshal(item)
				if err != nil {
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}
	}()

	sessions := newSessionTable()
	defer sessions.closeAll()

	readErrs := make(chan error, 1)
	messages := make(chan []byte, 16)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErrs <- err
				close(messages)
				return
			}
			messages <- data
		}
	}()

	heartbeat := time.NewTicker(c.opts.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-shutdown:
			queue.closeQueue()
			<-writerDone
			return false
		case <-ctx.Done():
			queue.closeQueue()
			<-writerDone
			return false
		case <-heartbeat.C:
			queue.Send(map[string]string{"type": "ping"})
		case data, ok := <-messages:
			if !ok {
				continue
			}
			c.handleMessage(ctx, data, queue, sessions)
		case err := <-readErrs:
			log.Warn().Err(err).Msg("relay websocket error")
			queue.closeQueue()
			<-writerDone
			return true
		}
	}
}

func sleepOrShutdown(d time.Duration, shutdown <-chan struct{}) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-shutdown:
		return false
	}
}

func buildRelayURL(backendURL string) (string, error) {
	u, err := url.Parse(backendURL)
	if err != nil {
		return "", agenterr.New(agenterr.KindConfig, "parse backend URL", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", agenterr.Newf(agenterr.KindConfig, "invalid backend URL scheme: %s", u.Scheme)
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/agent-relay/ws"
	return u.String(), nil
}
