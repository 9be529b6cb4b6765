// Package esl implements the Softswitch Client over a FreeSWITCH-style
// Event Socket: plain-text, line-oriented, header+body framing (§4.1, §6).
package esl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/voxloop/voxloop/pkg/o11y"
	"github.com/voxloop/voxloop/pkg/resilience"
	"github.com/voxloop/voxloop/pkg/softswitch"
	"github.com/voxloop/voxloop/pkg/softswitch/iface"
)

// Client maintains the two persistent connections described in §4.1: one
// subscribed to asynchronous events, one reserved for request/reply API
// commands. The event connection reconnects with bounded exponential
// backoff; the API connection is redialed after a failed command and, if
// that redial fails, again on the next command.
type Client struct {
	cfg *Config
	log *o11y.Logger

	apiMu   sync.Mutex // serialises send/receive pairs on the API connection
	apiConn net.Conn
	breaker *resilience.CircuitBreaker

	dispatchMu sync.Mutex
	dispatch   map[string]chan *iface.Event

	closed   chan struct{}
	closeOne sync.Once
	wg       sync.WaitGroup
}

// New dials both connections and starts the event-reception loop.
func New(ctx context.Context, cfg *Config, log *o11y.Logger) (*Client, error) {
	if log == nil {
		log = o11y.NewNop()
	}
	c := &Client{
		cfg:      cfg,
		log:      log,
		dispatch: make(map[string]chan *iface.Event),
		closed:   make(chan struct{}),
		breaker:  resilience.NewCircuitBreaker(cfg.BreakerFailureThreshold, cfg.BreakerResetTimeout),
	}

	apiConn, err := c.dialAuthenticated(ctx)
	if err != nil {
		return nil, softswitch.WrapError("New", err)
	}
	c.apiConn = apiConn

	c.wg.Add(1)
	go c.eventLoop(ctx)

	return c, nil
}

func (c *Client) addr() string {
	return net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
}

// dialAuthenticated opens one connection, completes the Event Socket auth
// handshake ("auth <password>"), and returns it ready for use.
func (c *Client) dialAuthenticated(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr())
	if err != nil {
		return nil, softswitch.NewClientError("dial", softswitch.ErrCodeNotConnected, err)
	}

	r := bufio.NewReader(conn)
	if _, err := readFrame(r); err != nil { // the softswitch's initial auth/request banner
		conn.Close()
		return nil, softswitch.NewClientError("dial", softswitch.ErrCodeMalformedFraming, err)
	}
	if _, err := fmt.Fprintf(conn, "auth %s\n\n", c.cfg.Password); err != nil {
		conn.Close()
		return nil, softswitch.NewClientError("dial", softswitch.ErrCodeNotConnected, err)
	}
	reply, err := readFrame(r)
	if err != nil {
		conn.Close()
		return nil, softswitch.NewClientError("dial", softswitch.ErrCodeMalformedFraming, err)
	}
	if !strings.Contains(reply.headers["Reply-Text"], "+OK") {
		conn.Close()
		return nil, softswitch.NewClientError("dial", softswitch.ErrCodeProviderRejected, fmt.Errorf("auth rejected: %s", reply.headers["Reply-Text"]))
	}
	return conn, nil
}

// eventLoop owns the event connection: subscribes to the fixed event set,
// reads frames, parses them, and fans them out to per-call subscribers. On
// disconnect it reconnects with bounded exponential backoff and, before
// reconnecting, broadcasts a synthetic ProviderDisconnected event to every
// open subscription (§4.1).
func (c *Client) eventLoop(ctx context.Context) {
	defer c.wg.Done()

	attempt := 0
	for {
		select {
		case <-c.closed:
			return
		case <-ctx.Done():
			return
		default:
		}

		conn, err := c.dialAuthenticated(ctx)
		if err != nil {
			c.log.Warn(ctx, "softswitch event connection failed", "err", err, "attempt", attempt)
			if !c.sleepBackoff(ctx, attempt) {
				return
			}
			attempt++
			continue
		}

		if _, err := fmt.Fprintf(conn, "events plain CHANNEL_CREATE CHANNEL_ANSWER CHANNEL_HANGUP CHANNEL_HANGUP_COMPLETE PLAYBACK_START PLAYBACK_STOP RECORD_START RECORD_STOP CUSTOM_SPEECH_DETECTED\n\n"); err != nil {
			conn.Close()
			continue
		}

		attempt = 0
		c.runEventConnection(ctx, conn)
		c.broadcastDisconnected()

		select {
		case <-c.closed:
			return
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (c *Client) runEventConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	done := make(chan struct{})
	defer close(done)
	go func() {
		// Unblock readFrame when the client closes or ctx ends.
		select {
		case <-c.closed:
		case <-ctx.Done():
		case <-done:
			return
		}
		conn.Close()
	}()
	r := bufio.NewReader(conn)
	for {
		f, err := readFrame(r)
		if err != nil {
			c.log.Warn(ctx, "softswitch event connection dropped", "err", err)
			return
		}
		if f.body == "" {
			continue
		}
		evt := parseEvent(f.body)
		c.dispatchEvent(evt)
	}
}

func (c *Client) dispatchEvent(evt *iface.Event) {
	if evt.CallID == "" {
		return
	}
	c.dispatchMu.Lock()
	ch, ok := c.dispatch[evt.CallID]
	c.dispatchMu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- evt:
	default:
		// subscriber is not draining fast enough; dropping a duplicate
		// lifecycle event is safer than blocking the whole event loop.
	}
}

func (c *Client) broadcastDisconnected() {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()
	for callID, ch := range c.dispatch {
		select {
		case ch <- &iface.Event{Type: iface.EventProviderDisconnected, CallID: callID}:
		default:
		}
	}
}

func (c *Client) sleepBackoff(ctx context.Context, attempt int) bool {
	delay := time.Duration(float64(c.cfg.ReconnectMin) * math.Pow(2, float64(attempt)))
	if delay > c.cfg.ReconnectMax {
		delay = c.cfg.ReconnectMax
	}
	select {
	case <-time.After(delay):
		return true
	case <-c.closed:
		return false
	case <-ctx.Done():
		return false
	}
}

// Originate places an outbound call (§4.1).
func (c *Client) Originate(ctx context.Context, destination, callerID string, applicationVars map[string]string) (string, error) {
	var b strings.Builder
	for k, v := range applicationVars {
		fmt.Fprintf(&b, "%s=%s,", k, v)
	}
	cmd := fmt.Sprintf("api originate {origination_caller_id_number=%s,%s}%s &park()", callerID, b.String(), destination)

	reply, err := c.ExecApi(ctx, cmd)
	if err != nil {
		return "", softswitch.WrapError("Originate", err)
	}
	if strings.HasPrefix(reply, "-ERR") {
		code := softswitch.ErrCodeProviderRejected
		if strings.Contains(reply, "NO_ROUTE") || strings.Contains(reply, "NORTRUNK") {
			code = softswitch.ErrCodeNoTrunk
		}
		return "", softswitch.NewClientErrorWithMessage("Originate", code, reply, nil)
	}
	return strings.TrimSpace(reply), nil
}

// ExecApi issues a request/response command over the API connection,
// serialised by apiMu so replies can never be attributed to the wrong
// in-flight command (§4.1, §5). Repeated failures trip the breaker
// (§10 supplemented feature), after which calls fail fast with
// ErrCodeProviderDegraded instead of queuing behind a dead link.
func (c *Client) ExecApi(ctx context.Context, command string) (string, error) {
	result, err := c.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
		return c.execApiOnce(ctx, command)
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return "", softswitch.NewClientError("ExecApi", softswitch.ErrCodeProviderDegraded, err)
		}
		return "", err
	}
	return result.(string), nil
}

func (c *Client) execApiOnce(ctx context.Context, command string) (string, error) {
	c.apiMu.Lock()
	defer c.apiMu.Unlock()

	if c.apiConn == nil {
		c.reconnectAPI(ctx)
	}
	if c.apiConn == nil {
		return "", softswitch.NewClientError("ExecApi", softswitch.ErrCodeNotConnected, nil)
	}

	if deadline, ok := ctx.Deadline(); ok {
		c.apiConn.SetDeadline(deadline)
		defer c.apiConn.SetDeadline(time.Time{})
	}

	if _, err := fmt.Fprintf(c.apiConn, "%s\n\n", command); err != nil {
		c.reconnectAPI(ctx)
		return "", softswitch.NewClientError("ExecApi", softswitch.ErrCodeNotConnected, err)
	}

	r := bufio.NewReader(c.apiConn)
	f, err := readFrame(r)
	if err != nil {
		c.reconnectAPI(ctx)
		return "", softswitch.NewClientError("ExecApi", softswitch.ErrCodeTimeout, err)
	}
	return f.body, nil
}

func (c *Client) reconnectAPI(ctx context.Context) {
	if c.apiConn != nil {
		c.apiConn.Close()
	}
	conn, err := c.dialAuthenticated(ctx)
	if err != nil {
		c.apiConn = nil
		return
	}
	c.apiConn = conn
}

// Subscribe multiplexes events by call_id (§4.1).
func (c *Client) Subscribe(callID string) (<-chan *iface.Event, error) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()
	if ch, ok := c.dispatch[callID]; ok {
		return ch, nil
	}
	ch := make(chan *iface.Event, c.cfg.EventBufferSize)
	c.dispatch[callID] = ch
	return ch, nil
}

// Unsubscribe releases a call's dispatch table entry.
func (c *Client) Unsubscribe(callID string) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()
	if ch, ok := c.dispatch[callID]; ok {
		close(ch)
		delete(c.dispatch, callID)
	}
}

// Close performs a scoped shutdown, draining in-flight commands (§4.1).
func (c *Client) Close() error {
	c.closeOne.Do(func() {
		close(c.closed)
	})
	c.wg.Wait()

	c.apiMu.Lock()
	if c.apiConn != nil {
		c.apiConn.Close()
	}
	c.apiMu.Unlock()

	c.dispatchMu.Lock()
	for callID, ch := range c.dispatch {
		close(ch)
		delete(c.dispatch, callID)
	}
	c.dispatchMu.Unlock()
	return nil
}

var _ iface.Client = (*Client)(nil)
