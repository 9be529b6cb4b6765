package esl

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/voxloop/voxloop/pkg/resilience"
	"github.com/voxloop/voxloop/pkg/softswitch"
	"github.com/voxloop/voxloop/pkg/softswitch/iface"
)

// fakeServer emulates just enough of the Event Socket handshake and API
// request/response cycle to exercise Client against a real net.Conn.
type fakeServer struct {
	ln       net.Listener
	password string
}

func startFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return &fakeServer{ln: ln, password: "secret"}
}

func (s *fakeServer) port(t *testing.T) int {
	t.Helper()
	_, portStr, err := net.SplitHostPort(s.ln.Addr().String())
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("atoi: %v", err)
	}
	return port
}

// serveConnections accepts every connection the Client opens (one API
// connection from New, one event connection from the background event
// loop) and answers each the same way: complete the auth handshake, then
// reply +OK to every subsequent command. This is enough to exercise the
// real wire protocol without distinguishing connection roles.
func (s *fakeServer) serveConnections(t *testing.T) {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handleConnection(conn)
	}
}

func (s *fakeServer) handleConnection(conn net.Conn) {
	defer conn.Close()

	fmt.Fprintf(conn, "Content-Type: auth/request\n\n")
	r := bufio.NewReader(conn)
	if _, err := readFrame(r); err != nil {
		return
	}
	fmt.Fprintf(conn, "Content-Type: command/reply\nReply-Text: +OK accepted\n\n")

	for {
		if _, err := readFrame(r); err != nil {
			return
		}
		fmt.Fprintf(conn, "Content-Type: api/response\nContent-Length: 3\n\n+OK")
	}
}

func TestExecApiRoundTrip(t *testing.T) {
	srv := startFakeServer(t)
	defer srv.ln.Close()
	go srv.serveConnections(t)

	cfg := NewConfig("127.0.0.1", srv.password)
	cfg.Port = srv.port(t)
	cfg.DialTimeout = 2 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	c, err := New(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	reply, err := c.ExecApi(ctx, "status")
	if err != nil {
		t.Fatalf("ExecApi: %v", err)
	}
	if !strings.HasPrefix(reply, "+OK") {
		t.Fatalf("expected +OK reply, got %q", reply)
	}
}

func TestExecApi_BreakerTripsToProviderDegraded(t *testing.T) {
	cfg := NewConfig("127.0.0.1", "unused")
	cfg.BreakerFailureThreshold = 1
	cfg.BreakerResetTimeout = time.Hour

	c := &Client{
		cfg:      cfg,
		dispatch: make(map[string]chan *iface.Event),
		closed:   make(chan struct{}),
		breaker:  resilience.NewCircuitBreaker(cfg.BreakerFailureThreshold, cfg.BreakerResetTimeout),
	}

	ctx := context.Background()
	if _, err := c.ExecApi(ctx, "status"); err == nil {
		t.Fatal("expected the first call against a nil connection to fail")
	}

	_, err := c.ExecApi(ctx, "status")
	if !softswitch.IsClientError(err) {
		t.Fatalf("expected a ClientError, got %v", err)
	}
	if softswitch.ClientErrorCode(err) != softswitch.ErrCodeProviderDegraded {
		t.Errorf("expected ErrCodeProviderDegraded after the breaker trips, got %q", softswitch.ClientErrorCode(err))
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	srv := startFakeServer(t)
	defer srv.ln.Close()
	go srv.serveConnections(t)

	cfg := NewConfig("127.0.0.1", srv.password)
	cfg.Port = srv.port(t)
	cfg.DialTimeout = 2 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	c, err := New(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	ch, err := c.Subscribe("call-1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if ch == nil {
		t.Fatalf("expected non-nil channel")
	}
	c.Unsubscribe("call-1")
}
