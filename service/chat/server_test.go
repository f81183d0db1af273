package chat

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"PPGateway/global/config"
	"PPGateway/tools/errs"
)

func newTestServer(t *testing.T, mut func(c *config.GatewayConfig)) *Server {
	t.Helper()
	conf := config.Default()
	conf.PingInterval = time.Second
	conf.PongWait = 5 * time.Second
	if mut != nil {
		mut(&conf)
	}
	metrics := NewMetrics("test")
	reg := NewRegistry(RegistryConf{OnSize: metrics.SetConnections})
	s := NewServer(conf, reg, NewDispatcher(reg, metrics), metrics)
	if err := s.Start(0); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func baseURL(t *testing.T, s *Server, scheme string) string {
	t.Helper()
	_, port, err := net.SplitHostPort(s.Addr())
	if err != nil {
		t.Fatalf("addr %q: %v", s.Addr(), err)
	}
	return scheme + "://127.0.0.1:" + port
}

func dial(t *testing.T, s *Server, path string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(baseURL(t, s, "ws")+path, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", what)
}

func TestServerLifecycle(t *testing.T) {
	conf := config.Default()
	reg := NewRegistry(RegistryConf{})
	s := NewServer(conf, reg, NewDispatcher(reg, nil), nil)
	if s.State() != StateStopped || s.Addr() != "" {
		t.Fatalf("fresh server state=%s addr=%q", s.State(), s.Addr())
	}

	if err := s.Start(0); err != nil {
		t.Fatal(err)
	}
	addr := s.Addr()
	if s.State() != StateListening || addr == "" {
		t.Fatalf("state=%s addr=%q", s.State(), addr)
	}
	// second Start is a no-op
	if err := s.Start(0); err != nil || s.Addr() != addr {
		t.Fatalf("restart while listening: %v addr=%s", err, s.Addr())
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.State() != StateStopped {
		t.Fatalf("state=%s", s.State())
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if err := s.Start(0); !errs.Is(err, &errs.ErrTransport) {
		t.Fatalf("start after stop: %v", err)
	}
}

func TestServerStartPortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	reg := NewRegistry(RegistryConf{})
	s := NewServer(config.Default(), reg, NewDispatcher(reg, nil), nil)
	if err := s.Start(port); !errs.Is(err, &errs.ErrTransport) {
		t.Fatalf("want TransportError, got %v", err)
	}
	if s.State() != StateStopped {
		t.Fatalf("state=%s", s.State())
	}
}

func TestServerHealth(t *testing.T) {
	s := newTestServer(t, nil)
	dial(t, s, "/ws")
	waitFor(t, "register", func() bool { return s.Registry().Size() == 1 })

	resp, err := http.Get(baseURL(t, s, "http") + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Connections != 1 {
		t.Fatalf("health = %+v", body)
	}

	mresp, err := http.Get(baseURL(t, s, "http") + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	mresp.Body.Close()
	if mresp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status=%d", mresp.StatusCode)
	}
}

func TestServerConnectionTeardown(t *testing.T) {
	s := newTestServer(t, nil)
	ws := dial(t, s, "/ws")
	dial(t, s, "/ws/42")
	waitFor(t, "two connections", func() bool { return s.Registry().Size() == 2 })

	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = ws.Close()
	waitFor(t, "unregister", func() bool { return s.Registry().Size() == 1 })
	if got := counterValue(t, s.metrics, "test_connections"); got != 1 {
		t.Fatalf("gauge=%v", got)
	}
}

func TestServerBindPathID(t *testing.T) {
	s := newTestServer(t, func(c *config.GatewayConfig) { c.BindPathID = true })
	dial(t, s, "/ws/bob")
	waitFor(t, "bind", func() bool {
		_, ok := s.Registry().LookupByUser("bob")
		return ok
	})
}

func TestServerMalformedKeepsConnection(t *testing.T) {
	s := newTestServer(t, nil)
	ws := dial(t, s, "/ws")
	waitFor(t, "register", func() bool { return s.Registry().Size() == 1 })

	for _, in := range []string{`{{{`, `{"action":"NOPE"}`} {
		if err := ws.WriteMessage(websocket.TextMessage, []byte(in)); err != nil {
			t.Fatal(err)
		}
	}
	waitFor(t, "decode errors", func() bool { return s.Dispatcher().DecodeErrors() == 2 })

	// still usable: a ping gets its pong and the connection stays registered
	pong := make(chan struct{}, 1)
	ws.SetPongHandler(func(string) error {
		pong <- struct{}{}
		return nil
	})
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()
	if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	select {
	case <-pong:
	case <-time.After(3 * time.Second):
		t.Fatal("no pong after malformed frames")
	}
	if s.Registry().Size() != 1 {
		t.Fatalf("size=%d", s.Registry().Size())
	}
}

func TestServerStopClosesConnections(t *testing.T) {
	s := newTestServer(t, nil)
	ws := dial(t, s, "/ws")
	waitFor(t, "register", func() bool { return s.Registry().Size() == 1 })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if s.Registry().Size() != 0 {
		t.Fatalf("size=%d after stop", s.Registry().Size())
	}
	_ = ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Fatal("client still readable after stop")
	}
}
