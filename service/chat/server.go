package chat

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"PPGateway/global/config"
	"PPGateway/logger"
	"PPGateway/middleware"
	"PPGateway/tools/errs"
	"PPGateway/tools/ids"
	"PPGateway/tools/safe"
)

// State is the lifecycle phase of a Server.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateListening
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateListening:
		return "listening"
	case StateStopping:
		return "stopping"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Server owns the listener, the gin engine and one read loop per connection.
// It is built once in main; a stopped server cannot be started again.
type Server struct {
	conf     config.GatewayConfig
	reg      *Registry
	disp     *Dispatcher
	metrics  *Metrics
	idGen    *ids.Generator
	engine   *gin.Engine
	mids     *middleware.Manager
	upgrader websocket.Upgrader

	mu        sync.Mutex // serialises Start/Stop
	state     atomic.Int32
	started   bool
	httpSrv   *http.Server
	ln        net.Listener
	serveDone chan struct{}

	trackMu sync.Mutex
	closing bool
	conns   sync.WaitGroup // live HandleWS calls
}

func NewServer(conf config.GatewayConfig, reg *Registry, disp *Dispatcher, metrics *Metrics) *Server {
	safe.MustNotNil(reg, "registry")
	safe.MustNotNil(disp, "dispatcher")
	if conf.Path == "" {
		conf.Path = "/ws"
	}
	if conf.PongWait <= 0 {
		conf.PongWait = 75 * time.Second
	}
	s := &Server{
		conf:    conf,
		reg:     reg,
		disp:    disp,
		metrics: metrics,
		idGen:   ids.NewGenerator(conf.NodeID),
		mids:    middleware.NewManager(middleware.Origin(conf.Path, conf.AllowedOrigins)),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  conf.ReadBufferSize,
			WriteBufferSize: conf.WriteBufferSize,
			// Origin is enforced by the middleware before the upgrade
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.mids.Use())

	r.GET(s.conf.Path, s.HandleWS)
	r.GET(strings.TrimSuffix(s.conf.Path, "/")+"/:id", s.HandleWS)
	r.GET("/health", s.handleHealth)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	return r
}

// Start binds port (0 picks a free one) and serves in the background.
// Calling it while starting or listening is a no-op.
func (s *Server) Start(port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State() {
	case StateStarting, StateListening:
		return nil
	}
	if s.started {
		return errs.ErrTransport.WrapMsg("server already stopped", "state", s.State())
	}
	s.state.Store(int32(StateStarting))

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		s.state.Store(int32(StateStopped))
		return errs.ErrTransport.WrapMsg("listen failed", "port", port, "err", err)
	}
	s.started = true
	s.ln = ln
	s.httpSrv = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.serveDone = make(chan struct{})
	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("[Server] serve err: %v", err)
		}
	}(s.httpSrv, s.serveDone)

	s.state.Store(int32(StateListening))
	logger.Infof("[Server] listening addr=%s path=%s", ln.Addr(), s.conf.Path)
	return nil
}

// Stop stops accepting, closes every connection and waits for their read
// loops until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateListening {
		return nil
	}
	s.state.Store(int32(StateStopping))

	s.trackMu.Lock()
	s.closing = true
	s.trackMu.Unlock()

	// websocket connections are hijacked, Shutdown does not wait for them
	err := s.httpSrv.Shutdown(ctx)
	n := s.reg.CloseAll()

	waited := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	<-s.serveDone

	s.state.Store(int32(StateStopped))
	logger.Infof("[Server] stopped closed=%d", n)
	if err != nil {
		return errs.ErrTransport.WrapMsg("stop", "err", err)
	}
	return nil
}

// track registers one more connection unless the server is shutting down.
func (s *Server) track() bool {
	s.trackMu.Lock()
	defer s.trackMu.Unlock()
	if s.closing {
		return false
	}
	s.conns.Add(1)
	return true
}

func (s *Server) isClosing() bool {
	s.trackMu.Lock()
	defer s.trackMu.Unlock()
	return s.closing
}

// Addr is the bound listen address, empty before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Server) State() State            { return State(s.state.Load()) }
func (s *Server) Registry() *Registry     { return s.reg }
func (s *Server) Dispatcher() *Dispatcher { return s.disp }

// Handler exposes the gin engine, e.g. for httptest.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": s.reg.Size(),
	})
}
