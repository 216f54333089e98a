// Package server accepts remote control clients and runs a session
// connection for each of them.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/liuxd6825/marionette/api"
	"github.com/liuxd6825/marionette/common"
	"github.com/liuxd6825/marionette/log"
	"github.com/liuxd6825/marionette/metrics"
	"github.com/liuxd6825/marionette/transport"
)

// ErrQuitting is returned when a client connects after another one asked
// the application to quit.
var ErrQuitting = errors.New("the application is quitting")

// Config holds what the connections of a server share.
type Config struct {
	Host    api.Host
	Logger  *log.Logger
	Metrics *metrics.Metrics
	Tracer  trace.Tracer
	Clock   clock.Clock

	// Fs and ScriptDir are where imported scripts are stored.
	Fs        afero.Fs
	ScriptDir string

	// AcceptRate limits how many clients are accepted per second. Zero
	// means no limit.
	AcceptRate  rate.Limit
	AcceptBurst int
}

// channel is a packet channel that reads from its client.
type channel interface {
	common.PacketChannel
	Serve(recv transport.Receiver)
}

// Server hands every accepted client its own connection. Connections are
// named `conn<N>.` in the order they were accepted.
type Server struct {
	host     api.Host
	logger   *log.Logger
	metrics  *metrics.Metrics
	limiter  *rate.Limiter
	registry *common.Registry
	opts     []common.Option
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	nextID    int
	conns     map[string]*common.Connection
	listeners map[net.Listener]struct{}
	quitting  chan struct{}
	quitOnce  sync.Once
}

// New returns a server driving cfg.Host.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.NewNullLogger()
	}
	limit, burst := cfg.AcceptRate, cfg.AcceptBurst
	if limit <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		host:      cfg.Host,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		limiter:   rate.NewLimiter(limit, burst),
		registry:  common.DefaultRegistry(),
		ctx:       ctx,
		cancel:    cancel,
		conns:     make(map[string]*common.Connection),
		listeners: make(map[net.Listener]struct{}),
		quitting:  make(chan struct{}),
	}
	s.opts = []common.Option{
		common.WithLogger(cfg.Logger),
		common.WithMetrics(cfg.Metrics),
		common.WithRegistry(s.registry),
		common.WithOnQuit(func([]string) { s.quit() }),
	}
	if cfg.Tracer != nil {
		s.opts = append(s.opts, common.WithTracer(cfg.Tracer))
	}
	if cfg.Clock != nil {
		s.opts = append(s.opts, common.WithClock(cfg.Clock))
	}
	if cfg.Fs != nil {
		s.opts = append(s.opts, common.WithFs(cfg.Fs, cfg.ScriptDir))
	}
	return s
}

// Serve accepts clients speaking the length-prefixed stream framing on l
// until the server is closed or a client asked the application to quit.
func (s *Server) Serve(l net.Listener) error {
	if err := s.track(l); err != nil {
		_ = l.Close()
		return err
	}
	defer s.untrack(l)

	s.logger.Infof("Server:serve", "listening on %s", l.Addr())
	for {
		if err := s.limiter.Wait(s.ctx); err != nil {
			return nil //nolint:nilerr
		}
		nc, err := l.Accept()
		if err != nil {
			if s.stopped() {
				return nil
			}
			return fmt.Errorf("accepting client: %w", err)
		}

		ch := transport.NewStreamChannel(nc, s.logger)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveChannel(ch, nc.RemoteAddr().String())
		}()
	}
}

// ServeHTTP upgrades the request to a WebSocket client carrying one
// packet per text message.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.stopped() {
		http.Error(w, ErrQuitting.Error(), http.StatusServiceUnavailable)
		return
	}
	if !s.limiter.Allow() {
		http.Error(w, "too many clients", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debugf("Server:upgrade", "%v", err)
		return
	}
	s.wg.Add(1)
	defer s.wg.Done()
	s.serveChannel(transport.NewWSChannel(conn, s.logger), r.RemoteAddr)
}

// Quitting is closed once a client asked the application to quit. No
// more clients are accepted after that.
func (s *Server) Quitting() <-chan struct{} {
	return s.quitting
}

// Connections returns the ids of the open connections.
func (s *Server) Connections() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.conns))
	for id := range s.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close stops accepting clients, ends every connection and waits for
// them to finish.
func (s *Server) Close() error {
	s.cancel()
	s.closeListeners()
	s.wg.Wait()
	return nil
}

func (s *Server) serveChannel(ch channel, remote string) {
	conn := s.open(ch)
	s.logger.Infof("Server:accept", "%s accepted from %s", conn.ID(), remote)

	conn.SayHello()
	ran := make(chan struct{})
	go func() {
		defer close(ran)
		if err := conn.Run(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warnf("Server:connection", "%s: %v", conn.ID(), err)
		}
	}()
	ch.Serve(conn)
	<-ran

	s.closed(conn)
	s.logger.Infof("Server:accept", "%s closed", conn.ID())
}

func (s *Server) open(ch channel) *common.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := "conn" + strconv.Itoa(s.nextID) + "."
	s.nextID++
	conn := common.NewConnection(id, ch, s.host, s.opts...)
	s.conns[id] = conn
	s.metrics.ConnectionOpened()
	return conn
}

func (s *Server) closed(conn *common.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conns, conn.ID())
	s.metrics.ConnectionClosed()
}

func (s *Server) quit() {
	s.quitOnce.Do(func() {
		s.logger.Infof("Server:quit", "a client asked the application to quit, not accepting clients")
		close(s.quitting)
		s.closeListeners()
	})
}

func (s *Server) stopped() bool {
	if s.ctx.Err() != nil {
		return true
	}
	select {
	case <-s.quitting:
		return true
	default:
		return false
	}
}

func (s *Server) track(l net.Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped() {
		return ErrQuitting
	}
	s.listeners[l] = struct{}{}
	return nil
}

func (s *Server) untrack(l net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, l)
}

func (s *Server) closeListeners() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for l := range s.listeners {
		if err := l.Close(); err != nil {
			s.logger.Debugf("Server:close", "%v", err)
		}
	}
}
