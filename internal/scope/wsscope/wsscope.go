// Package wsscope implements scope.Scope for a client that connects to the
// adapter over a WebSocket.
//
// The page runs a small shim (see Shim) that pushes a snapshot of the client
// state whenever it changes and answers service and storage requests. Probes
// for route, params, hash and selection read the latest snapshot; service and
// storage calls are round trips. Until a page is connected every probe returns
// scope.ErrNotReady. A new connection replaces the previous one.
package wsscope

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/glob"
	"github.com/gorilla/websocket"
	"github.com/sourcegraph/conc"

	"github.com/Iron-Ham/screeps-adapter/internal/errors"
	"github.com/Iron-Ham/screeps-adapter/internal/logging"
	"github.com/Iron-Ham/screeps-adapter/internal/scope"
)

const driverName = "ws"

const (
	// DefaultCallTimeout bounds a round trip to the page.
	DefaultCallTimeout = 10 * time.Second
	// DefaultPushInterval is how often the shim checks for state changes.
	DefaultPushInterval = 100 * time.Millisecond

	maxMessageSize = 1 << 20
	writeWait      = 5 * time.Second
)

// Config configures New.
type Config struct {
	// Listen is the address Run serves on, e.g. "127.0.0.1:8787".
	Listen string
	// Origin is a glob matched against the Origin header of the page.
	// Empty allows any origin.
	Origin         string
	CallTimeout    time.Duration
	DigestInterval time.Duration
	Logger         *logging.Logger
}

// Scope is the adapter end of the WebSocket.
type Scope struct {
	*scope.Digest

	listen      string
	callTimeout time.Duration
	logger      *logging.Logger
	upgrader    websocket.Upgrader

	nextID atomic.Uint64

	mu      sync.Mutex
	conn    *conn
	state   *state
	pending map[uint64]chan message
	closed  bool
}

var (
	_ scope.Scope  = (*Scope)(nil)
	_ scope.Window = (*Scope)(nil)
)

type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	done    chan struct{}
}

func (c *conn) write(m message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteJSON(m)
}

// New creates a Scope. It does not listen until Run is called; use it as an
// http.Handler to mount it elsewhere.
func New(cfg Config) (*Scope, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger = logger.WithDriver(driverName)
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}

	s := &Scope{
		Digest:      scope.NewDigest(cfg.DigestInterval, logger),
		listen:      cfg.Listen,
		callTimeout: cfg.CallTimeout,
		logger:      logger,
		pending:     make(map[uint64]chan message),
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
	if cfg.Origin != "" {
		pattern, err := glob.Compile(cfg.Origin)
		if err != nil {
			return nil, errors.NewValidationError("invalid origin pattern").
				WithField("scope.ws.origin").WithValue(cfg.Origin)
		}
		s.upgrader.CheckOrigin = func(r *http.Request) bool {
			return pattern.Match(r.Header.Get("Origin"))
		}
	}
	return s, nil
}

// ServeHTTP upgrades the request and serves the page until it disconnects.
func (s *Scope) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	ws.SetReadLimit(maxMessageSize)

	c := &conn{ws: ws, done: make(chan struct{})}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ws.Close()
		return
	}
	old := s.conn
	s.conn = c
	s.state = nil
	s.mu.Unlock()

	if old != nil {
		s.logger.Info("page connection replaced", "remote", r.RemoteAddr)
		_ = old.ws.Close()
	} else {
		s.logger.Info("page connected", "remote", r.RemoteAddr)
	}
	s.readLoop(c)
}

func (s *Scope) readLoop(c *conn) {
	defer func() {
		s.mu.Lock()
		if s.conn == c {
			s.conn = nil
			s.state = nil
		}
		s.mu.Unlock()
		close(c.done)
		_ = c.ws.Close()
		s.Kick()
	}()

	for {
		var m message
		if err := c.ws.ReadJSON(&m); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("page connection lost", "error", err)
			} else {
				s.logger.Debug("page disconnected", "error", err)
			}
			return
		}

		switch m.Type {
		case typeState:
			if m.State == nil {
				continue
			}
			s.mu.Lock()
			if s.conn == c {
				s.state = m.State
			}
			s.mu.Unlock()
			s.Kick()
		case typeReply:
			s.mu.Lock()
			ch := s.pending[m.ID]
			delete(s.pending, m.ID)
			s.mu.Unlock()
			if ch != nil {
				ch <- m
			}
		default:
			s.logger.Debug("ignoring message", "type", m.Type)
		}
	}
}

// Connected reports whether a page is connected.
func (s *Scope) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Run serves the configured address and drives the digest until ctx is
// cancelled.
func (s *Scope) Run(ctx context.Context) error {
	if s.listen == "" {
		return errors.NewValidationError("listen address is required").WithField("scope.ws.listen")
	}
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return errors.NewScopeError(driverName, "listen", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Scope) Serve(parent context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("waiting for page", "addr", ln.Addr().String())

	var serveErr error
	var wg conc.WaitGroup
	wg.Go(func() {
		defer cancel()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = errors.NewScopeError(driverName, "serve", err)
		}
	})
	wg.Go(func() {
		_ = s.Digest.Run(ctx)
	})
	wg.Go(func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = s.Close()
	})
	wg.Wait()

	if serveErr != nil {
		return serveErr
	}
	return parent.Err()
}

// Close disconnects the page. Later probes return errors.ErrClosed.
func (s *Scope) Close() error {
	s.mu.Lock()
	s.closed = true
	c := s.conn
	s.conn = nil
	s.state = nil
	s.mu.Unlock()

	if c != nil {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "adapter closed"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		return c.ws.Close()
	}
	return nil
}

func (s *Scope) snapshot() (*state, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.ErrClosed
	}
	if s.state == nil || !s.state.Ready {
		return nil, scope.ErrNotReady
	}
	return s.state, nil
}

// request sends m to the page and waits for the reply.
func (s *Scope) request(ctx context.Context, op string, m message) (json.RawMessage, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.ErrClosed
	}
	c := s.conn
	if c == nil {
		s.mu.Unlock()
		return nil, scope.ErrNotReady
	}
	m.ID = s.nextID.Add(1)
	ch := make(chan message, 1)
	s.pending[m.ID] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, m.ID)
		s.mu.Unlock()
	}()

	if err := c.write(m); err != nil {
		return nil, errors.NewScopeError(driverName, op, err).WithRetryable(true)
	}

	timer := time.NewTimer(s.callTimeout)
	defer timer.Stop()

	select {
	case reply := <-ch:
		switch {
		case reply.NotFound:
			return nil, scope.ErrServiceNotFound
		case reply.Error != "":
			return nil, errors.NewScopeError(driverName, op, errors.New(reply.Error))
		case len(reply.Result) == 0:
			return json.RawMessage("null"), nil
		default:
			return reply.Result, nil
		}
	case <-c.done:
		return nil, errors.NewScopeError(driverName, op, errors.New("page disconnected")).WithRetryable(true)
	case <-timer.C:
		return nil, errors.NewTimeoutError(op, s.callTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RouteName implements scope.Scope.
func (s *Scope) RouteName(context.Context) (string, error) {
	st, err := s.snapshot()
	if err != nil {
		return "", err
	}
	return st.Route, nil
}

// RouteParams implements scope.Scope.
func (s *Scope) RouteParams(context.Context) (scope.Params, error) {
	st, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	params := make(scope.Params, len(st.Params))
	for k, v := range st.Params {
		params[k] = v
	}
	return params, nil
}

// SelectedObject implements scope.Scope.
func (s *Scope) SelectedObject(context.Context) (*scope.Object, error) {
	st, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	if !st.Room {
		return nil, scope.ErrNoRoom
	}
	return st.Selected, nil
}

// Service implements scope.Scope.
func (s *Scope) Service(ctx context.Context, name string) (scope.Service, error) {
	if _, err := s.snapshot(); err != nil {
		return nil, err
	}
	if _, err := s.request(ctx, "service", message{Type: typeHas, Service: name}); err != nil {
		return nil, err
	}
	return &service{scope: s, name: name}, nil
}

// Hash implements scope.Window.
func (s *Scope) Hash(context.Context) (string, error) {
	st, err := s.snapshot()
	if err != nil {
		return "", err
	}
	return st.Hash, nil
}

// Storage implements scope.Window.
func (s *Scope) Storage() scope.Storage {
	return storage{s}
}

type service struct {
	scope *Scope
	name  string
}

func (sv *service) Name() string { return sv.name }

func (sv *service) Call(ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	if args == nil {
		args = []any{}
	}
	if _, err := json.Marshal(args); err != nil {
		return nil, errors.NewValidationError("service arguments are not JSON-encodable").WithValue(err)
	}
	return sv.scope.request(ctx, sv.name+"."+method, message{
		Type:    typeCall,
		Service: sv.name,
		Method:  method,
		Args:    args,
	})
}

type storage struct {
	s *Scope
}

func (st storage) GetItem(ctx context.Context, key string) (string, bool, error) {
	raw, err := st.s.request(ctx, "localStorage.getItem", message{Type: typeStorage, Op: opGet, Key: key})
	if err != nil {
		return "", false, err
	}
	var item storedItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return "", false, errors.NewScopeError(driverName, "localStorage.getItem", err)
	}
	return item.Value, item.Present, nil
}

func (st storage) SetItem(ctx context.Context, key, value string) error {
	_, err := st.s.request(ctx, "localStorage.setItem", message{Type: typeStorage, Op: opSet, Key: key, Value: value})
	return err
}

func (st storage) RemoveItem(ctx context.Context, key string) error {
	_, err := st.s.request(ctx, "localStorage.removeItem", message{Type: typeStorage, Op: opRemove, Key: key})
	return err
}
