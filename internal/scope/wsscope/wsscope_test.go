package wsscope

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/screeps-adapter/internal/errors"
	"github.com/Iron-Ham/screeps-adapter/internal/scope"
	"github.com/Iron-Ham/screeps-adapter/internal/testutil"
)

// page plays the in-browser shim.
type page struct {
	t    *testing.T
	ws   *websocket.Conn
	done chan struct{}

	mu      sync.Mutex
	storage map[string]string
	handler func(m message) message
}

func connect(t *testing.T, srv *httptest.Server, header http.Header) (*page, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		return nil, err
	}
	p := &page{t: t, ws: ws, done: make(chan struct{}), storage: make(map[string]string)}
	t.Cleanup(func() { _ = ws.Close() })
	go p.serve()
	return p, nil
}

func (p *page) push(st state) {
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NoError(p.t, p.ws.WriteJSON(message{Type: typeState, State: &st}))
}

func (p *page) handle(h func(m message) message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = h
}

func (p *page) serve() {
	defer close(p.done)
	for {
		var m message
		if err := p.ws.ReadJSON(&m); err != nil {
			return
		}
		reply := p.answer(m)
		reply.Type = typeReply
		reply.ID = m.ID

		p.mu.Lock()
		err := p.ws.WriteJSON(reply)
		p.mu.Unlock()
		if err != nil {
			return
		}
	}
}

func (p *page) answer(m message) message {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch m.Type {
	case typeStorage:
		switch m.Op {
		case opGet:
			v, ok := p.storage[m.Key]
			raw, _ := json.Marshal(storedItem{Present: ok, Value: v})
			return message{Result: raw}
		case opSet:
			p.storage[m.Key] = m.Value
		case opRemove:
			delete(p.storage, m.Key)
		}
		return message{}
	default:
		if p.handler == nil {
			return message{NotFound: true}
		}
		return p.handler(m)
	}
}

func newServer(t *testing.T, cfg Config) (*Scope, *httptest.Server) {
	t.Helper()
	s, err := New(cfg)
	require.NoError(t, err)
	srv := httptest.NewServer(s)
	t.Cleanup(func() {
		_ = s.Close()
		srv.Close()
	})
	return s, srv
}

var roomState = state{
	Ready:    true,
	Route:    "top.game-room",
	Params:   scope.Params{"room": "W1N1", "shard": "shard3"},
	Hash:     "#!/room/shard3/W1N1",
	Room:     true,
	Selected: &scope.Object{ID: "5bbcab", Type: "creep", Name: "Harvester1", X: 12, Y: 30},
}

func TestScope_NotReadyWithoutPage(t *testing.T) {
	s, _ := newServer(t, Config{})
	ctx := context.Background()

	_, err := s.RouteName(ctx)
	assert.ErrorIs(t, err, scope.ErrNotReady)
	_, err = s.Service(ctx, "AlertService")
	assert.ErrorIs(t, err, scope.ErrNotReady)
	_, _, err = s.Storage().GetItem(ctx, "k")
	assert.ErrorIs(t, err, scope.ErrNotReady)
	assert.False(t, s.Connected())
}

func TestScope_Snapshot(t *testing.T) {
	s, srv := newServer(t, Config{})
	ctx := context.Background()

	p, err := connect(t, srv, nil)
	require.NoError(t, err)
	testutil.Eventually(t, 0, s.Connected, "page connected")

	p.push(state{Ready: false})
	p.push(roomState)
	testutil.Eventually(t, 0, func() bool {
		name, err := s.RouteName(ctx)
		return err == nil && name == "top.game-room"
	}, "state received")

	params, err := s.RouteParams(ctx)
	require.NoError(t, err)
	assert.Equal(t, "W1N1", params.Room())

	hash, err := s.Hash(ctx)
	require.NoError(t, err)
	assert.Equal(t, roomState.Hash, hash)

	obj, err := s.SelectedObject(ctx)
	require.NoError(t, err)
	assert.Equal(t, "5bbcab", obj.Key())

	p.push(state{Ready: true, Route: "top.game-world-map"})
	testutil.Eventually(t, 0, func() bool {
		_, err := s.SelectedObject(ctx)
		return errors.Is(err, scope.ErrNoRoom)
	}, "room unmounted")
}

func TestScope_Watch(t *testing.T) {
	s, srv := newServer(t, Config{})
	ctx := context.Background()

	var views testutil.Recorder[string]
	s.Watch(func(ctx context.Context) (any, error) {
		return s.RouteName(ctx)
	}, func(v, _ any) {
		_ = views.Record(v.(string))
	})

	p, err := connect(t, srv, nil)
	require.NoError(t, err)
	p.push(roomState)
	testutil.Eventually(t, 0, func() bool { s.Cycle(ctx); return views.Len() == 1 }, "watch primed")

	p.push(state{Ready: true, Route: "top.game-world-map"})
	testutil.Eventually(t, 0, func() bool { s.Cycle(ctx); return views.Len() == 2 }, "change detected")
	assert.Equal(t, []string{"top.game-room", "top.game-world-map"}, views.Values())
}

func TestScope_ServiceRoundTrip(t *testing.T) {
	s, srv := newServer(t, Config{})
	ctx := context.Background()

	p, err := connect(t, srv, nil)
	require.NoError(t, err)
	p.handle(func(m message) message {
		if m.Service != "AlertService" {
			return message{NotFound: true}
		}
		switch m.Type {
		case typeHas:
			return message{}
		case typeCall:
			if m.Method != "show" {
				return message{Error: m.Service + "." + m.Method + " is not a function"}
			}
			raw, _ := json.Marshal(m.Args)
			return message{Result: raw}
		}
		return message{Error: "unexpected " + m.Type}
	})
	p.push(roomState)
	testutil.Eventually(t, 0, func() bool { _, err := s.RouteName(ctx); return err == nil }, "ready")

	_, err = s.Service(ctx, "Api")
	assert.ErrorIs(t, err, scope.ErrServiceNotFound)

	svc, err := s.Service(ctx, "AlertService")
	require.NoError(t, err)
	out, err := svc.Call(ctx, "show", map[string]any{"data": map[string]any{"title": "Hi"}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"data":{"title":"Hi"}}]`, string(out))

	_, err = svc.Call(ctx, "hide")
	var serr *errors.ScopeError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "AlertService.hide", serr.Operation)

	_, err = svc.Call(ctx, "show", make(chan int))
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestScope_StorageRoundTrip(t *testing.T) {
	s, srv := newServer(t, Config{})
	ctx := context.Background()

	_, err := connect(t, srv, nil)
	require.NoError(t, err)
	testutil.Eventually(t, 0, s.Connected, "page connected")

	st := s.Storage()
	_, ok, err := st.GetItem(ctx, "lastRoom")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.SetItem(ctx, "lastRoom", "W1N1"))
	v, ok, err := st.GetItem(ctx, "lastRoom")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "W1N1", v)

	require.NoError(t, st.RemoveItem(ctx, "lastRoom"))
	_, ok, err = st.GetItem(ctx, "lastRoom")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScope_CallTimeout(t *testing.T) {
	s, srv := newServer(t, Config{CallTimeout: 20 * time.Millisecond})
	ctx := context.Background()

	p, err := connect(t, srv, nil)
	require.NoError(t, err)
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	p.handle(func(message) message {
		<-block
		return message{}
	})
	testutil.Eventually(t, 0, s.Connected, "page connected")

	err = s.Storage().SetItem(ctx, "k", "v")
	assert.ErrorIs(t, err, errors.ErrTimeout)
}

func TestScope_Disconnect(t *testing.T) {
	s, srv := newServer(t, Config{})
	ctx := context.Background()

	p, err := connect(t, srv, nil)
	require.NoError(t, err)
	p.push(roomState)
	testutil.Eventually(t, 0, func() bool { _, err := s.RouteName(ctx); return err == nil }, "ready")

	require.NoError(t, p.ws.Close())
	testutil.Eventually(t, 0, func() bool { return !s.Connected() }, "page disconnected")
	_, err = s.RouteName(ctx)
	assert.ErrorIs(t, err, scope.ErrNotReady)
}

func TestScope_ReplacedConnection(t *testing.T) {
	s, srv := newServer(t, Config{})
	ctx := context.Background()

	first, err := connect(t, srv, nil)
	require.NoError(t, err)
	first.push(roomState)
	testutil.Eventually(t, 0, func() bool { _, err := s.RouteName(ctx); return err == nil }, "first ready")

	second, err := connect(t, srv, nil)
	require.NoError(t, err)
	second.push(state{Ready: true, Route: "top.sim-custom"})
	testutil.Eventually(t, 0, func() bool {
		name, _ := s.RouteName(ctx)
		return name == "top.sim-custom"
	}, "second connection wins")

	select {
	case <-first.done:
	case <-time.After(testutil.DefaultWait):
		t.Fatal("first connection was not closed by the server")
	}
}

func TestScope_Origin(t *testing.T) {
	_, err := New(Config{Origin: "https://[screeps"})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	s, srv := newServer(t, Config{Origin: "https://screeps.com"})

	_, err = connect(t, srv, http.Header{"Origin": {"https://evil.example"}})
	assert.Error(t, err)

	_, err = connect(t, srv, http.Header{"Origin": {"https://screeps.com"}})
	require.NoError(t, err)
	testutil.Eventually(t, 0, s.Connected, "page connected")
}

func TestScope_Serve(t *testing.T) {
	s, err := New(Config{DigestInterval: time.Millisecond})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/", nil)
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.WriteJSON(message{Type: typeState, State: &roomState}))
	testutil.Eventually(t, 0, func() bool { _, err := s.RouteName(ctx); return err == nil }, "ready")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	_, err = s.RouteName(context.Background())
	assert.ErrorIs(t, err, errors.ErrClosed)
}

func TestScope_RunRequiresListen(t *testing.T) {
	s, err := New(Config{})
	require.NoError(t, err)
	assert.ErrorIs(t, s.Run(context.Background()), errors.ErrInvalidInput)
}

func TestShim(t *testing.T) {
	js := Shim("ws://127.0.0.1:8787/", 0)
	assert.Contains(t, js, `var url = "ws://127.0.0.1:8787/", interval = 100;`)
	assert.Contains(t, js, `'{"type":"state","state":'`)
	for _, typ := range []string{typeHas, typeCall, typeStorage} {
		assert.Contains(t, js, `case "`+typ+`":`)
	}
}
