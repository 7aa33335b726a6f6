// Package cdpscope implements scope.Scope over the Chrome DevTools Protocol.
//
// It attaches to an existing browser tab running the Screeps client (started
// with --remote-debugging-port) and reads the AngularJS state by evaluating
// small JavaScript probes in the page. Watches are served by a polling
// scope.Digest; call Run to drive it.
package cdpscope

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/gobwas/glob"

	"github.com/Iron-Ham/screeps-adapter/internal/errors"
	"github.com/Iron-Ham/screeps-adapter/internal/logging"
	"github.com/Iron-Ham/screeps-adapter/internal/scope"
)

const driverName = "cdp"

// DefaultTarget matches the official client's tabs.
const DefaultTarget = "https://screeps.com/*"

// Config configures Open.
type Config struct {
	// URL is the browser's DevTools endpoint, e.g. http://127.0.0.1:9222 or
	// a ws:// browser URL.
	URL string
	// Target is a glob matched against tab URLs. The first matching page wins.
	Target string
	// DigestInterval is how often Run evaluates watches.
	DigestInterval time.Duration
	Logger         *logging.Logger
}

// Scope is a live browser tab.
type Scope struct {
	*scope.Digest

	tab    context.Context
	cancel func()
	logger *logging.Logger
	info   *target.Info
}

var (
	_ scope.Scope      = (*Scope)(nil)
	_ scope.Window     = (*Scope)(nil)
	_ scope.UserSource = (*Scope)(nil)
)

// Open connects to the browser at cfg.URL and attaches to the first tab whose
// URL matches cfg.Target.
func Open(ctx context.Context, cfg Config) (*Scope, error) {
	if cfg.URL == "" {
		return nil, errors.NewValidationError("devtools URL is required").WithField("scope.cdp.url")
	}
	if cfg.Target == "" {
		cfg.Target = DefaultTarget
	}
	pattern, err := glob.Compile(cfg.Target)
	if err != nil {
		return nil, errors.NewValidationError("invalid target pattern").
			WithField("scope.cdp.target").WithValue(cfg.Target)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger = logger.WithDriver(driverName)

	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(ctx, cfg.URL)
	logErrors := chromedp.WithErrorf(func(format string, args ...any) {
		logger.Debug("devtools error", "message", format, "args", args)
	})

	info, err := findTarget(allocCtx, pattern, logErrors)
	if err != nil {
		cancelAlloc()
		return nil, err
	}

	tabCtx, cancelTab := newTabContext(allocCtx, info.TargetID, logErrors)
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, errors.NewScopeError(driverName, "attach", err)
	}

	chromedp.ListenTarget(tabCtx, func(ev any) {
		switch ev := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			args := make([]string, len(ev.Args))
			for i, arg := range ev.Args {
				args[i] = string(arg.Value)
			}
			logger.Debug("page console", "type", ev.Type.String(), "args", args)
		case *runtime.EventExceptionThrown:
			logger.Warn("page exception", "text", ev.ExceptionDetails.Text)
		}
	})

	logger.Info("attached to tab", "url", info.URL, "title", info.Title)
	return &Scope{
		Digest: scope.NewDigest(cfg.DigestInterval, logger),
		tab:    tabCtx,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
		logger: logger,
		info:   info,
	}, nil
}

// findTarget lists the browser's targets on a short-lived connection of its
// own and picks the tab to attach to.
func findTarget(allocCtx context.Context, pattern glob.Glob, opts ...chromedp.ContextOption) (*target.Info, error) {
	listCtx, cancel := chromedp.NewContext(allocCtx, opts...)
	defer cancel()

	// Connecting needs one action on the context.
	if err := chromedp.Run(listCtx); err != nil {
		return nil, errors.NewScopeError(driverName, "connect", err)
	}
	infos, err := chromedp.Targets(listCtx)
	if err != nil {
		return nil, errors.NewScopeError(driverName, "list targets", err)
	}
	return pickTarget(infos, pattern)
}

// newTabContext attaches to an existing tab. The context is made directly on
// the allocator: cancelling it only drops its connection, whereas one derived
// from another chromedp context closes its tab.
func newTabContext(allocCtx context.Context, id target.ID, opts ...chromedp.ContextOption) (context.Context, context.CancelFunc) {
	return chromedp.NewContext(allocCtx, append(opts, chromedp.WithTargetID(id))...)
}

// pickTarget returns the first page whose URL matches pattern.
func pickTarget(infos []*target.Info, pattern glob.Glob) (*target.Info, error) {
	for _, info := range infos {
		if info.Type == "page" && pattern.Match(info.URL) {
			return info, nil
		}
	}
	return nil, errors.NewScopeError(driverName, "find tab", errors.New("no tab matches the target pattern"))
}

// Close drops the DevTools connection. The tab itself stays open.
func (s *Scope) Close() error {
	s.cancel()
	return nil
}

// TabURL returns the URL of the attached tab at the time of Open.
func (s *Scope) TabURL() string {
	return s.info.URL
}

// eval runs a probe in the tab and decodes its value into out.
func (s *Scope) eval(ctx context.Context, op, body string, out any, args ...any) error {
	expr, err := buildProbe(body, args...)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(s.tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var reply string
	err = chromedp.Run(runCtx, chromedp.Evaluate(expr, &reply,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Navigation destroys the execution context; the next cycle retries.
		return errors.NewScopeError(driverName, op, err).WithRetryable(true)
	}

	value, err := decodeProbe(op, reply)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(value, out); err != nil {
		return errors.NewScopeError(driverName, op, err)
	}
	return nil
}

// RouteName implements scope.Scope.
func (s *Scope) RouteName(ctx context.Context) (string, error) {
	var name string
	err := s.eval(ctx, "route name", routeNameProbe, &name)
	return name, err
}

// RouteParams implements scope.Scope.
func (s *Scope) RouteParams(ctx context.Context) (scope.Params, error) {
	params := scope.Params{}
	if err := s.eval(ctx, "route params", routeParamsProbe, &params); err != nil {
		return nil, err
	}
	return params, nil
}

// SelectedObject implements scope.Scope.
func (s *Scope) SelectedObject(ctx context.Context) (*scope.Object, error) {
	var obj *scope.Object
	if err := s.eval(ctx, "selected object", selectedObjectProbe, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// Service implements scope.Scope.
func (s *Scope) Service(ctx context.Context, name string) (scope.Service, error) {
	if err := s.eval(ctx, "service", serviceProbe, nil, name); err != nil {
		return nil, err
	}
	return &service{scope: s, name: name}, nil
}

// Hash implements scope.Window.
func (s *Scope) Hash(ctx context.Context) (string, error) {
	var hash string
	err := s.eval(ctx, "hash", hashProbe, &hash)
	return hash, err
}

// User implements scope.UserSource.
func (s *Scope) User(ctx context.Context) (json.RawMessage, error) {
	var user json.RawMessage
	if err := s.eval(ctx, "user", userProbe, &user); err != nil {
		return nil, err
	}
	return user, nil
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
	var out json.RawMessage
	if err := sv.scope.eval(ctx, sv.name+"."+method, callProbe, &out, sv.name, method, args); err != nil {
		return nil, err
	}
	return out, nil
}

type storage struct {
	s *Scope
}

func (st storage) GetItem(ctx context.Context, key string) (string, bool, error) {
	var item struct {
		Present bool   `json:"present"`
		Value   string `json:"value"`
	}
	if err := st.s.eval(ctx, "localStorage.getItem", getItemProbe, &item, key); err != nil {
		return "", false, err
	}
	return item.Value, item.Present, nil
}

func (st storage) SetItem(ctx context.Context, key, value string) error {
	return st.s.eval(ctx, "localStorage.setItem", setItemProbe, nil, key, value)
}

func (st storage) RemoveItem(ctx context.Context, key string) error {
	return st.s.eval(ctx, "localStorage.removeItem", removeItemProbe, nil, key)
}
