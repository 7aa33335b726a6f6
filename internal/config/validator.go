package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError is one rejected setting, addressed by its config key.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is what Load returns when Validate finds anything.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return ""
	case 1:
		return e[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err)
	}
	return sb.String()
}

// ValidLogLevels lists the accepted logging.level values.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

const (
	maxStepIntervalMs   = 60_000
	minDigestIntervalMs = 10
	maxDigestIntervalMs = 60_000
	maxPollIntervalMs   = 60_000
	maxCallTimeoutSecs  = 300
	maxPathLength       = 4096
)

var cdpSchemes = []string{"http", "https", "ws", "wss"}

// checker accumulates failures in the order settings are inspected.
type checker []ValidationError

func (c *checker) failf(field string, value any, format string, args ...any) {
	*c = append(*c, ValidationError{Field: field, Value: value, Message: fmt.Sprintf(format, args...)})
}

// path rejects values that cannot name a file.
func (c *checker) path(field, p string) {
	switch {
	case strings.ContainsRune(p, '\x00'):
		c.failf(field, p, "path contains invalid null character")
	case len(p) > maxPathLength:
		c.failf(field, p, "path exceeds maximum length of %d characters", maxPathLength)
	}
}

// pattern rejects globs gobwas/glob cannot compile. Empty is allowed.
func (c *checker) pattern(field, pattern string) {
	if pattern == "" {
		return
	}
	if _, err := glob.Compile(pattern); err != nil {
		c.failf(field, pattern, "is not a valid glob pattern: %v", err)
	}
}

func (c *checker) within(field string, v, lo, hi int) {
	if v < lo || v > hi {
		c.failf(field, v, "must be between %d and %d", lo, hi)
	}
}

// Validate returns every problem in c, grouped by section. Settings of an
// unselected driver are checked for form but never required.
func (c *Config) Validate() []ValidationError {
	var chk checker
	c.Scope.check(&chk)
	c.Bridge.check(&chk)
	c.Logging.check(&chk)
	return chk
}

func (s *ScopeConfig) check(chk *checker) {
	if !IsValidDriver(s.Driver) {
		chk.failf("scope.driver", s.Driver, "must be one of: %s", strings.Join(ValidDrivers(), ", "))
	}

	switch u := s.CDP.URL; {
	case u == "":
		if s.Driver == DriverCDP {
			chk.failf("scope.cdp.url", u, "is required for the cdp driver")
		}
	case !isDevtoolsURL(u):
		chk.failf("scope.cdp.url", u, "must be an http(s) or ws(s) URL with a host")
	}
	chk.pattern("scope.cdp.target", s.CDP.Target)

	if s.Driver == DriverJS && s.JS.Script == "" {
		chk.failf("scope.js.script", s.JS.Script, "is required for the js driver")
	}
	chk.path("scope.js.script", s.JS.Script)
	chk.within("scope.js.step_interval_ms", s.JS.StepIntervalMs, 0, maxStepIntervalMs)

	if l := s.WS.Listen; l == "" {
		if s.Driver == DriverWS {
			chk.failf("scope.ws.listen", l, "is required for the ws driver")
		}
	} else if _, _, err := net.SplitHostPort(l); err != nil {
		chk.failf("scope.ws.listen", l, "must be a host:port address")
	}
	chk.pattern("scope.ws.origin", s.WS.Origin)
	chk.within("scope.ws.call_timeout_seconds", s.WS.CallTimeoutSeconds, 0, maxCallTimeoutSecs)
}

func isDevtoolsURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Host != "" && slices.Contains(cdpSchemes, u.Scheme)
}

func (b *BridgeConfig) check(chk *checker) {
	// 0 selects the digest default.
	if b.DigestIntervalMs != 0 {
		chk.within("bridge.digest_interval_ms", b.DigestIntervalMs, minDigestIntervalMs, maxDigestIntervalMs)
	}

	switch {
	case b.PollIntervalMs <= 0:
		chk.failf("bridge.poll_interval_ms", b.PollIntervalMs, "must be positive")
	case b.PollIntervalMs > maxPollIntervalMs:
		chk.failf("bridge.poll_interval_ms", b.PollIntervalMs, "exceeds maximum of %d", maxPollIntervalMs)
	}

	if b.ReadyTimeoutSeconds < 0 {
		chk.failf("bridge.ready_timeout_seconds", b.ReadyTimeoutSeconds, "must be non-negative")
	}

	if len(b.RoomViews) == 0 {
		chk.failf("bridge.room_views", b.RoomViews, "must list at least one view")
	}
	for i, pattern := range b.RoomViews {
		field := fmt.Sprintf("bridge.room_views[%d]", i)
		if strings.TrimSpace(pattern) == "" {
			chk.failf(field, pattern, "must not be empty")
			continue
		}
		chk.pattern(field, pattern)
	}
}

func (l *LoggingConfig) check(chk *checker) {
	if l.Level != "" && !slices.Contains(ValidLogLevels(), l.Level) {
		chk.failf("logging.level", l.Level, "must be one of: %s", strings.Join(ValidLogLevels(), ", "))
	}
	if l.Dir != "" {
		chk.path("logging.dir", l.Dir)
	}
}
