package bridge

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/Iron-Ham/screeps-adapter/internal/errors"
	"github.com/Iron-Ham/screeps-adapter/internal/scope"
)

// AlertService is the client service that renders popup dialogs.
const AlertService = "AlertService"

// KnownServices are the client services commonly used by feature scripts.
var KnownServices = []string{
	"$timeout",
	"$routeSegment",
	"$location",
	"Api",
	"Connection",
	"Console",
	"MapUtils",
	"Socket",
	AlertService,
}

// Dialog describes a popup. When both Title and Icon are empty the client
// shows an exclamation mark icon.
type Dialog struct {
	Title             string `json:"title,omitempty"`
	Icon              string `json:"icon,omitempty"` // image URL
	Message           string `json:"message,omitempty"`
	ButtonOkLabel     string `json:"buttonOkLabel,omitempty"`
	ButtonCancelLabel string `json:"buttonCancelLabel,omitempty"`
}

// ShowDialog displays d through the client's AlertService.
func (b *Bridge) ShowDialog(ctx context.Context, d Dialog) error {
	if strings.TrimSpace(d.Title+d.Icon+d.Message) == "" {
		return errors.NewValidationError("dialog needs a title, icon or message").WithField("dialog")
	}

	svc, err := b.Service(ctx, AlertService)
	if err != nil {
		return err
	}
	if _, err := svc.Call(ctx, "show", map[string]any{"data": d}); err != nil {
		return errors.Wrap(err, "show dialog")
	}
	return nil
}

// Service resolves a client service by its injector name once the client is
// ready.
func (b *Bridge) Service(ctx context.Context, name string) (scope.Service, error) {
	if err := b.WaitReady(ctx); err != nil {
		return nil, err
	}
	svc, err := b.scope.Service(ctx, name)
	if err != nil {
		return nil, errors.Wrapf(err, "service %s", name)
	}
	return svc, nil
}

// User returns the signed-in user as the client reports it, or JSON null when
// nobody is signed in. Drivers that can not read it return ErrServiceNotFound.
func (b *Bridge) User(ctx context.Context) (json.RawMessage, error) {
	src, ok := b.scope.(scope.UserSource)
	if !ok {
		return nil, errors.Wrap(errors.ErrServiceNotFound, "user")
	}
	if err := b.WaitReady(ctx); err != nil {
		return nil, err
	}
	user, err := src.User(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "user")
	}
	return user, nil
}

// CallService resolves name and invokes method on it, decoding the JSON result
// into out when out is non-nil.
func (b *Bridge) CallService(ctx context.Context, name, method string, out any, args ...any) error {
	svc, err := b.Service(ctx, name)
	if err != nil {
		return err
	}
	raw, err := svc.Call(ctx, method, args...)
	if err != nil {
		return errors.Wrapf(err, "%s.%s", name, method)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(err, "decode %s.%s result", name, method)
	}
	return nil
}
