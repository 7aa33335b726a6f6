package bridge_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/screeps-adapter/internal/bridge"
	"github.com/Iron-Ham/screeps-adapter/internal/errors"
	"github.com/Iron-Ham/screeps-adapter/internal/scope"
	"github.com/Iron-Ham/screeps-adapter/internal/scope/scopetest"
)

func TestBridge_ShowDialog(t *testing.T) {
	fake := scopetest.NewReady("top.game-room")
	fake.HandleService(bridge.AlertService, nil)
	b := newBridge(t, fake)

	d := bridge.Dialog{
		Title:             "Claim room?",
		Message:           "W7N3 is unowned.",
		ButtonOkLabel:     "Claim",
		ButtonCancelLabel: "Later",
	}
	require.NoError(t, b.ShowDialog(context.Background(), d))

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, bridge.AlertService, calls[0].Service)
	assert.Equal(t, "show", calls[0].Method)
	require.Len(t, calls[0].Args, 1)

	data, err := json.Marshal(calls[0].Args[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{"title":"Claim room?","message":"W7N3 is unowned.",
		"buttonOkLabel":"Claim","buttonCancelLabel":"Later"}}`, string(data))
}

func TestBridge_ShowDialogEmpty(t *testing.T) {
	fake := scopetest.NewReady("top.game-room")
	fake.HandleService(bridge.AlertService, nil)
	b := newBridge(t, fake)

	err := b.ShowDialog(context.Background(), bridge.Dialog{ButtonOkLabel: "OK"})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	assert.Empty(t, fake.Calls())
}

func TestBridge_ServiceNotFound(t *testing.T) {
	fake := scopetest.NewReady("top.game-room")
	b := newBridge(t, fake)

	err := b.ShowDialog(context.Background(), bridge.Dialog{Message: "hi"})
	assert.ErrorIs(t, err, scope.ErrServiceNotFound)
}

func TestBridge_CallService(t *testing.T) {
	fake := scopetest.NewReady("top.game-room")
	fake.HandleService("Api", func(method string, args []any) (json.RawMessage, error) {
		if method != "getRoomOverview" {
			return nil, errors.New("unknown method " + method)
		}
		return json.RawMessage(`{"owner":{"username":"Iron"},"room":"` + args[0].(string) + `"}`), nil
	})
	b := newBridge(t, fake)
	ctx := context.Background()

	var out struct {
		Owner struct {
			Username string `json:"username"`
		} `json:"owner"`
		Room string `json:"room"`
	}
	require.NoError(t, b.CallService(ctx, "Api", "getRoomOverview", &out, "W1N1"))
	assert.Equal(t, "Iron", out.Owner.Username)
	assert.Equal(t, "W1N1", out.Room)

	err := b.CallService(ctx, "Api", "deleteEverything", nil)
	assert.ErrorContains(t, err, "Api.deleteEverything")
}

func TestKnownServices(t *testing.T) {
	assert.Contains(t, bridge.KnownServices, "$routeSegment")
	assert.Contains(t, bridge.KnownServices, bridge.AlertService)
}

func TestBridge_User(t *testing.T) {
	fake := scopetest.NewReady("top.game-world-map")
	b := newBridge(t, fake)

	user, err := b.User(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, "null", string(user), "nobody signed in")

	fake.SetUser(json.RawMessage(`{"_id":"u1","username":"Tester"}`))
	user, err = b.User(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"_id":"u1","username":"Tester"}`, string(user))
}

func TestBridge_UserUnsupported(t *testing.T) {
	fake := scopetest.NewReady("top.game-world-map")
	// Hides the fake's User method.
	plain := struct{ scope.Scope }{fake}
	b, err := bridge.New(plain, fake)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	_, err = b.User(context.Background())
	assert.ErrorIs(t, err, scope.ErrServiceNotFound)
	assert.Zero(t, fake.Probes(), "no wait for an unsupported driver")
}
