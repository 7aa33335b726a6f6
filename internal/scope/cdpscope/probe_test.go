package cdpscope

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/chromedp/cdproto/target"
	"github.com/gobwas/glob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/screeps-adapter/internal/errors"
	"github.com/Iron-Ham/screeps-adapter/internal/scope"
)

func TestBuildProbe(t *testing.T) {
	expr, err := buildProbe(getItemProbe, "screeps-adapter.version")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(expr, "(async () => {"))
	assert.Contains(t, expr, `["screeps-adapter.version"]`)
	assert.Contains(t, expr, `reply("not-ready")`)
	assert.Contains(t, expr, "window.localStorage.getItem(args[0])")
}

func TestBuildProbe_NoArgs(t *testing.T) {
	expr, err := buildProbe(hashProbe)
	require.NoError(t, err)
	assert.Contains(t, expr, ", [])")
}

func TestBuildProbe_User(t *testing.T) {
	expr, err := buildProbe(userProbe)
	require.NoError(t, err)
	assert.Contains(t, expr, "root.Me()")
	assert.Contains(t, expr, `{$state: "not-ready"}`)
}

func TestBuildProbe_Unencodable(t *testing.T) {
	_, err := buildProbe(callProbe, make(chan int))
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestDecodeProbe(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    string
		wantErr error
	}{
		{name: "value", reply: `{"state":"ok","value":"top.game-room"}`, want: `"top.game-room"`},
		{name: "null value", reply: `{"state":"ok","value":null}`, want: "null"},
		{name: "missing value", reply: `{"state":"ok"}`, want: "null"},
		{name: "not ready", reply: `{"state":"not-ready"}`, wantErr: scope.ErrNotReady},
		{name: "no room", reply: `{"state":"no-room"}`, wantErr: scope.ErrNoRoom},
		{name: "not found", reply: `{"state":"not-found"}`, wantErr: scope.ErrServiceNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeProbe("route name", tt.reply)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestDecodeProbe_PageError(t *testing.T) {
	_, err := decodeProbe("Dialog.show", `{"state":"error","error":"Dialog.show is not a function"}`)

	var serr *errors.ScopeError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, driverName, serr.Driver)
	assert.Equal(t, "Dialog.show", serr.Operation)
	assert.Contains(t, err.Error(), "is not a function")
	assert.False(t, errors.IsRetryable(err))
}

func TestDecodeProbe_Garbage(t *testing.T) {
	for _, reply := range []string{"", "undefined", `{"state":"exploded"}`} {
		_, err := decodeProbe("hash", reply)
		var serr *errors.ScopeError
		assert.ErrorAs(t, err, &serr, "reply %q", reply)
	}
}

func TestDecodeProbe_Object(t *testing.T) {
	reply, err := json.Marshal(map[string]any{
		"state": "ok",
		"value": map[string]any{"_id": "5bbcab", "type": "creep", "name": "Harvester1", "x": 12, "y": 30},
	})
	require.NoError(t, err)

	raw, err := decodeProbe("selected object", string(reply))
	require.NoError(t, err)

	var obj *scope.Object
	require.NoError(t, json.Unmarshal(raw, &obj))
	assert.Equal(t, "5bbcab", obj.Key())
	assert.Equal(t, 12, obj.X)
}

func TestPickTarget(t *testing.T) {
	infos := []*target.Info{
		{TargetID: "sw", Type: "service_worker", URL: "https://screeps.com/sw.js"},
		{TargetID: "docs", Type: "page", URL: "https://docs.screeps.com/api"},
		{TargetID: "game", Type: "page", URL: "https://screeps.com/a/#!/room/shard3/W1N1"},
		{TargetID: "ptr", Type: "page", URL: "https://screeps.com/ptr/#!/map"},
	}

	got, err := pickTarget(infos, glob.MustCompile(DefaultTarget))
	require.NoError(t, err)
	assert.Equal(t, target.ID("game"), got.TargetID)

	got, err = pickTarget(infos, glob.MustCompile("https://screeps.com/ptr/*"))
	require.NoError(t, err)
	assert.Equal(t, target.ID("ptr"), got.TargetID)

	_, err = pickTarget(infos, glob.MustCompile("http://localhost:21025/*"))
	var serr *errors.ScopeError
	assert.ErrorAs(t, err, &serr)
}
