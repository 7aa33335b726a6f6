package scope

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObject_Key(t *testing.T) {
	tests := []struct {
		name string
		obj  *Object
		want string
	}{
		{"nil", nil, ""},
		{"id", &Object{ID: "5bbcab", Type: "creep", Name: "Harvester1"}, "5bbcab"},
		{"named flag", &Object{Type: "flag", Name: "Flag1"}, "flag:Flag1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.obj.Key())
		})
	}
}

func TestObject_KeyFingerprint(t *testing.T) {
	a := &Object{Raw: json.RawMessage(`{"x":1,"y":2}`)}
	b := &Object{Raw: json.RawMessage(`{"x":1,"y":2}`)}
	c := &Object{Raw: json.RawMessage(`{"x":1,"y":3}`)}

	assert.Equal(t, a.Key(), b.Key(), "identical raw data")
	assert.NotEqual(t, a.Key(), c.Key(), "different raw data")
}

func TestEqual(t *testing.T) {
	creep := &Object{ID: "a1", Type: "creep", X: 10}
	moved := &Object{ID: "a1", Type: "creep", X: 11}
	other := &Object{ID: "b2", Type: "creep"}
	var none *Object

	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"same strings", "top.game-room", "top.game-room", true},
		{"different strings", "top.game-room", "top.game-world-map", false},
		{"both nil", nil, nil, true},
		{"nil vs string", nil, "", false},
		{"different types", "1", 1, false},
		{"uncomparable", []string{"a"}, []string{"a"}, false},
		{"same object moved", creep, moved, true},
		{"different objects", creep, other, false},
		{"typed nil objects", none, none, true},
		{"object vs typed nil", creep, none, false},
		{"params equal", Params{"room": "W1N1"}, Params{"room": "W1N1"}, true},
		{"params differ", Params{"room": "W1N1"}, Params{"room": "W2N1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestParams_Room(t *testing.T) {
	assert.Equal(t, "E5S5", Params{"room": "E5S5", "shard": "shard3"}.Room())
	assert.Empty(t, Params(nil).Room())
}
