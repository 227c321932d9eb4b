package server

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "single", in: "{\"type\":\"move\"}\n", want: []string{`{"type":"move"}`}},
		{name: "several with blanks", in: "a\n\n  b  \r\n\nc", want: []string{"a", "b", "c"}},
		{name: "only separators", in: "\n\n\n", want: nil},
		{name: "empty", in: "", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, l := range SplitLines([]byte(tt.in)) {
				got = append(got, string(l))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEnvelope(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"type":"pickup","data":{"item_id":"item_3"}}`))
	require.NoError(t, err)
	assert.Equal(t, MsgPickup, env.Type)

	var d PickupData
	require.NoError(t, env.DecodeData(&d))
	assert.Equal(t, "item_3", d.ItemID)

	_, err = ParseEnvelope([]byte(`{"data":{}}`))
	assert.Error(t, err, "missing type")
	_, err = ParseEnvelope([]byte(`{"type":`))
	assert.Error(t, err, "truncated json")
	_, err = ParseEnvelope([]byte(`[1,2]`))
	assert.Error(t, err, "not an object")
}

func TestDecodeDataKeepsDefaults(t *testing.T) {
	for _, raw := range []string{`{"type":"join"}`, `{"type":"join","data":null}`} {
		env, err := ParseEnvelope([]byte(raw))
		require.NoError(t, err)

		d := JoinData{Name: "Anonymous", HeroClass: "warrior"}
		require.NoError(t, env.DecodeData(&d))
		assert.Equal(t, "Anonymous", d.Name)
		assert.Equal(t, "warrior", d.HeroClass)
	}

	env, err := ParseEnvelope([]byte(`{"type":"join","data":{"name":"bob"}}`))
	require.NoError(t, err)
	d := JoinData{Name: "Anonymous", HeroClass: "warrior"}
	require.NoError(t, env.DecodeData(&d))
	assert.Equal(t, "bob", d.Name)
	assert.Equal(t, "warrior", d.HeroClass)

	env, err = ParseEnvelope([]byte(`{"type":"drop","data":"oops"}`))
	require.NoError(t, err)
	assert.Error(t, env.DecodeData(&DropData{}))
}

func TestEncodeMessage(t *testing.T) {
	b, err := EncodeMessage(MsgDropResult, DropResult{Success: true})
	require.NoError(t, err)
	require.Equal(t, byte('\n'), b[len(b)-1])
	assert.JSONEq(t, `{"type":"drop_result","data":{"success":true}}`, string(b[:len(b)-1]))

	_, err = EncodeMessage("bad", make(chan int))
	assert.Error(t, err)
}

func TestMoveDelta(t *testing.T) {
	tests := []struct {
		dir    string
		speed  *float64
		dx, dy float64
		ok     bool
	}{
		{dir: "up", dx: 0, dy: -5, ok: true},
		{dir: "DOWN", dx: 0, dy: 5, ok: true},
		{dir: "left", speed: floatPtr(8), dx: -8, dy: 0, ok: true},
		{dir: "right", dx: 5, dy: 0, ok: true},
		{dir: "sideways", ok: false},
		{dir: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			dx, dy, ok := moveDelta(MoveData{Direction: tt.dir, Speed: tt.speed})
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.dx, dx)
			assert.Equal(t, tt.dy, dy)
		})
	}
}

func TestSpecialDataRequest(t *testing.T) {
	var d SpecialData
	require.NoError(t, json.Unmarshal([]byte(`{"type":"Fireball","damage":42.9,"target_x":10,"target_y":20,"radius":50}`), &d))

	req := d.Request()
	assert.Equal(t, AbilityFireball, req.Type)
	require.NotNil(t, req.Damage)
	assert.Equal(t, 42, *req.Damage)
	assert.Equal(t, 10.0, req.TargetX)
	assert.Equal(t, 20.0, req.TargetY)
	assert.Equal(t, 50.0, req.radius())

	req = SpecialData{Type: "volley"}.Request()
	assert.Nil(t, req.Damage)
	assert.Equal(t, 15, req.damageOr(defaultVolleyDamage))
	assert.Equal(t, defaultFireballRadius, req.radius())
}

func TestToAmount(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want int
	}{
		{name: "nan", in: math.NaN(), want: 0},
		{name: "negative", in: -5, want: 0},
		{name: "zero", in: 0, want: 0},
		{name: "fraction truncates", in: 12.9, want: 12},
		{name: "huge", in: 1e19, want: math.MaxInt32},
		{name: "infinite", in: math.Inf(1), want: math.MaxInt32},
		{name: "negative infinite", in: math.Inf(-1), want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toAmount(tt.in))
		})
	}
}
