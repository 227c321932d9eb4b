package server

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink 记录发布的事件
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Publish(ev Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *recordingSink) Close() {}

func (r *recordingSink) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return eventTypes(r.events)
}

func drainQueue(c *ClientConn) []inbound {
	var out []inbound
	for {
		select {
		case b := <-c.send:
			var m inbound
			if json.Unmarshal(b, &m) == nil {
				out = append(out, m)
			}
		default:
			return out
		}
	}
}

func TestStepBroadcastsSnapshot(t *testing.T) {
	srv, w := newTestServer(t)
	sink := &recordingSink{}
	srv.events = sink
	conn := NewClientConn(&fakeWire{}, 8, time.Second, 0, nil)
	require.NoError(t, srv.hub.Register("p1", conn))
	w.AddPlayer("p1", "alice", "elf", ClassArcher)
	w.spawnEnemy(EnemySkeleton, 900, 600)

	srv.Step()

	msgs := drainQueue(conn)
	require.Len(t, msgs, 1)
	assert.Equal(t, MsgUpdateState, msgs[0].Type)

	var st WorldState
	require.NoError(t, json.Unmarshal(msgs[0].Data, &st))
	require.Contains(t, st.Players, PlayerID("p1"))
	assert.Equal(t, "alice", st.Players["p1"].Name)
	assert.Equal(t, ClassArcher, st.Players["p1"].HeroClass)
	assert.Equal(t, StateAlive, st.Players["p1"].State)
	require.Len(t, st.Enemies, 1)
	assert.Equal(t, EnemySkeleton, st.Enemies[0].Type)

	assert.Equal(t, []EventType{EventPlayerJoined}, sink.types())
	assert.Equal(t, int64(1), atomic.LoadInt64(&srv.metrics.TickCount))
}

func TestStepAnnouncesDeathBeforeSnapshot(t *testing.T) {
	srv, w := newTestServer(t)
	sink := &recordingSink{}
	srv.events = sink
	conn := NewClientConn(&fakeWire{}, 8, time.Second, 0, nil)
	require.NoError(t, srv.hub.Register("p1", conn))

	w.AddPlayer("p1", "alice", "elf", ClassWarrior)
	w.mu.Lock()
	w.players["p1"].Health = 3
	w.mu.Unlock()
	spawnTestEnemy(t, w, 80, 70, 2, 10)

	srv.Step()

	msgs := drainQueue(conn)
	require.Len(t, msgs, 2)
	assert.Equal(t, MsgPlayerDeath, msgs[0].Type)
	var pd PlayerDeath
	require.NoError(t, json.Unmarshal(msgs[0].Data, &pd))
	assert.Equal(t, PlayerID("p1"), pd.PlayerID)

	assert.Equal(t, MsgUpdateState, msgs[1].Type)
	var st WorldState
	require.NoError(t, json.Unmarshal(msgs[1].Data, &st))
	assert.Equal(t, StateDead, st.Players["p1"].State)
	assert.Equal(t, 0, st.Players["p1"].Health)

	assert.Equal(t, []EventType{EventPlayerJoined, EventPlayerDeath}, sink.types())
}

func TestStepRecoversFromPanic(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.world = nil

	assert.NotPanics(t, srv.Step)
}

func TestRunBroadcastLoopStopsOnCancel(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.cfg.Server.BroadcastInterval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.RunBroadcastLoop(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&srv.metrics.TickCount) >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}
