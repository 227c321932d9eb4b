package server

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock 可手动推进的时钟
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// newTestWorld 默认地图、空的初始刷怪、固定种子与时钟
func newTestWorld(t *testing.T) (*World, *fakeClock) {
	t.Helper()
	return newTestWorldWithLayout(t, DefaultLayout)
}

func newTestWorldWithLayout(t *testing.T, layout [][]int) (*World, *fakeClock) {
	t.Helper()
	gm, err := NewGameMap(layout, TileSize)
	require.NoError(t, err)
	w := NewWorld(gm, WorldConfig{Seed: 42}, &Metrics{})
	clk := newFakeClock()
	w.now = clk.Now
	return w, clk
}

// player 测试内直接读取内部状态
func (w *World) player(id PlayerID) *Player {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.players[id]
}

func (w *World) enemy(id string) *Enemy {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, e := w.findEnemy(id)
	return e
}

func (w *World) itemIDs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	ids := make([]string, 0, len(w.items))
	for _, it := range w.items {
		ids = append(ids, it.ID)
	}
	return ids
}

func eventTypes(evs []Event) []EventType {
	out := make([]EventType, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Type)
	}
	return out
}

// spawnEnemy 在指定位置放置一个敌人，返回其 id
func (w *World) spawnEnemy(kind EnemyKind, x, y float64) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.placeEnemy(kind, x, y).ID
}
