package server

import (
	"math"
	"math/rand"
	"time"

	"github.com/sasha-s/go-deadlock"
)

const (
	// SpawnX, SpawnY 玩家出生点
	SpawnX = 100.0
	SpawnY = 100.0
	// PlayerSize 玩家碰撞盒边长（三点近似检查）
	PlayerSize = 32.0
	// PickupRadius 拾取距离上限
	PickupRadius = 50.0
	// DeathGracePeriod 尸体在快照中保留的时间，之后由 UpdateEffects 清除
	DeathGracePeriod = time.Second
)

// World 唯一权威状态：玩家、敌人、物品。所有字段只在 mu 内读写，
// 网络 I/O 一律在锁外进行。
type World struct {
	mu deadlock.Mutex

	gmap    *GameMap
	players map[PlayerID]*Player
	enemies []*Enemy
	items   []Item

	nextItemID  int
	nextEnemyID int

	rng     *rand.Rand
	now     func() time.Time
	pending []Event
	metrics *Metrics
}

// NewWorld 创建世界并按配置随机刷出初始敌人与物品
func NewWorld(gm *GameMap, cfg WorldConfig, metrics *Metrics) *World {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	w := &World{
		gmap:        gm,
		players:     make(map[PlayerID]*Player),
		nextItemID:  1,
		nextEnemyID: 1,
		rng:         rand.New(rand.NewSource(seed)),
		now:         time.Now,
		metrics:     metrics,
	}

	w.mu.Lock()
	w.spawnEnemies(cfg.EnemyCount)
	w.spawnItems(cfg.ItemCount)
	w.mu.Unlock()
	Log.Infof("world ready: seed=%d enemies=%d items=%d", seed, len(w.enemies), len(w.items))
	return w
}

// Map 静态地图（不可变，无需加锁）
func (w *World) Map() *GameMap { return w.gmap }

// AddPlayer 按职业初始化属性并放到出生点；同一 id 重复加入会覆盖旧记录
func (w *World) AddPlayer(id PlayerID, name, avatar string, class HeroClass) {
	w.mu.Lock()
	defer w.mu.Unlock()

	stats := statsFor(class)
	w.players[id] = &Player{
		ID:        id,
		Name:      name,
		Avatar:    avatar,
		Class:     class,
		Weapon:    stats.Weapon,
		X:         SpawnX,
		Y:         SpawnY,
		Health:    stats.Health,
		MaxHealth: stats.Health,
		Mana:      stats.Mana,
		MaxMana:   stats.Mana,
		Defense:   stats.Defense,
		Inventory: []Item{},
		Effects:   []StatusEffect{},
		State:     StateAlive,
	}
	w.emit(Event{Type: EventPlayerJoined, PlayerID: id, X: SpawnX, Y: SpawnY})
}

// RemovePlayer 删除玩家；id 不存在时什么也不做
func (w *World) RemovePlayer(id PlayerID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.removePlayerLocked(id)
}

func (w *World) removePlayerLocked(id PlayerID) bool {
	p, ok := w.players[id]
	if !ok {
		return false
	}
	delete(w.players, id)
	w.emit(Event{Type: EventPlayerLeft, PlayerID: id, X: p.X, Y: p.Y})
	return true
}

// MovePlayer 候选位置及其右侧、下方 32 像素处都可通行时才移动
func (w *World) MovePlayer(id PlayerID, dx, dy float64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.players[id]
	if !ok || !p.alive() {
		return false
	}
	nx, ny := p.X+dx, p.Y+dy
	if !w.gmap.footprintClear(nx, ny, PlayerSize) {
		return false
	}
	p.X, p.Y = nx, ny
	return true
}

// PickupItem 物品存在且距离不超过 PickupRadius 时转移到玩家背包
func (w *World) PickupItem(playerID PlayerID, itemID string) (Item, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.players[playerID]
	if !ok || !p.alive() {
		return Item{}, false
	}
	for i, it := range w.items {
		if it.ID != itemID {
			continue
		}
		if math.Hypot(p.X-it.X, p.Y-it.Y) > PickupRadius {
			return Item{}, false
		}
		w.items = append(w.items[:i], w.items[i+1:]...)
		p.Inventory = append(p.Inventory, it)
		return it, true
	}
	return Item{}, false
}

// DropItem 从背包取出第 index 个物品，放回玩家当前位置
func (w *World) DropItem(playerID PlayerID, index int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.players[playerID]
	if !ok || !p.alive() {
		return false
	}
	if index < 0 || index >= len(p.Inventory) {
		return false
	}
	it := p.Inventory[index]
	p.Inventory = append(p.Inventory[:index], p.Inventory[index+1:]...)
	it.X, it.Y = p.X, p.Y
	w.items = append(w.items, it)
	return true
}

// HealPlayer 回血并截断到上限，返回新生命值；非正数不改变生命值
func (w *World) HealPlayer(id PlayerID, amount int) (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.players[id]
	if !ok || !p.alive() {
		return 0, false
	}
	p.Health = restore(p.Health, amount, p.MaxHealth)
	return p.Health, true
}

// AddMana 回蓝并截断到上限，返回新法力值；非正数不改变法力值
func (w *World) AddMana(id PlayerID, amount int) (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.players[id]
	if !ok || !p.alive() {
		return 0, false
	}
	p.Mana = restore(p.Mana, amount, p.MaxMana)
	return p.Mana, true
}

// GenerateItem 插入一个物品；类型为空时随机，pos 为 nil 时随机取可通行位置
func (w *World) GenerateItem(t ItemType, pos *Point) Item {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.generateItemLocked(t, pos)
}

// GetState 返回调用时刻的深拷贝快照
func (w *World) GetState() WorldState {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := WorldState{
		Players: make(map[PlayerID]PlayerView, len(w.players)),
		Enemies: make([]EnemyView, 0, len(w.enemies)),
		Items:   append(make([]Item, 0, len(w.items)), w.items...),
	}
	for id, p := range w.players {
		st.Players[id] = p.view()
	}
	for _, e := range w.enemies {
		st.Enemies = append(st.Enemies, e.view())
	}
	return st
}

// DrainEvents 取走待处理的游戏事件，由广播循环在锁外分发
func (w *World) DrainEvents() []Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	evs := w.pending
	w.pending = nil
	return evs
}

// Counts 当前实体数量（监控用）
func (w *World) Counts() (players, enemies, items int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.players), len(w.enemies), len(w.items)
}

func (w *World) emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = w.now()
	}
	w.pending = append(w.pending, ev)
}

func (w *World) findEnemy(id string) (int, *Enemy) {
	for i, e := range w.enemies {
		if e.ID == id {
			return i, e
		}
	}
	return -1, nil
}

// restore 只加不减，且不会越过上限（amount 很大时也不溢出）
func restore(cur, amount, limit int) int {
	if amount <= 0 {
		return cur
	}
	if amount >= limit-cur {
		return limit
	}
	return cur + amount
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
