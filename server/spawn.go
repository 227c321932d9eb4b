package server

import (
	"fmt"
	"math"
)

const (
	// MaxSpawnAttempts 单个实体拒绝采样的次数上限，超过即放弃（记录日志，不报错）
	MaxSpawnAttempts = 100
	// EnemySpawnSafeRadius 敌人出生位置与玩家出生点的最小距离
	EnemySpawnSafeRadius = 200.0

	enemyFootprint = 32.0
	itemFootprint  = 24.0
	itemEdgeMargin = 50
)

// Point 像素坐标
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// spawnEnemies 在图块中心拒绝采样放置敌人，需远离玩家出生点
func (w *World) spawnEnemies(count int) {
	for n := 0; n < count; n++ {
		placed := false
		for attempt := 0; attempt < MaxSpawnAttempts; attempt++ {
			tx := w.rng.Intn(w.gmap.Width())
			ty := w.rng.Intn(w.gmap.Height())
			ts := float64(w.gmap.TileSize())
			x := float64(tx)*ts + ts/2
			y := float64(ty)*ts + ts/2
			if !w.gmap.footprintClear(x, y, enemyFootprint) {
				continue
			}
			if math.Hypot(x-SpawnX, y-SpawnY) <= EnemySpawnSafeRadius {
				continue
			}
			kind := enemyKindOrder[w.rng.Intn(len(enemyKindOrder))]
			w.placeEnemy(kind, x, y)
			placed = true
			break
		}
		if !placed {
			Log.Warnf("enemy spawn gave up after %d attempts (slot %d)", MaxSpawnAttempts, n)
		}
	}
}

// spawnItems 在地图内缘随机采样放置物品
func (w *World) spawnItems(count int) {
	for n := 0; n < count; n++ {
		pos, ok := w.randomItemPoint()
		if !ok {
			Log.Warnf("item spawn gave up after %d attempts (slot %d)", MaxSpawnAttempts, n)
			continue
		}
		w.generateItemLocked("", &pos)
	}
}

func (w *World) randomItemPoint() (Point, bool) {
	ts := w.gmap.TileSize()
	maxX := (w.gmap.Width()-1)*ts - itemEdgeMargin
	maxY := (w.gmap.Height()-1)*ts - itemEdgeMargin
	if maxX < itemEdgeMargin || maxY < itemEdgeMargin {
		return Point{}, false
	}
	for attempt := 0; attempt < MaxSpawnAttempts; attempt++ {
		x := float64(itemEdgeMargin + w.rng.Intn(maxX-itemEdgeMargin+1))
		y := float64(itemEdgeMargin + w.rng.Intn(maxY-itemEdgeMargin+1))
		if w.gmap.footprintClear(x, y, itemFootprint) {
			return Point{X: x, Y: y}, true
		}
	}
	return Point{}, false
}

func (w *World) placeEnemy(kind EnemyKind, x, y float64) *Enemy {
	stats, ok := enemyKinds[kind]
	if !ok {
		kind = EnemyGoblin
		stats = enemyKinds[kind]
	}
	e := &Enemy{
		ID:        fmt.Sprintf("enemy_%d", w.nextEnemyID),
		Kind:      kind,
		X:         x,
		Y:         y,
		Health:    EnemyMaxHealth,
		MaxHealth: EnemyMaxHealth,
		Damage:    stats.MinDamage + w.rng.Intn(stats.MaxDamage-stats.MinDamage+1),
		Speed:     stats.MinSpeed + w.rng.Float64()*(stats.MaxSpeed-stats.MinSpeed),
		Effects:   []StatusEffect{},
	}
	w.nextEnemyID++
	w.enemies = append(w.enemies, e)
	return e
}

func (w *World) generateItemLocked(t ItemType, pos *Point) Item {
	if t == "" {
		t = itemTypes[w.rng.Intn(len(itemTypes))]
	}
	var p Point
	switch {
	case pos != nil:
		p = *pos
	default:
		var ok bool
		if p, ok = w.randomItemPoint(); !ok {
			p = Point{X: SpawnX, Y: SpawnY}
		}
	}
	it := Item{
		ID:    fmt.Sprintf("item_%d", w.nextItemID),
		Type:  t,
		X:     p.X,
		Y:     p.Y,
		Value: w.randomItemValue(),
	}
	w.nextItemID++
	w.items = append(w.items, it)
	return it
}

// randomItemValue [0.1, 1.0] 保留一位小数
func (w *World) randomItemValue() float64 {
	return float64(1+w.rng.Intn(10)) / 10
}
