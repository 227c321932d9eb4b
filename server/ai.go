package server

import (
	"math"
	"time"
)

const (
	// ActivationRadius 超出此距离的敌人保持休眠
	ActivationRadius = 300.0
	// AggroRange 进入此距离开始追击
	AggroRange = 200.0
	// AttackDistance 小于此距离时近战攻击
	AttackDistance = 64.0
	// ChaseSpeedMultiplier 追击时的速度倍率
	ChaseSpeedMultiplier = 1.5
	// EnemyAttackCooldown 两次近战攻击的最小间隔
	EnemyAttackCooldown = time.Second

	// 追击目标点相对玩家的偏移（左 30、上 80）
	chaseOffsetX = -30.0
	chaseOffsetY = -80.0
)

// UpdateEnemies 每个 Tick 对每个敌人做一次感知 → 追击 → 攻击的决策；
// 状态不落盘，每个 Tick 重新选择最近的存活玩家。
func (w *World) UpdateEnemies() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	alive := make([]*Player, 0, len(w.players))
	for _, p := range w.players {
		if p.alive() {
			alive = append(alive, p)
		}
	}
	if len(alive) == 0 {
		return
	}

	for _, e := range w.enemies {
		if hasEffect(e.Effects, EffectStun, now) {
			continue
		}
		target := nearestPlayer(e, alive)
		if target == nil {
			// 本 Tick 内存活玩家都已被击倒
			continue
		}

		tx, ty := target.X+chaseOffsetX, target.Y+chaseOffsetY
		dx, dy := tx-e.X, ty-e.Y
		dist := math.Hypot(dx, dy)
		if dist > ActivationRadius {
			continue
		}
		if !w.gmap.HasLineOfSight(e.X, e.Y, target.X, target.Y) {
			continue
		}

		if dist <= AggroRange && dist > 0 {
			step := e.Speed * ChaseSpeedMultiplier * moveFactor(e.Effects, now)
			nx := e.X + dx/dist*step
			ny := e.Y + dy/dist*step
			if w.gmap.boxClear(nx, ny, enemyFootprint) {
				e.X, e.Y = nx, ny
			}
		}

		if dist < AttackDistance && now.Sub(e.LastHitTime) >= EnemyAttackCooldown {
			e.LastHitTime = now
			w.damagePlayerLocked(target, e.Damage, now)
		}
	}
}

// nearestPlayer 按欧氏距离选出最近的存活玩家
func nearestPlayer(e *Enemy, players []*Player) *Player {
	var best *Player
	bestDist := math.Inf(1)
	for _, p := range players {
		if !p.alive() {
			continue
		}
		if d := math.Hypot(p.X-e.X, p.Y-e.Y); d < bestDist {
			best, bestDist = p, d
		}
	}
	return best
}
