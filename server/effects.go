package server

import (
	"math"
	"time"
)

const (
	// DefaultEffectDuration 未指定时长时的默认值
	DefaultEffectDuration = 3 * time.Second

	dotDamagePerTick    = 5.0
	dotInterval         = time.Second
	slowFactor          = 0.5
	hasteFactor         = 1.5
	vulnerabilityFactor = 1.5
	resistanceFactor    = 0.5
)

// EffectRequest 施加状态效果的参数；零值字段使用默认
type EffectRequest struct {
	Type     EffectType
	Duration time.Duration
	Strength float64
}

// ApplyEffect 给玩家或敌人附加效果（先查玩家再查敌人），都不匹配时返回 false
func (w *World) ApplyEffect(targetID string, req EffectRequest) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.applyEffectLocked(targetID, req)
}

func (w *World) applyEffectLocked(targetID string, req EffectRequest) bool {
	if !effectTypes[req.Type] {
		return false
	}
	eff := w.newEffect(req)
	if p, ok := w.players[PlayerID(targetID)]; ok {
		p.Effects = append(p.Effects, eff)
		return true
	}
	if _, e := w.findEnemy(targetID); e != nil {
		e.Effects = append(e.Effects, eff)
		return true
	}
	return false
}

func (w *World) newEffect(req EffectRequest) StatusEffect {
	if req.Duration <= 0 {
		req.Duration = DefaultEffectDuration
	}
	if req.Strength <= 0 {
		req.Strength = 1.0
	}
	return StatusEffect{Type: req.Type, Duration: req.Duration, Strength: req.Strength, Start: w.now()}
}

// UpdateEffects 先结算持续伤害再清理过期效果，并移除死亡宽限期已过的玩家
func (w *World) UpdateEffects() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	for id, p := range w.players {
		if p.alive() {
			dmg := tickDamageOverTime(p.Effects, now)
			p.Effects = pruneEffects(p.Effects, now)
			if dmg > 0 {
				w.damagePlayerLocked(p, dmg, now)
			}
			continue
		}
		p.Effects = pruneEffects(p.Effects, now)
		if now.Sub(p.DeathTime) >= DeathGracePeriod {
			w.removePlayerLocked(id)
		}
	}

	// 倒序遍历：结算中敌人可能被移除
	for i := len(w.enemies) - 1; i >= 0; i-- {
		e := w.enemies[i]
		dmg := tickDamageOverTime(e.Effects, now)
		e.Effects = pruneEffects(e.Effects, now)
		if dmg > 0 {
			w.damageEnemyLocked(i, dmg, now)
		}
	}
}

// pruneEffects 原地过滤已过期的效果
func pruneEffects(effects []StatusEffect, now time.Time) []StatusEffect {
	kept := effects[:0]
	for _, e := range effects {
		if !e.Expired(now) {
			kept = append(kept, e)
		}
	}
	return kept
}

func isDamageOverTime(t EffectType) bool {
	return t == EffectBleed || t == EffectBurn || t == EffectPoison
}

// tickDamageOverTime 按秒结算流血/燃烧/中毒，推进每个效果的下一跳时间
func tickDamageOverTime(effects []StatusEffect, now time.Time) int {
	total := 0.0
	for i := range effects {
		e := &effects[i]
		if !isDamageOverTime(e.Type) {
			continue
		}
		if e.nextTick.IsZero() {
			e.nextTick = e.Start.Add(dotInterval)
		}
		end := e.Start.Add(e.Duration)
		for !now.Before(e.nextTick) && !e.nextTick.After(end) {
			total += dotDamagePerTick * e.Strength
			e.nextTick = e.nextTick.Add(dotInterval)
		}
	}
	return int(math.Round(total))
}

func hasEffect(effects []StatusEffect, t EffectType, now time.Time) bool {
	for _, e := range effects {
		if e.Type == t && !e.Expired(now) {
			return true
		}
	}
	return false
}

// moveFactor 减速/加速对移动速度的倍率
func moveFactor(effects []StatusEffect, now time.Time) float64 {
	f := 1.0
	if hasEffect(effects, EffectSlow, now) {
		f *= slowFactor
	}
	if hasEffect(effects, EffectSpeed, now) {
		f *= hasteFactor
	}
	return f
}

// incomingDamage 按易伤/抗性修正受到的伤害，负数视为 0
func incomingDamage(effects []StatusEffect, dmg int, now time.Time) int {
	if dmg <= 0 {
		return 0
	}
	f := 1.0
	if hasEffect(effects, EffectVulnerability, now) {
		f *= vulnerabilityFactor
	}
	if hasEffect(effects, EffectResistance, now) {
		f *= resistanceFactor
	}
	if f == 1.0 {
		return dmg
	}
	return int(math.Min(math.Floor(float64(dmg)*f), maxAmount))
}
