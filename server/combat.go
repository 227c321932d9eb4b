package server

import (
	"fmt"
	"math"
	"time"
)

const (
	// SpecialManaCost 所有专属技能统一消耗
	SpecialManaCost = 25
	// ItemDropChance 敌人死亡掉落物品的概率
	ItemDropChance = 0.3

	whirlwindRange   = 80.0
	volleyRange      = 200.0
	volleyMaxTargets = 3
	// targetRangeSlack 客户端视图落后一两个 Tick 的容差
	targetRangeSlack = 32.0

	defaultWhirlwindDamage = 20
	defaultVolleyDamage    = 15
	defaultFireballDamage  = 30
	defaultFireballRadius  = 100.0
)

// AbilityType 专属技能类型
type AbilityType string

const (
	AbilityWhirlwind AbilityType = "whirlwind"
	AbilityVolley    AbilityType = "volley"
	AbilityFireball  AbilityType = "fireball"
)

// AbilityRequest use_special 的载荷
type AbilityRequest struct {
	Type    AbilityType
	Enemies []string
	Damage  *int
	TargetX float64
	TargetY float64
	Radius  *float64
}

func (r AbilityRequest) damageOr(def int) int {
	if r.Damage != nil {
		return *r.Damage
	}
	return def
}

func (r AbilityRequest) radius() float64 {
	if r.Radius != nil {
		return *r.Radius
	}
	return defaultFireballRadius
}

// AbilityHit 单个敌人的结算结果
type AbilityHit struct {
	EnemyID string `json:"enemy_id"`
	Damage  int    `json:"damage"`
	Killed  bool   `json:"killed"`
}

// AbilityResult 只回给施法者的结果
type AbilityResult struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Ability AbilityType  `json:"ability,omitempty"`
	Mana    *int         `json:"mana,omitempty"`
	Hits    []AbilityHit `json:"hits,omitempty"`
}

func abilityFailure(msg string) AbilityResult {
	return AbilityResult{Success: false, Message: msg}
}

// ability 技能策略：预校验与结算函数
type ability struct {
	validate func(req AbilityRequest) string
	resolve  func(w *World, caster *Player, req AbilityRequest, now time.Time) []AbilityHit
	label    string
}

var abilities = map[AbilityType]ability{
	AbilityWhirlwind: {resolve: (*World).resolveWhirlwind, label: "Whirlwind hit %d enemies"},
	AbilityVolley:    {resolve: (*World).resolveVolley, label: "Volley hit %d targets"},
	AbilityFireball: {
		validate: func(req AbilityRequest) string {
			if r := req.radius(); r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
				return "Invalid fireball radius"
			}
			return ""
		},
		resolve: (*World).resolveFireball,
		label:   "Fireball hit %d enemies",
	},
}

// UseSpecialAbility 校验 → 扣蓝 → 按技能类型分派。所有校验在扣蓝之前完成，
// 失败时不改变任何状态。
func (w *World) UseSpecialAbility(playerID PlayerID, req AbilityRequest) AbilityResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.players[playerID]
	if !ok {
		return abilityFailure("Player not found")
	}
	if !p.alive() {
		return abilityFailure("Player is dead")
	}
	if req.Type == "" {
		return abilityFailure("No ability type specified")
	}
	ab, ok := abilities[req.Type]
	if !ok {
		return abilityFailure("Unknown ability type")
	}
	if ab.validate != nil {
		if msg := ab.validate(req); msg != "" {
			return abilityFailure(msg)
		}
	}
	if p.Mana < SpecialManaCost {
		return abilityFailure("Not enough mana")
	}
	p.Mana -= SpecialManaCost

	hits := ab.resolve(w, p, req, w.now())
	mana := p.Mana
	return AbilityResult{
		Success: true,
		Message: fmt.Sprintf(ab.label, len(hits)),
		Ability: req.Type,
		Mana:    &mana,
		Hits:    hits,
	}
}

// resolveWhirlwind 客户端给出候选 id，服务端只保留施法者近身范围内的敌人
func (w *World) resolveWhirlwind(caster *Player, req AbilityRequest, now time.Time) []AbilityHit {
	dmg := req.damageOr(defaultWhirlwindDamage)
	var hits []AbilityHit
	for _, id := range dedupe(req.Enemies) {
		idx, e := w.findEnemy(id)
		if e == nil || math.Hypot(e.X-caster.X, e.Y-caster.Y) > whirlwindRange+targetRangeSlack {
			continue
		}
		hits = append(hits, w.hitEnemyLocked(idx, dmg, now))
	}
	return hits
}

// resolveVolley 最多 3 个目标，需在射程内且有视线
func (w *World) resolveVolley(caster *Player, req AbilityRequest, now time.Time) []AbilityHit {
	dmg := req.damageOr(defaultVolleyDamage)
	var hits []AbilityHit
	for _, id := range dedupe(req.Enemies) {
		if len(hits) >= volleyMaxTargets {
			break
		}
		idx, e := w.findEnemy(id)
		if e == nil || math.Hypot(e.X-caster.X, e.Y-caster.Y) > volleyRange+targetRangeSlack {
			continue
		}
		if !w.gmap.HasLineOfSight(caster.X, caster.Y, e.X, e.Y) {
			continue
		}
		hits = append(hits, w.hitEnemyLocked(idx, dmg, now))
	}
	return hits
}

// resolveFireball 服务端按几何重新计算受影响集合，伤害随距离线性衰减，边界处为 0
func (w *World) resolveFireball(_ *Player, req AbilityRequest, now time.Time) []AbilityHit {
	base := req.damageOr(defaultFireballDamage)
	radius := req.radius()

	type target struct {
		id  string
		dmg int
	}
	var targets []target
	for _, e := range w.enemies {
		d := math.Hypot(e.X-req.TargetX, e.Y-req.TargetY)
		if d > radius {
			continue
		}
		targets = append(targets, target{id: e.ID, dmg: FireballDamage(base, d, radius)})
	}

	// 先收集再结算：结算过程中敌人可能被移除
	hits := make([]AbilityHit, 0, len(targets))
	for _, t := range targets {
		idx, e := w.findEnemy(t.id)
		if e == nil {
			continue
		}
		hits = append(hits, w.hitEnemyLocked(idx, t.dmg, now))
	}
	return hits
}

// FireballDamage floor(damage * (1 - d/radius))，d > radius 时为 0
func FireballDamage(damage int, d, radius float64) int {
	if radius <= 0 || d > radius {
		return 0
	}
	return int(math.Floor(float64(damage) * (1 - d/radius)))
}

// HandleEnemyAttack 先施加可选效果再扣血；返回目标敌人是否存在
func (w *World) HandleEnemyAttack(attackerID PlayerID, enemyID string, damage int, effect EffectType) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if p, ok := w.players[attackerID]; !ok || !p.alive() {
		return false
	}
	idx, e := w.findEnemy(enemyID)
	if e == nil {
		return false
	}
	if effect != "" {
		if effectTypes[effect] {
			e.Effects = append(e.Effects, w.newEffect(EffectRequest{Type: effect}))
		} else {
			Log.Debugf("ignoring unknown attack effect %q from %s", effect, attackerID)
		}
	}
	w.damageEnemyLocked(idx, damage, w.now())
	return true
}

func (w *World) hitEnemyLocked(idx int, dmg int, now time.Time) AbilityHit {
	id := w.enemies[idx].ID
	applied, killed := w.damageEnemyLocked(idx, dmg, now)
	return AbilityHit{EnemyID: id, Damage: applied, Killed: killed}
}

// damageEnemyLocked 生命值截断到 0；归零即移除，并按概率在原地掉落物品
func (w *World) damageEnemyLocked(idx int, dmg int, now time.Time) (int, bool) {
	e := w.enemies[idx]
	applied := incomingDamage(e.Effects, dmg, now)
	e.Health = clampInt(e.Health-applied, 0, e.MaxHealth)
	if e.Health > 0 {
		return applied, false
	}

	w.enemies = append(w.enemies[:idx], w.enemies[idx+1:]...)
	if w.rng.Float64() < ItemDropChance {
		w.generateItemLocked("", &Point{X: e.X, Y: e.Y})
	}
	w.emit(Event{Type: EventEnemyKilled, EnemyID: e.ID, X: e.X, Y: e.Y, At: now})
	w.metrics.IncEnemiesKilled()
	return applied, true
}

// damagePlayerLocked 致死伤害把玩家置为尸体状态，宽限期后由 UpdateEffects 移除
func (w *World) damagePlayerLocked(p *Player, dmg int, now time.Time) (int, bool) {
	applied := incomingDamage(p.Effects, dmg, now)
	p.Health = clampInt(p.Health-applied, 0, p.MaxHealth)
	if p.Health > 0 || !p.alive() {
		return applied, false
	}
	p.State = StateDead
	p.DeathTime = now
	w.emit(Event{Type: EventPlayerDeath, PlayerID: p.ID, X: p.X, Y: p.Y, At: now})
	w.metrics.IncPlayerDeaths()
	Log.Infof("player %s (%s) died at (%.0f,%.0f)", p.ID, p.Name, p.X, p.Y)
	return applied, true
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
