package server

import "time"

// PlayerID 会话级玩家标识（连接建立时分配）
type PlayerID string

// HeroClass 英雄职业
type HeroClass string

const (
	ClassWarrior HeroClass = "warrior"
	ClassArcher  HeroClass = "archer"
	ClassMage    HeroClass = "mage"
)

// heroStats 职业基础属性
type heroStats struct {
	Health  int
	Mana    int
	Defense int
	Weapon  string
}

// heroClasses 职业查表；未知职业使用 defaultHeroStats
var heroClasses = map[HeroClass]heroStats{
	ClassWarrior: {Health: 150, Mana: 80, Defense: 20, Weapon: "axe"},
	ClassArcher:  {Health: 90, Mana: 100, Defense: 8, Weapon: "bow"},
	ClassMage:    {Health: 80, Mana: 150, Defense: 5, Weapon: "staff"},
}

var defaultHeroStats = heroStats{Health: 100, Mana: 100}

func statsFor(class HeroClass) heroStats {
	if s, ok := heroClasses[class]; ok {
		return s
	}
	return defaultHeroStats
}

// LifeState 玩家生死状态
type LifeState string

const (
	StateAlive LifeState = "alive"
	StateDead  LifeState = "dead"
)

// Player 玩家实体（服务端权威状态，只在 World 锁内读写）
type Player struct {
	ID        PlayerID
	Name      string
	Avatar    string
	Class     HeroClass
	Weapon    string
	X         float64
	Y         float64
	Health    int
	MaxHealth int
	Mana      int
	MaxMana   int
	Defense   int
	Inventory []Item
	Effects   []StatusEffect
	State     LifeState
	DeathTime time.Time
}

func (p *Player) alive() bool { return p.State != StateDead }

// EnemyKind 敌人种类
type EnemyKind string

const (
	EnemyGoblin   EnemyKind = "goblin"
	EnemySkeleton EnemyKind = "skeleton"
	EnemyOrc      EnemyKind = "orc"
)

// EnemyMaxHealth 所有敌人的生命上限
const EnemyMaxHealth = 100

// enemyStats 种类对应的速度/伤害随机区间
type enemyStats struct {
	MinSpeed, MaxSpeed   float64
	MinDamage, MaxDamage int
}

var enemyKinds = map[EnemyKind]enemyStats{
	EnemyGoblin:   {MinSpeed: 1.8, MaxSpeed: 2.5, MinDamage: 5, MaxDamage: 9},
	EnemySkeleton: {MinSpeed: 1.2, MaxSpeed: 2.0, MinDamage: 8, MaxDamage: 12},
	EnemyOrc:      {MinSpeed: 1.0, MaxSpeed: 1.5, MinDamage: 11, MaxDamage: 15},
}

var enemyKindOrder = []EnemyKind{EnemyGoblin, EnemySkeleton, EnemyOrc}

// Enemy 敌人实体
type Enemy struct {
	ID          string
	Kind        EnemyKind
	X           float64
	Y           float64
	Health      int
	MaxHealth   int
	Damage      int
	Speed       float64
	LastHitTime time.Time
	Effects     []StatusEffect
}

// ItemType 物品类型
type ItemType string

const (
	ItemSword      ItemType = "sword"
	ItemShield     ItemType = "shield"
	ItemPotion     ItemType = "potion"
	ItemManaPotion ItemType = "mana_potion"
	ItemCoin       ItemType = "coin"
)

var itemTypes = []ItemType{ItemSword, ItemShield, ItemPotion, ItemCoin, ItemManaPotion}

// Item 物品：要么在世界列表中，要么在某一个玩家背包中
type Item struct {
	ID    string   `json:"id"`
	Type  ItemType `json:"type"`
	X     float64  `json:"x"`
	Y     float64  `json:"y"`
	Value float64  `json:"value"`
}

// EffectType 状态效果类型
type EffectType string

const (
	EffectBleed         EffectType = "bleed"
	EffectBurn          EffectType = "burn"
	EffectPoison        EffectType = "poison"
	EffectSlow          EffectType = "slow"
	EffectStun          EffectType = "stun"
	EffectSpeed         EffectType = "speed"
	EffectVulnerability EffectType = "vulnerability"
	EffectResistance    EffectType = "resistance"
)

var effectTypes = map[EffectType]bool{
	EffectBleed: true, EffectBurn: true, EffectPoison: true, EffectSlow: true,
	EffectStun: true, EffectSpeed: true, EffectVulnerability: true, EffectResistance: true,
}

// StatusEffect 附着在单个玩家或敌人身上；过期在读取时惰性判断
type StatusEffect struct {
	Type     EffectType
	Duration time.Duration
	Strength float64
	Start    time.Time

	nextTick time.Time // 持续伤害下一跳
}

// Expired now-start >= duration
func (e StatusEffect) Expired(now time.Time) bool {
	return now.Sub(e.Start) >= e.Duration
}

// EffectView 广播用的效果视图（秒为单位）
type EffectView struct {
	Type      EffectType `json:"type"`
	Duration  float64    `json:"duration"`
	Strength  float64    `json:"strength"`
	StartTime float64    `json:"start_time"`
}

// PlayerView 广播给客户端的玩家公开视图（不含防御、死亡时间等服务端字段）
type PlayerView struct {
	Name      string       `json:"name"`
	Avatar    string       `json:"avatar"`
	X         float64      `json:"x"`
	Y         float64      `json:"y"`
	Inventory []Item       `json:"inventory"`
	Health    int          `json:"health"`
	MaxHealth int          `json:"max_health"`
	Mana      int          `json:"mana"`
	MaxMana   int          `json:"max_mana"`
	HeroClass HeroClass    `json:"hero_class"`
	State     LifeState    `json:"state"`
	Effects   []EffectView `json:"effects"`
}

// EnemyView 广播用敌人视图
type EnemyView struct {
	ID          string       `json:"id"`
	Type        EnemyKind    `json:"type"`
	X           float64      `json:"x"`
	Y           float64      `json:"y"`
	Health      int          `json:"health"`
	MaxHealth   int          `json:"max_health"`
	Damage      int          `json:"damage"`
	Speed       float64      `json:"speed"`
	LastHitTime float64      `json:"last_hit_time"`
	Effects     []EffectView `json:"effects"`
}

// WorldState 某一时刻的完整快照（深拷贝，可在锁外序列化）
type WorldState struct {
	Players map[PlayerID]PlayerView `json:"players"`
	Enemies []EnemyView             `json:"enemies"`
	Items   []Item                  `json:"items"`
}

func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / 1e9
}

func effectViews(effects []StatusEffect) []EffectView {
	out := make([]EffectView, 0, len(effects))
	for _, e := range effects {
		out = append(out, EffectView{
			Type:      e.Type,
			Duration:  e.Duration.Seconds(),
			Strength:  e.Strength,
			StartTime: unixSeconds(e.Start),
		})
	}
	return out
}

func (p *Player) view() PlayerView {
	return PlayerView{
		Name:      p.Name,
		Avatar:    p.Avatar,
		X:         p.X,
		Y:         p.Y,
		Inventory: append(make([]Item, 0, len(p.Inventory)), p.Inventory...),
		Health:    p.Health,
		MaxHealth: p.MaxHealth,
		Mana:      p.Mana,
		MaxMana:   p.MaxMana,
		HeroClass: p.Class,
		State:     p.State,
		Effects:   effectViews(p.Effects),
	}
}

func (e *Enemy) view() EnemyView {
	return EnemyView{
		ID:          e.ID,
		Type:        e.Kind,
		X:           e.X,
		Y:           e.Y,
		Health:      e.Health,
		MaxHealth:   e.MaxHealth,
		Damage:      e.Damage,
		Speed:       e.Speed,
		LastHitTime: unixSeconds(e.LastHitTime),
		Effects:     effectViews(e.Effects),
	}
}
