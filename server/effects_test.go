package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEffectTargets(t *testing.T) {
	w, _ := newTestWorld(t)
	w.AddPlayer("p1", "n", "a", ClassWarrior)
	eid := w.spawnEnemy(EnemyGoblin, 600, 600)

	assert.True(t, w.ApplyEffect("p1", EffectRequest{Type: EffectSpeed}))
	assert.True(t, w.ApplyEffect(eid, EffectRequest{Type: EffectBleed, Duration: 5 * time.Second, Strength: 2}))
	assert.False(t, w.ApplyEffect("nobody", EffectRequest{Type: EffectBurn}))
	assert.False(t, w.ApplyEffect("p1", EffectRequest{Type: "frozen"}))

	pe := w.player("p1").Effects
	require.Len(t, pe, 1)
	assert.Equal(t, DefaultEffectDuration, pe[0].Duration)
	assert.Equal(t, 1.0, pe[0].Strength)

	ee := w.enemy(eid).Effects
	require.Len(t, ee, 1)
	assert.Equal(t, 5*time.Second, ee[0].Duration)
	assert.Equal(t, 2.0, ee[0].Strength)
}

func TestEffectsExpireLazily(t *testing.T) {
	w, clk := newTestWorld(t)
	w.AddPlayer("p1", "n", "a", ClassWarrior)
	require.True(t, w.ApplyEffect("p1", EffectRequest{Type: EffectSlow}))

	clk.Advance(2900 * time.Millisecond)
	w.UpdateEffects()
	assert.Len(t, w.player("p1").Effects, 1)

	clk.Advance(100 * time.Millisecond)
	w.UpdateEffects()
	assert.Empty(t, w.player("p1").Effects)
}

func TestDamageOverTimeOnEnemy(t *testing.T) {
	w, clk := newTestWorld(t)
	eid := w.spawnEnemy(EnemyOrc, 600, 600)
	require.True(t, w.ApplyEffect(eid, EffectRequest{Type: EffectBurn}))

	w.UpdateEffects()
	assert.Equal(t, 100, w.enemy(eid).Health, "no tick before the first second")

	clk.Advance(time.Second)
	w.UpdateEffects()
	assert.Equal(t, 95, w.enemy(eid).Health)

	// 跳过两秒：补结算第 2、3 秒两跳，然后效果过期
	clk.Advance(2 * time.Second)
	w.UpdateEffects()
	e := w.enemy(eid)
	assert.Equal(t, 85, e.Health)
	assert.Empty(t, e.Effects)

	clk.Advance(time.Second)
	w.UpdateEffects()
	assert.Equal(t, 85, w.enemy(eid).Health)
}

func TestDamageOverTimeCanKill(t *testing.T) {
	w, clk := newTestWorld(t)
	w.AddPlayer("p1", "n", "a", ClassMage)
	eid := w.spawnEnemy(EnemyGoblin, 600, 600)
	w.mu.Lock()
	w.players["p1"].Health = 8
	_, e := w.findEnemy(eid)
	e.Health = 4
	w.mu.Unlock()
	w.DrainEvents()

	require.True(t, w.ApplyEffect("p1", EffectRequest{Type: EffectPoison, Strength: 2}))
	require.True(t, w.ApplyEffect(eid, EffectRequest{Type: EffectBleed}))

	clk.Advance(time.Second)
	w.UpdateEffects()

	p := w.player("p1")
	assert.Equal(t, 0, p.Health)
	assert.Equal(t, StateDead, p.State)
	assert.Nil(t, w.enemy(eid))
	assert.ElementsMatch(t, []EventType{EventPlayerDeath, EventEnemyKilled}, eventTypes(w.DrainEvents()))
}

func TestDeadPlayerReapedAfterGracePeriod(t *testing.T) {
	w, clk := newTestWorld(t)
	w.AddPlayer("p1", "n", "a", ClassArcher)
	w.mu.Lock()
	w.damagePlayerLocked(w.players["p1"], 90, clk.Now())
	w.mu.Unlock()
	w.DrainEvents()

	w.UpdateEffects()
	st := w.GetState()
	require.Contains(t, st.Players, PlayerID("p1"))
	assert.Equal(t, StateDead, st.Players["p1"].State)
	assert.Equal(t, 0, st.Players["p1"].Health)

	clk.Advance(DeathGracePeriod - time.Millisecond)
	w.UpdateEffects()
	assert.NotNil(t, w.player("p1"))

	clk.Advance(time.Millisecond)
	w.UpdateEffects()
	assert.Nil(t, w.player("p1"))
	assert.Equal(t, []EventType{EventPlayerLeft}, eventTypes(w.DrainEvents()))
}

func TestDeadPlayerRefusesActions(t *testing.T) {
	w, clk := newTestWorld(t)
	w.AddPlayer("p1", "n", "a", ClassWarrior)
	it := w.GenerateItem(ItemPotion, &Point{X: 110, Y: 100})
	eid := w.spawnEnemy(EnemyGoblin, 150, 100)
	w.mu.Lock()
	w.damagePlayerLocked(w.players["p1"], 1000, clk.Now())
	w.mu.Unlock()

	_, ok := w.PickupItem("p1", it.ID)
	assert.False(t, ok)
	_, ok = w.HealPlayer("p1", 50)
	assert.False(t, ok)
	_, ok = w.AddMana("p1", 50)
	assert.False(t, ok)
	assert.False(t, w.HandleEnemyAttack("p1", eid, 10, ""))
	assert.Equal(t, 0, w.player("p1").Health)
}

func TestMovementModifiers(t *testing.T) {
	now := time.Unix(100, 0)
	eff := func(typ EffectType) StatusEffect {
		return StatusEffect{Type: typ, Duration: 3 * time.Second, Strength: 1, Start: now}
	}

	assert.Equal(t, 1.0, moveFactor(nil, now))
	assert.Equal(t, 0.5, moveFactor([]StatusEffect{eff(EffectSlow)}, now))
	assert.Equal(t, 1.5, moveFactor([]StatusEffect{eff(EffectSpeed)}, now))
	assert.Equal(t, 0.75, moveFactor([]StatusEffect{eff(EffectSlow), eff(EffectSpeed)}, now))
	assert.Equal(t, 1.0, moveFactor([]StatusEffect{eff(EffectSlow)}, now.Add(3*time.Second)), "expired")
}

func TestIncomingDamageModifiers(t *testing.T) {
	now := time.Unix(100, 0)
	eff := func(typ EffectType) StatusEffect {
		return StatusEffect{Type: typ, Duration: 3 * time.Second, Strength: 1, Start: now}
	}

	tests := []struct {
		name    string
		effects []StatusEffect
		dmg     int
		want    int
	}{
		{name: "plain", dmg: 10, want: 10},
		{name: "negative", dmg: -5, want: 0},
		{name: "vulnerable", effects: []StatusEffect{eff(EffectVulnerability)}, dmg: 10, want: 15},
		{name: "resistant", effects: []StatusEffect{eff(EffectResistance)}, dmg: 9, want: 4},
		{name: "both", effects: []StatusEffect{eff(EffectVulnerability), eff(EffectResistance)}, dmg: 10, want: 7},
		{name: "unrelated effect", effects: []StatusEffect{eff(EffectStun)}, dmg: 10, want: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, incomingDamage(tt.effects, tt.dmg, now))
		})
	}
}
