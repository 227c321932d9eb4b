package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// 入站消息类型（客户端 → 服务端）
const (
	MsgJoin        = "join"
	MsgMove        = "move"
	MsgLeave       = "leave"
	MsgPickup      = "pickup"
	MsgDrop        = "drop"
	MsgAttackEnemy = "attack_enemy"
	MsgUseItem     = "use_item"
	MsgUseSpecial  = "use_special"
)

// 出站消息类型（服务端 → 客户端）
const (
	MsgJoinAck       = "join_ack"
	MsgMapData       = "map_data"
	MsgUpdateState   = "update_state"
	MsgPickupResult  = "pickup_result"
	MsgDropResult    = "drop_result"
	MsgAttackResult  = "attack_result"
	MsgHealthUpdate  = "health_update"
	MsgManaUpdate    = "mana_update"
	MsgSpecialResult = "special_result"
	MsgPlayerDeath   = "player_death"
)

// MaxLineBytes 单条消息上限（1MB）
const MaxLineBytes = 1 << 20

// ErrLineTooLong 单行超过 MaxLineBytes；该行被整体丢弃，连接保持
var ErrLineTooLong = errors.New("line exceeds max message size")

// maxAmount 客户端提交的伤害/回复量上限
const maxAmount = math.MaxInt32

// toAmount 客户端数值转为非负整数：NaN 与非正数为 0，超过上限截断
func toAmount(v float64) int {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= maxAmount {
		return maxAmount
	}
	return int(v)
}

// Envelope 线上格式：{"type": ..., "data": {...}}，以 \n 结尾
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ParseEnvelope 解析一行消息；缺少 type 视为协议错误
func ParseEnvelope(line []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return env, fmt.Errorf("message without type")
	}
	return env, nil
}

// DecodeData 解析 data 字段；data 缺省或为 null 时保留 v 的默认值
func (e Envelope) DecodeData(v any) error {
	trimmed := bytes.TrimSpace(e.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("decode %s data: %w", e.Type, err)
	}
	return nil
}

// EncodeMessage 序列化一条出站消息并追加换行
func EncodeMessage(typ string, data any) ([]byte, error) {
	b, err := json.Marshal(struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{Type: typ, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", typ, err)
	}
	return append(b, '\n'), nil
}

// SplitLines 按 \n 切分，丢弃空片段（一次读取可能包含多条消息）
func SplitLines(buf []byte) [][]byte {
	var out [][]byte
	for _, part := range bytes.Split(buf, []byte{'\n'}) {
		part = bytes.TrimSpace(part)
		if len(part) > 0 {
			out = append(out, part)
		}
	}
	return out
}

// 入站载荷

type JoinData struct {
	Name      string `json:"name"`
	Avatar    string `json:"avatar"`
	HeroClass string `json:"hero_class"`
}

type MoveData struct {
	Direction string   `json:"direction"`
	Speed     *float64 `json:"speed"`
}

type PickupData struct {
	ItemID string `json:"item_id"`
}

type DropData struct {
	ItemIndex *int `json:"item_index"`
}

type AttackData struct {
	EnemyID string   `json:"enemy_id"`
	Damage  *float64 `json:"damage"`
	Effect  string   `json:"effect"`
}

type UseItemData struct {
	ItemType   string   `json:"item_type"`
	HealAmount *float64 `json:"heal_amount"`
	ManaAmount *float64 `json:"mana_amount"`
}

type SpecialData struct {
	Type    string   `json:"type"`
	Enemies []string `json:"enemies"`
	Damage  *float64 `json:"damage"`
	TargetX float64  `json:"target_x"`
	TargetY float64  `json:"target_y"`
	Radius  *float64 `json:"radius"`
}

// Request 转为世界层的技能请求
func (d SpecialData) Request() AbilityRequest {
	req := AbilityRequest{
		Type:    AbilityType(strings.ToLower(d.Type)),
		Enemies: d.Enemies,
		TargetX: d.TargetX,
		TargetY: d.TargetY,
		Radius:  d.Radius,
	}
	if d.Damage != nil {
		dmg := toAmount(*d.Damage)
		req.Damage = &dmg
	}
	return req
}

// 出站载荷

type JoinAck struct {
	PlayerID PlayerID `json:"player_id"`
}

type PickupResult struct {
	Success  bool     `json:"success"`
	ItemType ItemType `json:"item_type,omitempty"`
}

type DropResult struct {
	Success bool `json:"success"`
}

type AttackResult struct {
	Success bool   `json:"success"`
	EnemyID string `json:"enemy_id,omitempty"`
	Message string `json:"message,omitempty"`
}

type HealthUpdate struct {
	PlayerID PlayerID `json:"player_id"`
	Health   int      `json:"health"`
	Source   string   `json:"source"`
}

type ManaUpdate struct {
	PlayerID PlayerID `json:"player_id"`
	Mana     int      `json:"mana"`
}

type PlayerDeath struct {
	PlayerID PlayerID `json:"player_id"`
}

const defaultMoveSpeed = 5.0

// moveDelta 方向 + 速度 → 位移；未知方向返回 ok=false
func moveDelta(d MoveData) (dx, dy float64, ok bool) {
	speed := defaultMoveSpeed
	if d.Speed != nil {
		speed = *d.Speed
	}
	switch strings.ToLower(d.Direction) {
	case "up":
		return 0, -speed, true
	case "down":
		return 0, speed, true
	case "left":
		return -speed, 0, true
	case "right":
		return speed, 0, true
	default:
		return 0, 0, false
	}
}
