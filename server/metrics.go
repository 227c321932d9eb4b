package server

import (
	"sync/atomic"
)

// Metrics 记录服务运行期的关键指标（用于监控与调试）；nil 接收者安全
type Metrics struct {
	TickCount        int64 // 广播 Tick 次数
	TotalTickNs      int64 // Tick 累计耗时（纳秒）
	MessagesIn       int64 // 成功解析的入站消息
	ProtocolErrors   int64 // 无法解析而跳过的片段
	SendDropped      int64 // 发送队列满被丢弃的帧
	ClientsAccepted  int64 // 接入的连接
	ClientsRejected  int64 // 因人数上限被拒绝的连接
	ClientsConnected int64 // 当前在线连接
	EnemiesKilled    int64
	PlayerDeaths     int64
}

// add 调用方负责 nil 检查（取 nil 指针字段地址会 panic）
func (m *Metrics) add(p *int64, d int64) {
	atomic.AddInt64(p, d)
}

func (m *Metrics) IncMessagesIn() {
	if m != nil {
		m.add(&m.MessagesIn, 1)
	}
}

func (m *Metrics) IncProtocolErrors() {
	if m != nil {
		m.add(&m.ProtocolErrors, 1)
	}
}

func (m *Metrics) IncSendDropped() {
	if m != nil {
		m.add(&m.SendDropped, 1)
	}
}

func (m *Metrics) IncEnemiesKilled() {
	if m != nil {
		m.add(&m.EnemiesKilled, 1)
	}
}

func (m *Metrics) IncPlayerDeaths() {
	if m != nil {
		m.add(&m.PlayerDeaths, 1)
	}
}

func (m *Metrics) IncRejected() {
	if m != nil {
		m.add(&m.ClientsRejected, 1)
	}
}

// ClientConnected 接入时 +1，断开时 -1
func (m *Metrics) ClientConnected(delta int64) {
	if m == nil {
		return
	}
	if delta > 0 {
		m.add(&m.ClientsAccepted, delta)
	}
	m.add(&m.ClientsConnected, delta)
}

func (m *Metrics) AddTick(ns int64) {
	if m == nil {
		return
	}
	m.add(&m.TickCount, 1)
	m.add(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	if m == nil {
		return map[string]any{}
	}
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":        tick,
		"avg_tick_ms":       avgMs,
		"messages_in":       atomic.LoadInt64(&m.MessagesIn),
		"protocol_errors":   atomic.LoadInt64(&m.ProtocolErrors),
		"send_dropped":      atomic.LoadInt64(&m.SendDropped),
		"clients_accepted":  atomic.LoadInt64(&m.ClientsAccepted),
		"clients_rejected":  atomic.LoadInt64(&m.ClientsRejected),
		"clients_connected": atomic.LoadInt64(&m.ClientsConnected),
		"enemies_killed":    atomic.LoadInt64(&m.EnemiesKilled),
		"player_deaths":     atomic.LoadInt64(&m.PlayerDeaths),
	}
}
