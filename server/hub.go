package server

import (
	"errors"
	"sync"
)

// ErrServerFull 在线连接数已达上限
var ErrServerFull = errors.New("server full")

// Hub 管理在线连接集合：注册/注销/扇出。自带读写锁，持锁期间不会访问 World。
type Hub struct {
	mu      sync.RWMutex
	clients map[PlayerID]*ClientConn
	limit   int
	metrics *Metrics
}

// NewHub 创建连接集合；limit <= 0 表示不限
func NewHub(limit int, metrics *Metrics) *Hub {
	return &Hub{clients: make(map[PlayerID]*ClientConn), limit: limit, metrics: metrics}
}

// Register 加入广播集合；超过上限返回 ErrServerFull
func (h *Hub) Register(id PlayerID, c *ClientConn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.limit > 0 && len(h.clients) >= h.limit {
		h.metrics.IncRejected()
		return ErrServerFull
	}
	h.clients[id] = c
	h.metrics.ClientConnected(1)
	return nil
}

// Unregister 移出广播集合；重复调用无副作用
func (h *Hub) Unregister(id PlayerID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[id]; ok {
		delete(h.clients, id)
		h.metrics.ClientConnected(-1)
	}
}

// Broadcast 尽力投递到每个连接的发送队列，返回成功入队的数量
func (h *Hub) Broadcast(b []byte) int {
	h.mu.RLock()
	targets := make([]*ClientConn, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if c.Enqueue(b) {
			sent++
		}
	}
	return sent
}

// Count 当前在线连接数
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll 关闭全部连接（进程退出时）
func (h *Hub) CloseAll() {
	h.mu.RLock()
	targets := make([]*ClientConn, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	for _, c := range targets {
		c.Close()
	}
}
