package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// EventType 游戏事件类型
type EventType string

const (
	EventPlayerJoined EventType = "player_joined"
	EventPlayerLeft   EventType = "player_left"
	EventPlayerDeath  EventType = "player_death"
	EventEnemyKilled  EventType = "enemy_killed"
)

// Event 世界在锁内产生、广播循环在锁外分发的事件
type Event struct {
	Type     EventType `json:"type"`
	PlayerID PlayerID  `json:"player_id,omitempty"`
	EnemyID  string    `json:"enemy_id,omitempty"`
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	At       time.Time `json:"at"`
}

// EventSink 游戏事件的外部出口
type EventSink interface {
	Publish(ev Event) error
	Close()
}

type nopSink struct{}

func (nopSink) Publish(Event) error { return nil }
func (nopSink) Close()              {}

// NewEventSink 配置了 NATS 地址时连接 NATS，否则返回空实现
func NewEventSink(cfg EventsConfig) (EventSink, error) {
	if cfg.NATSURL == "" {
		return nopSink{}, nil
	}
	conn, err := nats.Connect(
		cfg.NATSURL,
		nats.Name("pixelarena"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				Log.Warnf("nats disconnected: %v", err)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.NATSURL, err)
	}
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "pixelarena"
	}
	Log.Infof("publishing game events to %s (prefix %s)", cfg.NATSURL, prefix)
	return &natsSink{conn: conn, prefix: prefix}, nil
}

// natsSink 每类事件一个 subject：<prefix>.events.<type>
type natsSink struct {
	conn   *nats.Conn
	prefix string
}

func (s *natsSink) Publish(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.conn.Publish(eventSubject(s.prefix, ev.Type), data)
}

func (s *natsSink) Close() {
	if err := s.conn.Drain(); err != nil {
		Log.Warnf("nats drain: %v", err)
	}
}

func eventSubject(prefix string, t EventType) string {
	return prefix + ".events." + string(t)
}
