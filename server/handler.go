package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultAttackDamage = 10
	defaultPotionAmount = 25
)

// Server 把 World、连接集合与事件出口组装在一起；进程启动时构造一次
type Server struct {
	cfg      *Config
	world    *World
	hub      *Hub
	events   EventSink
	metrics  *Metrics
	upgrader websocket.Upgrader
	newID    func() PlayerID
	sessions sync.WaitGroup
}

// NewServer 组装服务；events 为 nil 时不外发事件
func NewServer(cfg *Config, world *World, events EventSink, metrics *Metrics) *Server {
	if events == nil {
		events = nopSink{}
	}
	return &Server{
		cfg:     cfg,
		world:   world,
		hub:     NewHub(cfg.Server.MaxClients, metrics),
		events:  events,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 未做鉴权：允许所有来源
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		newID: func() PlayerID { return PlayerID(uuid.NewString()) },
	}
}

// Hub 在线连接集合
func (s *Server) Hub() *Hub { return s.hub }

// ListenTCP 监听行协议 TCP 端口，直到 ctx 取消
func (s *Server) ListenTCP(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve 在给定 listener 上接受连接，每个连接一个协程
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	Log.Infof("tcp server listening on %s", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				Log.Warnf("accept: %v", err)
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		s.sessions.Add(1)
		go func() {
			defer s.sessions.Done()
			s.serveWire(newTCPWire(conn), 0)
		}()
	}
}

// HandleWS WebSocket 接入，消息格式与 TCP 相同
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	if limit := s.cfg.Server.MaxClients; limit > 0 && s.hub.Count() >= limit {
		s.metrics.IncRejected()
		http.Error(w, ErrServerFull.Error(), http.StatusServiceUnavailable)
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnf("upgrade error: %v", err)
		return
	}
	s.sessions.Add(1)
	go func() {
		defer s.sessions.Done()
		s.serveWire(newWSWire(ws), wsPingInterval)
	}()
}

// Wait 等待所有连接的读写协程退出
func (s *Server) Wait() { s.sessions.Wait() }

// serveWire 注册连接、启动写协程，并在当前协程运行读循环
func (s *Server) serveWire(w wire, ping time.Duration) {
	conn := NewClientConn(w, s.cfg.Server.SendQueue, s.cfg.Server.WriteTimeout, ping, s.metrics)
	id := s.newID()
	if err := s.hub.Register(id, conn); err != nil {
		Log.Warnf("rejecting %s: %v", w.RemoteAddr(), err)
		conn.Close()
		return
	}
	Log.Infof("client %s connected from %s", id, w.RemoteAddr())

	sess := &session{id: id, conn: conn, srv: s}
	s.sessions.Add(1)
	go func() {
		defer s.sessions.Done()
		conn.writePump()
	}()
	sess.readLoop(w)
}

// session 单个连接的处理上下文
type session struct {
	id          PlayerID
	conn        *ClientConn
	srv         *Server
	cleanupOnce sync.Once
}

// readLoop 读取并分派消息；流结束或出错时清理（幂等）
func (s *session) readLoop(w wire) {
	defer s.cleanup()
	for {
		frame, err := w.ReadFrame()
		if errors.Is(err, ErrLineTooLong) {
			s.srv.metrics.IncProtocolErrors()
			Log.Warnf("oversized message from %s skipped", s.id)
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				Log.Debugf("read from %s: %v", s.id, err)
			}
			return
		}
		for _, line := range SplitLines(frame) {
			env, err := ParseEnvelope(line)
			if err != nil {
				s.srv.metrics.IncProtocolErrors()
				Log.Warnf("invalid message from %s: %v", s.id, err)
				continue
			}
			s.srv.metrics.IncMessagesIn()
			s.dispatch(env)
		}
	}
}

func (s *session) cleanup() {
	s.cleanupOnce.Do(func() {
		s.srv.world.RemovePlayer(s.id)
		s.srv.hub.Unregister(s.id)
		s.conn.Close()
		Log.Infof("client %s disconnected", s.id)
	})
}

type handlerFunc func(s *session, env Envelope) error

// handlers 按消息类型分派；只有请求/响应类消息会回复
var handlers = map[string]handlerFunc{
	MsgJoin:        (*session).handleJoin,
	MsgMove:        (*session).handleMove,
	MsgLeave:       (*session).handleLeave,
	MsgPickup:      (*session).handlePickup,
	MsgDrop:        (*session).handleDrop,
	MsgAttackEnemy: (*session).handleAttack,
	MsgUseItem:     (*session).handleUseItem,
	MsgUseSpecial:  (*session).handleUseSpecial,
}

func (s *session) dispatch(env Envelope) {
	h, ok := handlers[env.Type]
	if !ok {
		Log.Debugf("ignoring message type %q from %s", env.Type, s.id)
		return
	}
	if err := h(s, env); err != nil {
		s.srv.metrics.IncProtocolErrors()
		Log.Warnf("bad %s from %s: %v", env.Type, s.id, err)
	}
}

func (s *session) reply(typ string, data any) {
	b, err := EncodeMessage(typ, data)
	if err != nil {
		Log.Errorf("reply to %s: %v", s.id, err)
		return
	}
	s.conn.Enqueue(b)
}

func (s *session) handleJoin(env Envelope) error {
	d := JoinData{Name: "Anonymous", Avatar: "Default", HeroClass: string(ClassWarrior)}
	if err := env.DecodeData(&d); err != nil {
		return err
	}
	class := HeroClass(strings.ToLower(d.HeroClass))
	s.srv.world.AddPlayer(s.id, d.Name, d.Avatar, class)
	Log.Infof("player %s joined as %q (%s)", s.id, d.Name, class)

	s.reply(MsgJoinAck, JoinAck{PlayerID: s.id})
	s.reply(MsgMapData, s.srv.world.Map().Tiles())
	return nil
}

func (s *session) handleMove(env Envelope) error {
	var d MoveData
	if err := env.DecodeData(&d); err != nil {
		return err
	}
	dx, dy, ok := moveDelta(d)
	if !ok {
		return fmt.Errorf("unknown direction %q", d.Direction)
	}
	s.srv.world.MovePlayer(s.id, dx, dy)
	return nil
}

func (s *session) handleLeave(Envelope) error {
	s.srv.world.RemovePlayer(s.id)
	return nil
}

func (s *session) handlePickup(env Envelope) error {
	var d PickupData
	if err := env.DecodeData(&d); err != nil {
		return err
	}
	it, ok := s.srv.world.PickupItem(s.id, d.ItemID)
	s.reply(MsgPickupResult, PickupResult{Success: ok, ItemType: it.Type})
	return nil
}

func (s *session) handleDrop(env Envelope) error {
	var d DropData
	if err := env.DecodeData(&d); err != nil {
		return err
	}
	ok := d.ItemIndex != nil && s.srv.world.DropItem(s.id, *d.ItemIndex)
	s.reply(MsgDropResult, DropResult{Success: ok})
	return nil
}

func (s *session) handleAttack(env Envelope) error {
	var d AttackData
	if err := env.DecodeData(&d); err != nil {
		return err
	}
	dmg := amountOr(d.Damage, defaultAttackDamage)
	if s.srv.world.HandleEnemyAttack(s.id, d.EnemyID, dmg, EffectType(d.Effect)) {
		s.reply(MsgAttackResult, AttackResult{Success: true, EnemyID: d.EnemyID})
	} else {
		s.reply(MsgAttackResult, AttackResult{Success: false, Message: "Attack failed"})
	}
	return nil
}

func (s *session) handleUseItem(env Envelope) error {
	var d UseItemData
	if err := env.DecodeData(&d); err != nil {
		return err
	}
	switch ItemType(d.ItemType) {
	case ItemPotion:
		if health, ok := s.srv.world.HealPlayer(s.id, amountOr(d.HealAmount, defaultPotionAmount)); ok {
			s.reply(MsgHealthUpdate, HealthUpdate{PlayerID: s.id, Health: health, Source: "heal"})
		}
	case ItemManaPotion:
		if mana, ok := s.srv.world.AddMana(s.id, amountOr(d.ManaAmount, defaultPotionAmount)); ok {
			s.reply(MsgManaUpdate, ManaUpdate{PlayerID: s.id, Mana: mana})
		}
	default:
		Log.Debugf("use_item with unsupported type %q from %s", d.ItemType, s.id)
	}
	return nil
}

func (s *session) handleUseSpecial(env Envelope) error {
	var d SpecialData
	if err := env.DecodeData(&d); err != nil {
		return err
	}
	res := s.srv.world.UseSpecialAbility(s.id, d.Request())
	if !res.Success {
		Log.Debugf("special %q from %s failed: %s", d.Type, s.id, res.Message)
	}
	s.reply(MsgSpecialResult, res)
	return nil
}

func amountOr(v *float64, def int) int {
	if v == nil {
		return def
	}
	return toAmount(*v)
}
