package server

import (
	"context"
	"time"
)

// RunBroadcastLoop 固定间隔推进世界并向所有连接推送完整快照，直到 ctx 取消
func (s *Server) RunBroadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Server.BroadcastInterval)
	defer ticker.Stop()
	Log.Infof("broadcast loop started: interval=%s", s.cfg.Server.BroadcastInterval)

	for {
		select {
		case <-ctx.Done():
			Log.Info("broadcast loop stopped")
			return
		case <-ticker.C:
			s.Step()
		}
	}
}

// Step 一次 Tick：敌人 AI → 效果结算 → 分发事件 → 快照广播。
// 单个 Tick 内的 panic 被记录并吞掉，循环继续运行。
func (s *Server) Step() {
	defer func() {
		if r := recover(); r != nil {
			Log.Errorf("tick panic recovered: %v", r)
		}
	}()

	start := time.Now()
	s.world.UpdateEnemies()
	s.world.UpdateEffects()

	for _, ev := range s.world.DrainEvents() {
		if ev.Type == EventPlayerDeath {
			if b, err := EncodeMessage(MsgPlayerDeath, PlayerDeath{PlayerID: ev.PlayerID}); err == nil {
				s.hub.Broadcast(b)
			}
		}
		if err := s.events.Publish(ev); err != nil {
			Log.Warnf("publish %s event: %v", ev.Type, err)
		}
	}

	b, err := EncodeMessage(MsgUpdateState, s.world.GetState())
	if err != nil {
		Log.Errorf("encode snapshot: %v", err)
		return
	}
	s.hub.Broadcast(b)
	s.metrics.AddTick(time.Since(start).Nanoseconds())
}
