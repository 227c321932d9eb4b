package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pixelarena/server"
)

// pixelarena 入口：加载配置 → 初始化日志 → 构建世界 → 启动 TCP / WebSocket 与广播循环
func main() {
	var (
		configPath string
		port       int
		httpAddr   string
	)
	flag.StringVar(&configPath, "config", "", "path to YAML config (defaults are used when empty)")
	flag.IntVar(&port, "port", 0, "override server.port")
	flag.StringVar(&httpAddr, "http", "", "override server.http_addr, e.g. :8080")
	flag.Parse()

	if err := run(configPath, port, httpAddr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string, port int, httpAddr string) error {
	cfg := server.DefaultConfig()
	if configPath != "" {
		loaded, err := server.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if httpAddr != "" {
		cfg.Server.HTTPAddr = httpAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// 使用 zap 日志写入文件（带滚动）
	if err := server.InitLogger(cfg.Log); err != nil {
		return err
	}
	defer server.SyncLogger()

	gm, err := server.NewGameMap(server.DefaultLayout, server.TileSize)
	if err != nil {
		return err
	}
	metrics := &server.Metrics{}
	world := server.NewWorld(gm, cfg.World, metrics)

	events, err := server.NewEventSink(cfg.Events)
	if err != nil {
		return err
	}
	defer events.Close()

	srv := server.NewServer(cfg, world, events, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go srv.RunBroadcastLoop(ctx)

	var httpSrv *http.Server
	if cfg.Server.HTTPAddr != "" {
		httpSrv = &http.Server{Addr: cfg.Server.HTTPAddr, Handler: srv.Routes(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			server.Log.Infof("http (ws/metrics) listening on %s", cfg.Server.HTTPAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				server.Log.Errorf("http listen: %v", err)
				stop()
			}
		}()
	}

	tcpErr := srv.ListenTCP(ctx)
	stop()

	// 优雅退出（Ctrl+C）
	server.Log.Info("Shutting down...")
	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}
	srv.Hub().CloseAll()
	srv.Wait()
	return tcpErr
}
