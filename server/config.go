package server

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 进程级配置：启动时加载一次，运行期间不再热更新
type Config struct {
	Server ServerConfig `yaml:"server" json:"server"`
	World  WorldConfig  `yaml:"world" json:"world"`
	Log    LogConfig    `yaml:"log" json:"log"`
	Events EventsConfig `yaml:"events" json:"events"`
}

// ServerConfig 网络与广播参数
type ServerConfig struct {
	Host              string        `yaml:"host" json:"host"`
	Port              int           `yaml:"port" json:"port"`
	HTTPAddr          string        `yaml:"http_addr" json:"http_addr"` // WebSocket + 监控接口，空则不启动
	MaxClients        int           `yaml:"max_clients" json:"max_clients"`
	BroadcastInterval time.Duration `yaml:"broadcast_interval" json:"broadcast_interval"`
	WriteTimeout      time.Duration `yaml:"write_timeout" json:"write_timeout"`
	SendQueue         int           `yaml:"send_queue" json:"send_queue"`
}

// WorldConfig 初始刷怪/刷物品数量与随机种子（0 表示按时间取种子）
type WorldConfig struct {
	Seed       int64 `yaml:"seed" json:"seed"`
	EnemyCount int   `yaml:"enemy_count" json:"enemy_count"`
	ItemCount  int   `yaml:"item_count" json:"item_count"`
}

// LogConfig 日志输出
type LogConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	Console    bool   `yaml:"console" json:"console"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days"`
}

// EventsConfig 游戏事件外发（NATS），URL 为空时不启用
type EventsConfig struct {
	NATSURL       string `yaml:"nats_url" json:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix" json:"subject_prefix"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "127.0.0.1",
			Port:              5555,
			HTTPAddr:          ":8080",
			MaxClients:        10,
			BroadcastInterval: 50 * time.Millisecond, // 20 TPS
			WriteTimeout:      5 * time.Second,
			SendQueue:         64,
		},
		World: WorldConfig{
			EnemyCount: 8,
			ItemCount:  11,
		},
		Log: LogConfig{
			Level:      "debug",
			File:       "app.log",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		Events: EventsConfig{
			SubjectPrefix: "pixelarena",
		},
	}
}

// LoadConfig 读取 YAML 配置文件；未出现的字段保留默认值
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查配置取值范围
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.MaxClients <= 0 {
		errs = append(errs, fmt.Errorf("server.max_clients must be positive: %d", c.Server.MaxClients))
	}
	if c.Server.BroadcastInterval <= 0 {
		errs = append(errs, fmt.Errorf("server.broadcast_interval must be positive: %s", c.Server.BroadcastInterval))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive: %s", c.Server.WriteTimeout))
	}
	if c.Server.SendQueue <= 0 {
		errs = append(errs, fmt.Errorf("server.send_queue must be positive: %d", c.Server.SendQueue))
	}
	if c.World.EnemyCount < 0 || c.World.ItemCount < 0 {
		errs = append(errs, errors.New("world counts must not be negative"))
	}
	return errors.Join(errs...)
}

// ListenAddr TCP 监听地址 host:port
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
