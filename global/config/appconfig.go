package config

import "time"

// GatewayConfig 网关进程配置
type GatewayConfig struct {
	NodeType string `yaml:"nodeType"`
	NodeID   int64  `yaml:"nodeId"` // 雪花节点号 0~1023
	Port     int    `yaml:"port"`   // http/ws 启动端口
	Path     string `yaml:"path"`   // 升级路径，同时挂载 <path>/:id
	LogLevel string `yaml:"logLevel"`

	// 把路径里的 id 直接当作 userId 绑定（默认关闭，userId 由 CONNECT 下发）
	BindPathID bool `yaml:"bindPathId"`

	SendQueue       int           `yaml:"sendQueue"`      // 每连接发送队列长度
	MaxMessageSize  int64         `yaml:"maxMessageSize"` // 单帧最大字节
	ReadBufferSize  int           `yaml:"readBufferSize"`
	WriteBufferSize int           `yaml:"writeBufferSize"`
	WriteWait       time.Duration `yaml:"writeWait"`
	PongWait        time.Duration `yaml:"pongWait"` // 读空闲超时
	PingInterval    time.Duration `yaml:"pingInterval"`
	AllowedOrigins  []string      `yaml:"allowedOrigins"` // 为空则放行所有 Origin

	Metrics MetricsConfig `yaml:"metrics"`
	Redis   RedisConfig   `yaml:"redis"`
	Nats    NatsConfig    `yaml:"nats"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Events  EventsConfig  `yaml:"events"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// RedisConfig presence 存储
type RedisConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	PoolSize    int           `yaml:"poolSize"`
	PresenceTTL time.Duration `yaml:"presenceTTL"`
}

// NatsConfig CHAT/SIGNED 事件发布
type NatsConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Servers       []string `yaml:"servers"`
	Name          string   `yaml:"name"`
	User          string   `yaml:"user"`
	Password      string   `yaml:"password"`
	SubjectPrefix string   `yaml:"subjectPrefix"`
}

type KafkaConfig struct {
	Enabled           bool     `yaml:"enabled"`
	Brokers           []string `yaml:"brokers"`
	Topic             string   `yaml:"topic"`
	Version           string   `yaml:"version"`
	Compression       string   `yaml:"compression"` // none/snappy/lz4/zstd
	EnsureTopic       bool     `yaml:"ensureTopic"` // 启动时不存在就创建
	Partitions        int32    `yaml:"partitions"`
	ReplicationFactor int16    `yaml:"replicationFactor"` // 单机=1；生产=3
}

// EventsConfig 事件分发 worker
type EventsConfig struct {
	Workers int `yaml:"workers"`
	Queue   int `yaml:"queue"`
}
