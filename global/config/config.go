package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"PPGateway/tools"
	"PPGateway/tools/decode"
	"PPGateway/tools/errs"
)

const NodeTypeMsgGateWay = "msgGateWay" // 网关节点

// Default 默认配置（可直接改）
func Default() GatewayConfig {
	return GatewayConfig{
		NodeType:        NodeTypeMsgGateWay,
		NodeID:          100,
		Port:            8080,
		Path:            "/ws",
		LogLevel:        "info",
		SendQueue:       256,
		MaxMessageSize:  64 * 1024,
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		WriteWait:       10 * time.Second,
		PongWait:        75 * time.Second,
		PingInterval:    25 * time.Second,
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "ppgateway",
		},
		Redis: RedisConfig{
			Addr:        "127.0.0.1:6379",
			PoolSize:    20,
			PresenceTTL: 300 * time.Second,
		},
		Nats: NatsConfig{
			Servers:       []string{"nats://127.0.0.1:4222"},
			Name:          "ppgateway",
			SubjectPrefix: "ppgateway.events",
		},
		Kafka: KafkaConfig{
			Brokers:           []string{"127.0.0.1:9092"},
			Topic:             "ppgateway_events",
			Version:           "2.1.0",
			Compression:       "snappy",
			EnsureTopic:       true,
			Partitions:        8,
			ReplicationFactor: 1,
		},
		Events: EventsConfig{
			Workers: 4,
			Queue:   4096,
		},
	}
}

// Load builds the config from defaults, the optional yaml file at path and
// PPGW_* environment variables, then validates it.
func Load(path string) (GatewayConfig, error) {
	conf := Default()
	if path != "" {
		if err := mergeFile(&conf, path); err != nil {
			return conf, err
		}
	}
	applyEnv(&conf)
	if err := conf.Validate(); err != nil {
		return conf, err
	}
	return conf, nil
}

func mergeFile(conf *GatewayConfig, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errs.ErrConfig.WrapMsg("read config file", "path", path, "err", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return errs.ErrConfig.WrapMsg("parse config file", "path", path, "err", err)
	}
	if len(raw) == 0 {
		return nil
	}
	// decoding into the defaults keeps every key the file leaves out
	if err := decode.Into(raw, conf, decode.WithTag("yaml")); err != nil {
		return errs.ErrConfig.WrapMsg("decode config file", "path", path, "err", err)
	}
	return nil
}

func applyEnv(conf *GatewayConfig) {
	conf.Port = tools.GetEnvInt("PPGW_PORT", conf.Port)
	conf.Path = tools.GetEnv("PPGW_PATH", conf.Path)
	conf.NodeID = int64(tools.GetEnvInt("PPGW_NODE_ID", int(conf.NodeID)))
	conf.LogLevel = tools.GetEnv("PPGW_LOG_LEVEL", conf.LogLevel)
	conf.BindPathID = tools.GetEnvBool("PPGW_BIND_PATH_ID", conf.BindPathID)
	conf.PongWait = tools.GetEnvDuration("PPGW_PONG_WAIT", conf.PongWait)
	conf.AllowedOrigins = tools.GetEnvList("PPGW_ALLOWED_ORIGINS", conf.AllowedOrigins)

	if addr := tools.GetEnv("PPGW_REDIS_ADDR", ""); addr != "" {
		conf.Redis.Enabled = true
		conf.Redis.Addr = addr
	}
	if servers := tools.GetEnvList("PPGW_NATS_SERVERS", nil); len(servers) > 0 {
		conf.Nats.Enabled = true
		conf.Nats.Servers = servers
	}
	if brokers := tools.GetEnvList("PPGW_KAFKA_BROKERS", nil); len(brokers) > 0 {
		conf.Kafka.Enabled = true
		conf.Kafka.Brokers = brokers
	}
}

func (c *GatewayConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return errs.ErrConfig.WrapMsg("port out of range", "port", c.Port)
	}
	if !strings.HasPrefix(c.Path, "/") {
		return errs.ErrConfig.WrapMsg("path must start with /", "path", c.Path)
	}
	if c.NodeID < 0 || c.NodeID > 1023 {
		return errs.ErrConfig.WrapMsg("nodeId out of range", "nodeId", c.NodeID)
	}
	if c.SendQueue <= 0 {
		return errs.ErrConfig.WrapMsg("sendQueue must be positive", "sendQueue", c.SendQueue)
	}
	if c.WriteWait <= 0 || c.PongWait <= 0 || c.PingInterval <= 0 {
		return errs.ErrConfig.WrapMsg("timeouts must be positive")
	}
	if c.PingInterval >= c.PongWait {
		return errs.ErrConfig.WrapMsg("pingInterval must be shorter than pongWait",
			"pingInterval", c.PingInterval, "pongWait", c.PongWait)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errs.ErrConfig.WrapMsg("redis enabled without addr")
	}
	if c.Nats.Enabled && len(c.Nats.Servers) == 0 {
		return errs.ErrConfig.WrapMsg("nats enabled without servers")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return errs.ErrConfig.WrapMsg("kafka enabled without brokers or topic")
	}
	return nil
}
