package kafka

import (
	"strings"
	"time"

	"github.com/Shopify/sarama"

	"PPGateway/global/config"
	"PPGateway/tools/errs"
)

// BuildConfig turns the gateway kafka section into a sarama config for a
// sync producer keyed by sender.
func BuildConfig(c config.KafkaConfig) (*sarama.Config, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = "ppgateway"

	cfg.Version = sarama.V2_1_0_0
	if c.Version != "" {
		v, err := sarama.ParseKafkaVersion(c.Version)
		if err != nil {
			return nil, errs.ErrConfig.WrapMsg("kafka version", "version", c.Version, "err", err)
		}
		cfg.Version = v
	}

	// Producer
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 1
	cfg.Producer.Partitioner = sarama.NewHashPartitioner // ★ Key 控制分区, 同一用户的事件有序
	switch strings.ToLower(c.Compression) {
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	case "", "none":
		cfg.Producer.Compression = sarama.CompressionNone
	default:
		return nil, errs.ErrConfig.WrapMsg("kafka compression", "compression", c.Compression)
	}

	// Net
	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second

	if err := cfg.Validate(); err != nil {
		return nil, errs.ErrConfig.WrapMsg("kafka config", "err", err)
	}
	return cfg, nil
}

// NewSyncProducer connects to the brokers of c.
func NewSyncProducer(c config.KafkaConfig) (sarama.SyncProducer, error) {
	cfg, err := BuildConfig(c)
	if err != nil {
		return nil, err
	}
	p, err := sarama.NewSyncProducer(c.Brokers, cfg)
	if err != nil {
		return nil, errs.ErrTransport.WrapMsg("kafka producer", "brokers", c.Brokers, "err", err)
	}
	return p, nil
}

// NewClusterAdmin is used at startup to make sure the event topic exists.
func NewClusterAdmin(c config.KafkaConfig) (sarama.ClusterAdmin, error) {
	cfg, err := BuildConfig(c)
	if err != nil {
		return nil, err
	}
	admin, err := sarama.NewClusterAdmin(c.Brokers, cfg)
	if err != nil {
		return nil, errs.ErrTransport.WrapMsg("kafka admin", "brokers", c.Brokers, "err", err)
	}
	return admin, nil
}
