package global

import (
	"flag"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"PPGateway/global/config"
	"PPGateway/logger"
	"PPGateway/service/events"
	ka "PPGateway/service/kafka"
	"PPGateway/service/natsx"
	"PPGateway/service/storage"
	redis "PPGateway/service/storage/redis"
	"PPGateway/tools/ids"
)

// ConfigIds 配置雪花节点号
func ConfigIds(conf config.GatewayConfig) {
	ids.SetNodeID(conf.NodeID)
}

// ConfigLogger applies the log level to zap and sends glog to stderr.
func ConfigLogger(conf config.GatewayConfig) {
	logger.SetLevel(conf.LogLevel)
	_ = flag.Set("logtostderr", "true")
}

// ConfigRedis connects the presence store; nil when redis is disabled.
func ConfigRedis(conf config.GatewayConfig) (*storage.PresenceStore, *goredis.Client, error) {
	if !conf.Redis.Enabled {
		return nil, nil, nil
	}
	rdb, err := redis.NewClient(conf.Redis)
	if err != nil {
		return nil, nil, err
	}
	node := strconv.FormatInt(conf.NodeID, 10)
	return storage.NewPresenceStore(rdb, node, conf.Redis.PresenceTTL), rdb, nil
}

// ConfigNats returns the NATS event sink; nil when nats is disabled.
func ConfigNats(conf config.GatewayConfig) (events.Sink, error) {
	if !conf.Nats.Enabled {
		return nil, nil
	}
	c, err := natsx.NewNatsxClient(natsx.ConfigFrom(conf.Nats))
	if err != nil {
		return nil, err
	}
	return natsx.NewSink(c, conf.Nats.SubjectPrefix), nil
}

// ConfigKafka 创建 topic（可选）并返回 Kafka 事件 sink; 未开启时返回 nil
func ConfigKafka(conf config.GatewayConfig) (events.Sink, error) {
	kc := conf.Kafka
	if !kc.Enabled {
		return nil, nil
	}
	if kc.EnsureTopic {
		admin, err := ka.NewClusterAdmin(kc)
		if err != nil {
			return nil, err
		}
		err = ka.EnsureTopic(admin, kc.Topic, kc.Partitions, kc.ReplicationFactor)
		_ = admin.Close()
		if err != nil {
			return nil, err
		}
	}
	p, err := ka.NewSyncProducer(kc)
	if err != nil {
		return nil, err
	}
	logger.Infof("[Kafka] producer ready brokers=%v topic=%s", kc.Brokers, kc.Topic)
	return ka.NewSink(p, kc.Topic), nil
}

// ConfigEvents builds the fan-out over every enabled sink; nil when none is.
func ConfigEvents(conf config.GatewayConfig) (*events.Fanout, error) {
	var sinks []events.Sink
	closeAll := func() {
		for _, s := range sinks {
			_ = s.Close()
		}
	}

	for _, build := range []func(config.GatewayConfig) (events.Sink, error){ConfigNats, ConfigKafka} {
		s, err := build(conf)
		if err != nil {
			closeAll()
			return nil, err
		}
		if s != nil {
			sinks = append(sinks, s)
		}
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	return events.NewFanout(conf.Events.Workers, conf.Events.Queue, sinks...), nil
}
