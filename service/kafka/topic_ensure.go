package kafka

import (
	"errors"

	"github.com/Shopify/sarama"

	"PPGateway/logger"
	"PPGateway/tools/errs"
)

// EnsureTopic creates topic when it does not exist yet. An existing topic is
// left alone even when it has fewer partitions.
func EnsureTopic(admin sarama.ClusterAdmin, topic string, partitions int32, rf int16) error {
	if partitions <= 0 {
		partitions = 1
	}
	if rf <= 0 {
		rf = 1
	}
	descs, err := admin.DescribeTopics([]string{topic})
	if err == nil && len(descs) == 1 && errors.Is(descs[0].Err, sarama.ErrNoError) {
		logger.Infof("[Topic] exists: %s (partitions=%d)", topic, len(descs[0].Partitions))
		return nil
	}

	minISR := "1"
	if rf >= 3 {
		minISR = "2"
	}
	td := &sarama.TopicDetail{
		NumPartitions:     partitions,
		ReplicationFactor: rf,
		ConfigEntries: map[string]*string{
			"cleanup.policy":                 strPtr("delete"),
			"min.insync.replicas":            strPtr(minISR),
			"unclean.leader.election.enable": strPtr("false"),
			"compression.type":               strPtr("producer"),
		},
	}
	if err := admin.CreateTopic(topic, td, false); err != nil {
		var te *sarama.TopicError
		if errors.As(err, &te) && te.Err == sarama.ErrTopicAlreadyExists {
			logger.Infof("[Topic] exists (race): %s", topic)
			return nil
		}
		if errors.Is(err, sarama.ErrTopicAlreadyExists) {
			logger.Infof("[Topic] exists (race): %s", topic)
			return nil
		}
		return errs.ErrTransport.WrapMsg("create topic", "topic", topic, "err", err)
	}
	logger.Infof("[Topic] created: %s (partitions=%d, rf=%d)", topic, partitions, rf)
	return nil
}

func strPtr(s string) *string { return &s }
