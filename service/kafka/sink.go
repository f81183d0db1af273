package kafka

import (
	"context"

	"github.com/Shopify/sarama"

	"PPGateway/service/events"
	"PPGateway/tools/errs"
)

// Sink writes every gateway event to one topic, keyed by Event.Key so a
// user's events land on one partition.
type Sink struct {
	producer sarama.SyncProducer
	topic    string
}

func NewSink(p sarama.SyncProducer, topic string) *Sink {
	return &Sink{producer: p, topic: topic}
}

func (s *Sink) Name() string { return "kafka" }

func (s *Sink) Publish(ctx context.Context, e *events.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := s.buildMessage(e)
	if err != nil {
		return err
	}
	if _, _, err := s.producer.SendMessage(msg); err != nil {
		return errs.ErrTransport.WrapMsg("kafka send", "topic", s.topic, "id", e.ID, "err", err)
	}
	return nil
}

func (s *Sink) buildMessage(e *events.Event) (*sarama.ProducerMessage, error) {
	data, err := e.Marshal()
	if err != nil {
		return nil, errs.WrapMsg(err, "marshal event", "id", e.ID)
	}
	hdr := e.Headers()
	headers := make([]sarama.RecordHeader, 0, len(hdr))
	for k, v := range hdr {
		headers = append(headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	return &sarama.ProducerMessage{
		Topic:   s.topic,
		Key:     sarama.StringEncoder(e.Key()),
		Value:   sarama.ByteEncoder(data),
		Headers: headers,
	}, nil
}

func (s *Sink) Close() error {
	if s.producer == nil {
		return nil
	}
	return s.producer.Close()
}
