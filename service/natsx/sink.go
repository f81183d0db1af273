package natsx

import (
	"context"

	"github.com/nats-io/nats.go"

	"PPGateway/service/events"
	"PPGateway/tools/errs"
)

// Publisher is the part of *nats.Conn the sink needs.
type Publisher interface {
	PublishMsg(m *nats.Msg) error
}

// Sink publishes gateway events as core NATS messages on
// <prefix>.<action>, e.g. ppgateway.events.chat.
type Sink struct {
	pub    Publisher
	prefix string
	close  func() error
}

// NewSink publishes through an established client and drains it on Close.
func NewSink(c *NatsxClient, prefix string) *Sink {
	return &Sink{pub: c.Conn(), prefix: prefix, close: c.Close}
}

// NewSinkWith publishes through any Publisher; Close is a no-op.
func NewSinkWith(pub Publisher, prefix string) *Sink {
	return &Sink{pub: pub, prefix: prefix}
}

func (s *Sink) Name() string { return "nats" }

func (s *Sink) Publish(ctx context.Context, e *events.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := buildMsg(e, s.prefix)
	if err != nil {
		return err
	}
	if err := s.pub.PublishMsg(msg); err != nil {
		return errs.ErrTransport.WrapMsg("nats publish", "subject", msg.Subject, "err", err)
	}
	return nil
}

func (s *Sink) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func buildMsg(e *events.Event, prefix string) (*nats.Msg, error) {
	data, err := e.Marshal()
	if err != nil {
		return nil, errs.WrapMsg(err, "marshal event", "id", e.ID)
	}
	// 用 NewMsg 构造, header 已初始化
	msg := nats.NewMsg(e.Subject(prefix))
	msg.Data = data
	for k, v := range e.Headers() {
		msg.Header.Set(k, v)
	}
	return msg, nil
}
