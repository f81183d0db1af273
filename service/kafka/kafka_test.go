package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"

	"PPGateway/global/config"
	"PPGateway/service/events"
	"PPGateway/tools/errs"
)

func TestBuildConfig(t *testing.T) {
	cfg, err := BuildConfig(config.KafkaConfig{Version: "2.8.0", Compression: "lz4"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Producer.Compression != sarama.CompressionLZ4 || !cfg.Version.IsAtLeast(sarama.V2_8_0_0) {
		t.Fatalf("compression=%v version=%v", cfg.Producer.Compression, cfg.Version)
	}
	if !cfg.Producer.Return.Successes {
		t.Fatal("sync producer needs Return.Successes")
	}

	for _, bad := range []config.KafkaConfig{{Version: "banana"}, {Compression: "gzipper"}} {
		if _, err := BuildConfig(bad); !errs.Is(err, &errs.ErrConfig) {
			t.Fatalf("%+v: err=%v", bad, err)
		}
	}
}

func TestSinkPublish(t *testing.T) {
	p := mocks.NewSyncProducer(t, nil)
	p.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var back events.Event
		if err := json.Unmarshal(val, &back); err != nil {
			return err
		}
		if back.To != "bob" {
			return errors.New("unexpected recipient " + back.To)
		}
		return nil
	})

	s := NewSink(p, "ppgateway_events")
	e := &events.Event{ID: "7", Action: "CHAT", ConnID: "c1", SenderID: "alice", To: "bob"}
	if err := s.Publish(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestBuildMessage(t *testing.T) {
	s := NewSink(nil, "ppgateway_events")
	m, err := s.buildMessage(&events.Event{ID: "7", Action: "CHAT", ConnID: "c1", SenderID: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if m.Topic != "ppgateway_events" {
		t.Fatalf("topic=%s", m.Topic)
	}
	key, _ := m.Key.Encode()
	if string(key) != "alice" {
		t.Fatalf("key=%s", key)
	}
	if len(m.Headers) != 4 {
		t.Fatalf("headers=%d", len(m.Headers))
	}

	m, _ = s.buildMessage(&events.Event{ID: "8", Action: "SIGNED", ConnID: "c2"})
	if key, _ := m.Key.Encode(); string(key) != "c2" {
		t.Fatalf("anonymous key=%s", key)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSinkPublishFailure(t *testing.T) {
	p := mocks.NewSyncProducer(t, nil)
	p.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	s := NewSink(p, "t")
	err := s.Publish(context.Background(), &events.Event{ID: "1", Action: "SIGNED", ConnID: "c"})
	if !errs.Is(err, &errs.ErrTransport) {
		t.Fatalf("err=%v", err)
	}
	_ = s.Close()
}

func TestSinkCancelled(t *testing.T) {
	p := mocks.NewSyncProducer(t, nil)
	s := NewSink(p, "t")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Publish(ctx, &events.Event{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
	_ = s.Close()
}

// fakeAdmin implements only what EnsureTopic calls.
type fakeAdmin struct {
	sarama.ClusterAdmin
	exists    bool
	createErr error
	created   *sarama.TopicDetail
}

func (f *fakeAdmin) DescribeTopics(topics []string) ([]*sarama.TopicMetadata, error) {
	if f.exists {
		return []*sarama.TopicMetadata{{Name: topics[0], Err: sarama.ErrNoError}}, nil
	}
	return []*sarama.TopicMetadata{{Name: topics[0], Err: sarama.ErrUnknownTopicOrPartition}}, nil
}

func (f *fakeAdmin) CreateTopic(_ string, d *sarama.TopicDetail, _ bool) error {
	f.created = d
	return f.createErr
}

func TestEnsureTopic(t *testing.T) {
	a := &fakeAdmin{exists: true}
	if err := EnsureTopic(a, "t", 8, 1); err != nil || a.created != nil {
		t.Fatalf("existing topic: err=%v created=%v", err, a.created)
	}

	a = &fakeAdmin{}
	if err := EnsureTopic(a, "t", 8, 3); err != nil {
		t.Fatal(err)
	}
	if a.created.NumPartitions != 8 || *a.created.ConfigEntries["min.insync.replicas"] != "2" {
		t.Fatalf("detail=%+v", a.created)
	}

	a = &fakeAdmin{createErr: &sarama.TopicError{Err: sarama.ErrTopicAlreadyExists}}
	if err := EnsureTopic(a, "t", 1, 1); err != nil {
		t.Fatalf("race: %v", err)
	}

	a = &fakeAdmin{createErr: sarama.ErrClusterAuthorizationFailed}
	if err := EnsureTopic(a, "t", 1, 1); !errs.Is(err, &errs.ErrTransport) {
		t.Fatalf("err=%v", err)
	}
}
