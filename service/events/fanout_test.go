package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"PPGateway/service/chat"
	"PPGateway/tools/errs"
)

type memSink struct {
	mu     sync.Mutex
	got    []*Event
	err    error
	block  chan struct{}
	closed bool
}

func (s *memSink) Name() string { return "mem" }

func (s *memSink) Publish(_ context.Context, e *Event) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, e)
	return s.err
}

func (s *memSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *memSink) events() []*Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Event(nil), s.got...)
}

func TestFanoutDeliversToAllSinks(t *testing.T) {
	a, b := &memSink{}, &memSink{err: errs.New("down")}
	f := NewFanout(2, 16, a, b)
	for i := 0; i < 5; i++ {
		if !f.Emit(&Event{ID: "x", Action: "CHAT"}) {
			t.Fatal("emit dropped")
		}
	}
	f.Close()

	if len(a.events()) != 5 || len(b.events()) != 5 {
		t.Fatalf("a=%d b=%d", len(a.events()), len(b.events()))
	}
	if f.Failed() != 5 {
		t.Fatalf("failed=%d", f.Failed())
	}
	if !a.closed || !b.closed {
		t.Fatal("sinks not closed")
	}
	if f.Emit(&Event{}) {
		t.Fatal("emit after close accepted")
	}
	f.Close()
}

func TestFanoutDropsWhenFull(t *testing.T) {
	s := &memSink{block: make(chan struct{})}
	f := NewFanout(1, 1, s)

	accepted := 0
	for i := 0; i < 10; i++ {
		if f.Emit(&Event{ID: "x"}) {
			accepted++
		}
	}
	// one in the worker, one in the queue at most
	if accepted > 2 || f.Dropped() < 8 {
		t.Fatalf("accepted=%d dropped=%d", accepted, f.Dropped())
	}
	close(s.block)
	f.Close()
}

func TestFanoutNoSinks(t *testing.T) {
	f := NewFanout(1, 1)
	if f.Emit(&Event{}) {
		t.Fatal("emit without sinks")
	}
	f.Close()
}

func TestHook(t *testing.T) {
	s := &memSink{}
	f := NewFanout(1, 8, s)
	hook := f.Hook()
	hook(&chat.Message{
		Action:   chat.ActionChat,
		ConnID:   "c1",
		SenderID: "alice",
		Body:     chat.ChatBody{To: "bob", Payload: json.RawMessage(`{"text":"hi"}`)},
	})
	hook(&chat.Message{Action: chat.ActionSigned, ConnID: "c1", Body: chat.SignedBody{Refs: []string{"1"}}})

	deadline := time.Now().Add(2 * time.Second)
	for len(s.events()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	got := s.events()
	if len(got) != 2 {
		t.Fatalf("events=%d", len(got))
	}
	var chatEv, signedEv *Event
	for _, e := range got {
		switch e.Action {
		case "CHAT":
			chatEv = e
		case "SIGNED":
			signedEv = e
		}
	}
	if chatEv == nil || chatEv.To != "bob" || chatEv.Key() != "alice" || string(chatEv.Payload) != `{"text":"hi"}` {
		t.Fatalf("chat event = %+v", chatEv)
	}
	if signedEv == nil || len(signedEv.Refs) != 1 || signedEv.Key() != "c1" {
		t.Fatalf("signed event = %+v", signedEv)
	}
	f.Close()
}
