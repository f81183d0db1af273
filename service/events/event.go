package events

import (
	"encoding/json"
	"strings"
	"time"

	"PPGateway/service/chat"
	"PPGateway/tools/ids"
)

// Event is what the gateway publishes for CHAT and SIGNED frames. It is a
// notification only; nothing is stored or retried.
type Event struct {
	ID       string          `json:"id"`
	Action   string          `json:"action"`
	ConnID   string          `json:"connId"`
	SenderID string          `json:"senderId,omitempty"`
	To       string          `json:"to,omitempty"`
	Refs     []string        `json:"refs,omitempty"`
	Extend   string          `json:"extend,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Node     int64           `json:"node"`
	Ts       int64           `json:"ts"`
}

// FromMessage copies the routing fields of m into a new Event.
func FromMessage(m *chat.Message) *Event {
	id := ids.Generate()
	e := &Event{
		ID:       ids.FormatID(id),
		Action:   string(m.Action),
		ConnID:   m.ConnID,
		SenderID: m.SenderID,
		Extend:   m.Extend,
		Node:     ids.NodeOf(id),
		Ts:       time.Now().UnixMilli(),
	}
	switch b := m.Body.(type) {
	case chat.ChatBody:
		e.To = b.To
		e.Payload = b.Payload
	case chat.SignedBody:
		e.Refs = b.Refs
	}
	return e
}

// Key is the partition/ordering key: the sender when known, else the connection.
func (e *Event) Key() string {
	if e.SenderID != "" {
		return e.SenderID
	}
	return e.ConnID
}

// Subject is prefix + "." + lower(action), e.g. "ppgateway.events.chat".
func (e *Event) Subject(prefix string) string {
	a := strings.ToLower(e.Action)
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		return a
	}
	return prefix + "." + a
}

// Headers are attached by transports that support them.
func (e *Event) Headers() map[string]string {
	h := map[string]string{
		"event-id": e.ID,
		"action":   e.Action,
		"conn-id":  e.ConnID,
	}
	if e.SenderID != "" {
		h["sender-id"] = e.SenderID
	}
	return h
}

func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
