package chat

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"PPGateway/tools"
	"PPGateway/tools/decode"
	"PPGateway/tools/errs"
)

// Action is the discriminator of an inbound frame.
type Action string

const (
	ActionConnect   Action = "CONNECT"
	ActionChat      Action = "CHAT"
	ActionSigned    Action = "SIGNED"
	ActionHeartbeat Action = "HEARTBEAT"

	// older clients still send the misspelt heartbeat
	legacyHeartbeat = "HERT_BEAT"
)

// ParseAction maps a wire value to an Action.
func ParseAction(s string) (Action, bool) {
	switch Action(s) {
	case ActionConnect, ActionChat, ActionSigned, ActionHeartbeat:
		return Action(s), true
	}
	if s == legacyHeartbeat {
		return ActionHeartbeat, true
	}
	return "", false
}

// Body is the action specific part of a Message. The concrete type always
// matches Message.Action.
type Body interface {
	Action() Action
}

// ConnectBody binds the sending connection to UserID.
type ConnectBody struct {
	UserID string
}

// ChatBody is a chat message; an empty To means broadcast.
type ChatBody struct {
	To      string
	Text    string
	Payload json.RawMessage // chatMsg exactly as the client sent it
}

// SignedBody acknowledges receipt of the messages in Refs.
type SignedBody struct {
	Refs []string
}

type HeartbeatBody struct{}

func (ConnectBody) Action() Action   { return ActionConnect }
func (ChatBody) Action() Action      { return ActionChat }
func (SignedBody) Action() Action    { return ActionSigned }
func (HeartbeatBody) Action() Action { return ActionHeartbeat }

// Message is one decoded frame. ConnID and SenderID are filled in by the
// dispatcher, not by the client.
type Message struct {
	Action   Action
	Extend   string
	Body     Body
	ConnID   string
	SenderID string
}

// MessageHook is an extension point invoked with a decoded message.
type MessageHook func(m *Message)

// wire format
type frame struct {
	Action  *string         `json:"action"`
	ChatMsg json.RawMessage `json:"chatMsg"`
	Extend  *string         `json:"extend"`
}

var jsonNull = []byte("null")

// chatMsg keys. The older web client sends senderId/receiverId/msg.
var (
	userKeys = []string{"userId", "senderId"}
	toKeys   = []string{"to", "receiverId"}
	textKeys = []string{"text", "msg"}
)

// HEARTBEAT frames all decode to this one value. It must not be modified.
var heartbeatMessage = &Message{Action: ActionHeartbeat, Body: HeartbeatBody{}}

// keep-alive frames exactly as clients send them, matched without decoding
var heartbeatFrames = [][]byte{
	[]byte(`{"action":"HEARTBEAT"}`),
	[]byte(`{"action":"` + legacyHeartbeat + `"}`),
}

// DecodeMessage parses one frame. Every failure is a DecodeError; unknown
// fields are ignored. Heartbeats return a shared read-only Message.
func DecodeMessage(raw []byte) (*Message, error) {
	if isHeartbeatFrame(raw) {
		return heartbeatMessage, nil
	}
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errs.ErrDecode.WrapMsg("invalid json", "err", err)
	}
	if f.Action == nil || *f.Action == "" {
		return nil, errs.ErrDecode.WrapMsg("missing action")
	}
	action, ok := ParseAction(*f.Action)
	if !ok {
		return nil, errs.ErrDecode.WrapMsg("unknown action", "action", *f.Action)
	}
	if action == ActionHeartbeat {
		return heartbeatMessage, nil
	}

	m := &Message{Action: action}
	if f.Extend != nil {
		m.Extend = *f.Extend
	}
	payload, err := decodeChatMsg(f.ChatMsg)
	if err != nil {
		return nil, err
	}

	switch action {
	case ActionConnect:
		userID := readFirst(payload, userKeys...)
		if userID == "" {
			userID = strings.TrimSpace(m.Extend)
		}
		if userID == "" {
			return nil, errs.ErrDecode.WrapMsg("connect without user id")
		}
		m.Body = ConnectBody{UserID: userID}
	case ActionChat:
		b := ChatBody{
			To:   readFirst(payload, toKeys...),
			Text: readFirst(payload, textKeys...),
		}
		if hasPayload(f.ChatMsg) {
			b.Payload = f.ChatMsg
		}
		m.Body = b
	case ActionSigned:
		refs, _ := decode.ReadStringSlice(payload, "msgIds")
		if id := readFirst(payload, "msgId"); id != "" {
			refs = append(refs, id)
		}
		if len(refs) == 0 {
			refs = tools.SplitList(m.Extend)
		}
		m.Body = SignedBody{Refs: refs}
	}
	return m, nil
}

func isHeartbeatFrame(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	for _, f := range heartbeatFrames {
		if bytes.Equal(raw, f) {
			return true
		}
	}
	return false
}

// decodeChatMsg returns chatMsg as a generic object; an absent or null
// chatMsg is an empty one.
func decodeChatMsg(raw json.RawMessage) (map[string]any, error) {
	if !hasPayload(raw) {
		return map[string]any{}, nil
	}
	m, err := decode.ToMap(raw)
	if err != nil {
		return nil, errs.ErrDecode.WrapMsg("invalid chatMsg", "err", err)
	}
	return m, nil
}

func hasPayload(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, jsonNull)
}

// readFirst returns the first of keys holding a non-empty string or number.
func readFirst(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, err := decode.ReadString(m, k); err == nil && v != "" {
			return v
		}
	}
	return ""
}

// OutboundChat is the frame delivered to chat recipients.
type OutboundChat struct {
	Action  Action          `json:"action"`
	ChatMsg json.RawMessage `json:"chatMsg,omitempty"`
	Extend  string          `json:"extend,omitempty"`
	From    string          `json:"from,omitempty"`
	Ts      int64           `json:"ts"`
}

// EncodeChat builds the delivery frame for a CHAT message.
func EncodeChat(m *Message) ([]byte, error) {
	body, ok := m.Body.(ChatBody)
	if !ok {
		return nil, errs.ErrDecode.WrapMsg("not a chat message", "action", m.Action)
	}
	out := OutboundChat{
		Action:  ActionChat,
		ChatMsg: body.Payload,
		Extend:  m.Extend,
		From:    m.SenderID,
		Ts:      time.Now().UnixMilli(),
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, errs.WrapMsg(err, "marshal chat")
	}
	return b, nil
}
