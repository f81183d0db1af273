package handlers

import (
	"PPGateway/logger"
	"PPGateway/service/chat"
)

// SignedHandler receives read receipts. Delivery guarantees live behind onSigned.
type SignedHandler struct {
	onSigned chat.MessageHook
}

func NewSignedHandler(onSigned chat.MessageHook) chat.Handler { return &SignedHandler{onSigned: onSigned} }
func (h *SignedHandler) Action() chat.Action                  { return chat.ActionSigned }

func (h *SignedHandler) Handle(_ *chat.Context, m *chat.Message, conn chat.Conn) error {
	if body, ok := m.Body.(chat.SignedBody); ok {
		logger.Debugf("[signed] snowID=%s user=%s refs=%v", conn.ID(), m.SenderID, body.Refs)
	}
	if h.onSigned != nil {
		h.onSigned(m)
	}
	return nil
}
