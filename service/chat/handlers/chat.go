package handlers

import (
	"PPGateway/logger"
	"PPGateway/service/chat"
	"PPGateway/tools/errs"
)

// ChatHandler relays a chat message to its recipient, or to everyone when no
// recipient is given. onChat runs before delivery.
type ChatHandler struct {
	onChat chat.MessageHook
}

func NewChatHandler(onChat chat.MessageHook) chat.Handler { return &ChatHandler{onChat: onChat} }
func (h *ChatHandler) Action() chat.Action                { return chat.ActionChat }

func (h *ChatHandler) Handle(ctx *chat.Context, m *chat.Message, conn chat.Conn) error {
	body, ok := m.Body.(chat.ChatBody)
	if !ok {
		return errs.ErrDecode.WrapMsg("chat: unexpected body", "action", m.Action)
	}
	if h.onChat != nil {
		h.onChat(m)
	}

	data, err := chat.EncodeChat(m)
	if err != nil {
		return err
	}

	if body.To == "" {
		n := ctx.Reg.Broadcast(data)
		logger.Debugf("[chat] broadcast from=%s snowID=%s delivered=%d", m.SenderID, conn.ID(), n)
		return nil
	}

	if err := ctx.Reg.SendToUser(body.To, data); err != nil {
		if errs.Is(err, &errs.ErrNotFound) {
			logger.Infof("[chat] recipient offline to=%s from=%s", body.To, m.SenderID)
			return nil
		}
		return err
	}
	return nil
}
