package handlers

import "PPGateway/service/chat"

// HeartbeatHandler does nothing: the read loop already refreshed the
// connection deadline when the frame arrived.
type HeartbeatHandler struct{}

func NewHeartbeatHandler() chat.Handler      { return HeartbeatHandler{} }
func (HeartbeatHandler) Action() chat.Action { return chat.ActionHeartbeat }

func (HeartbeatHandler) Handle(*chat.Context, *chat.Message, chat.Conn) error {
	return nil
}
