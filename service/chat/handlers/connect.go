package handlers

import (
	"PPGateway/logger"
	"PPGateway/service/chat"
	"PPGateway/tools/errs"
)

// ConnectHandler binds the sending connection to the user id it announces.
type ConnectHandler struct{}

func NewConnectHandler() chat.Handler         { return &ConnectHandler{} }
func (h *ConnectHandler) Action() chat.Action { return chat.ActionConnect }

func (h *ConnectHandler) Handle(ctx *chat.Context, m *chat.Message, conn chat.Conn) error {
	body, ok := m.Body.(chat.ConnectBody)
	if !ok {
		return errs.ErrDecode.WrapMsg("connect: unexpected body", "action", m.Action)
	}
	if err := ctx.Reg.BindUser(conn.ID(), body.UserID); err != nil {
		// the connection went away while the frame was in flight
		if errs.Is(err, &errs.ErrNotFound) {
			logger.Debugf("[connect] conn gone snowID=%s user=%s", conn.ID(), body.UserID)
			return nil
		}
		return err
	}
	return nil
}
