package chat

import (
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"PPGateway/logger"
	"PPGateway/tools/errs"
	"PPGateway/tools/ids"
	"PPGateway/tools/safe"
)

// HandleWS upgrades the request and serves the connection until it closes.
func (s *Server) HandleWS(c *gin.Context) {
	if !s.track() {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	defer s.conns.Done()

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// 常见：非 WebSocket 请求/握手失败, upgrader 已经回写了 HTTP 错误
		err = errs.ErrTransport.WrapMsg("upgrade failed", "remote", c.ClientIP(), "err", err)
		logger.Infof("[HandleWS] %v", err)
		return
	}
	s.serveConn(ws, c.Param("id"))
}

func (s *Server) serveConn(ws *websocket.Conn, pathID string) {
	conn := NewWsConn(ids.FormatID(s.idGen.Next()), pathID, ws, ConnConf{
		SendQueue:    s.conf.SendQueue,
		WriteWait:    s.conf.WriteWait,
		PingInterval: s.conf.PingInterval,
	})
	s.reg.Register(conn)
	defer func() {
		s.reg.Unregister(conn.ID())
		conn.Close()
	}()

	// registered after Stop already ran CloseAll
	if s.isClosing() {
		return
	}

	if s.conf.BindPathID && pathID != "" {
		if err := s.reg.BindUser(conn.ID(), pathID); err != nil {
			logger.Infof("[HandleWS] bind path id err snowID=%s id=%s err=%v", conn.ID(), pathID, err)
		}
	}

	safe.Go("ws-write", func() { conn.writePump(s.reg.Disconnect) })
	s.readLoop(conn)
}

// readLoop only reads; it exits on any read error and the caller tears the
// connection down. Decode failures are logged and the connection survives.
func (s *Server) readLoop(conn *WsConn) {
	ws := conn.Conn
	if s.conf.MaxMessageSize > 0 {
		ws.SetReadLimit(s.conf.MaxMessageSize)
	}
	pongWait := s.conf.PongWait
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[WS] peer closed snowID=%s err=%v", conn.ID(), err)
			} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
				logger.Infof("[WS] read timeout snowID=%s err=%v", conn.ID(), err)
			} else {
				logger.Debugf("[WS] read err snowID=%s err=%v", conn.ID(), err)
			}
			return
		}
		// any frame counts as liveness
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))

		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		if err := s.disp.Dispatch(conn, data); err != nil && errs.Is(err, &errs.ErrDecode) {
			// 只打印简短样本
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Infof("[WS] decode err snowID=%s err=%v sample=%q len=%d", conn.ID(), err, sample, len(data))
		}
	}
}
