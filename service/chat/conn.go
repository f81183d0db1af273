package chat

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"PPGateway/logger"
	"PPGateway/tools/errs"
)

// Conn is the write side of one client connection as seen by the registry.
// Send must not block and must not call back into the registry.
type Conn interface {
	ID() string
	Send(data []byte) error
	Close()
}

// ConnConf 每连接参数
type ConnConf struct {
	SendQueue    int           // 每连接独立发送队列长度
	WriteWait    time.Duration // 单次写超时
	PingInterval time.Duration
}

func (c *ConnConf) norm() {
	if c.SendQueue <= 0 {
		c.SendQueue = 256
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 25 * time.Second
	}
}

// WsConn wraps one upgraded websocket. Frames are queued by Send and written
// by a single write pump, so gorilla's one-writer rule holds.
type WsConn struct {
	SnowID    string
	pathID    string
	Conn      *websocket.Conn
	Remote    string
	CreatedAt time.Time

	conf      ConnConf
	sendChan  chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewWsConn(snowID, pathID string, ws *websocket.Conn, conf ConnConf) *WsConn {
	conf.norm()
	c := &WsConn{
		SnowID:    snowID,
		pathID:    pathID,
		Conn:      ws,
		CreatedAt: time.Now(),
		conf:      conf,
		sendChan:  make(chan []byte, conf.SendQueue),
		done:      make(chan struct{}),
	}
	if ws != nil {
		if ra := ws.RemoteAddr(); ra != nil {
			c.Remote = ra.String()
		}
	}
	return c
}

func (c *WsConn) ID() string { return c.SnowID }

// PathID is the optional trailing segment of the upgrade path.
func (c *WsConn) PathID() string { return c.pathID }

// Done is closed once the connection is closed.
func (c *WsConn) Done() <-chan struct{} { return c.done }

// Send queues data for the write pump. It fails when the connection is
// closed or its queue is full.
func (c *WsConn) Send(data []byte) error {
	select {
	case <-c.done:
		return errs.ErrSend.WrapMsg("connection closed", "connId", c.SnowID)
	default:
	}
	select {
	case c.sendChan <- data:
		return nil
	case <-c.done:
		return errs.ErrSend.WrapMsg("connection closed", "connId", c.SnowID)
	default:
		return errs.ErrSend.WrapMsg("send queue full", "connId", c.SnowID, "queue", c.conf.SendQueue)
	}
}

// Close is idempotent and safe from any goroutine; closing the socket
// unblocks the pending read and write.
func (c *WsConn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.Conn != nil {
			_ = c.Conn.Close()
		}
	})
}

// writePump drains the send queue and keeps the peer alive with pings.
// onFail runs at most once, on the first write error.
func (c *WsConn) writePump(onFail func(connID string)) {
	ticker := time.NewTicker(c.conf.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case payload := <-c.sendChan:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.conf.WriteWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Infof("[WS] write payload err snowID=%s err=%v", c.SnowID, err)
				onFail(c.SnowID)
				return
			}

		case <-ticker.C:
			if err := c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.conf.WriteWait)); err != nil {
				logger.Infof("[WS] ping err snowID=%s err=%v", c.SnowID, err)
				onFail(c.SnowID)
				return
			}
		}
	}
}
