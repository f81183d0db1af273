package chat

import (
	"sync/atomic"

	"github.com/golang/glog"

	"PPGateway/logger"
	"PPGateway/tools/errs"
	"PPGateway/tools/safe"
)

// Context is what handlers get to act on the gateway.
type Context struct {
	Reg *Registry
}

// Handler processes one action. Errors are logged by the caller and never
// close the connection.
type Handler interface {
	Action() Action
	Handle(ctx *Context, m *Message, conn Conn) error
}

type Dispatcher struct {
	ctx          *Context
	handlers     map[Action]Handler
	decodeErrors atomic.Int64
	metrics      *Metrics
}

// NewDispatcher creates a dispatcher without handlers; metrics may be nil.
func NewDispatcher(reg *Registry, metrics *Metrics) *Dispatcher {
	safe.MustNotNil(reg, "registry")
	return &Dispatcher{
		ctx:      &Context{Reg: reg},
		handlers: make(map[Action]Handler),
		metrics:  metrics,
	}
}

// Register installs h, replacing any handler for the same action.
// Handlers must be registered before the server starts.
func (d *Dispatcher) Register(h Handler) { d.handlers[h.Action()] = h }

func (d *Dispatcher) Context() *Context { return d.ctx }

func (d *Dispatcher) GetHandler(a Action) Handler {
	h, ok := d.handlers[a]
	if !ok {
		glog.Infof("no handler for action=%v", a)
		return nil
	}
	return h
}

// Dispatch decodes one inbound frame from conn and routes it. A decode error
// is counted and returned; a missing handler is a no-op.
func (d *Dispatcher) Dispatch(conn Conn, raw []byte) error {
	m, err := DecodeMessage(raw)
	if err != nil {
		d.decodeErrors.Add(1)
		d.metrics.DecodeError()
		return err
	}
	d.metrics.Frame(string(m.Action))

	if m.Action != ActionHeartbeat {
		m.ConnID = conn.ID()
		if uid, ok := d.ctx.Reg.UserOf(m.ConnID); ok {
			m.SenderID = uid
		}
	}

	h := d.GetHandler(m.Action)
	if h == nil {
		return nil
	}
	if err := h.Handle(d.ctx, m, conn); err != nil {
		logger.Infof("[Dispatcher] handler err action=%s conn=%s code=%d err=%v", m.Action, conn.ID(), errs.Code(err), err)
		return err
	}
	return nil
}

// DecodeErrors is the number of frames that failed to decode so far.
func (d *Dispatcher) DecodeErrors() int64 { return d.decodeErrors.Load() }
