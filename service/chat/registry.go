package chat

import (
	"sync"

	"PPGateway/logger"
	"PPGateway/tools/errs"
)

// RegistryConf carries the optional callbacks of a Registry. All of them run
// outside the registry lock.
type RegistryConf struct {
	OnSize      func(n int)                 // after every size change
	OnBind      func(userID, connID string) // after a user is bound
	OnRemove    func(userID, connID string) // after a bound connection is removed
	OnSendError func(connID string, err error)
}

func (c *RegistryConf) norm() {
	if c.OnSize == nil {
		c.OnSize = func(int) {}
	}
	if c.OnBind == nil {
		c.OnBind = func(string, string) {}
	}
	if c.OnRemove == nil {
		c.OnRemove = func(string, string) {}
	}
	if c.OnSendError == nil {
		c.OnSendError = func(string, error) {}
	}
}

type entry struct {
	conn   Conn
	userID string // "" until CONNECT; always the key of byUser pointing here
}

// Registry holds every live connection and the userId -> connId index.
//
// Invariant: byUser[u] == id  <=>  byConn[id].userID == u. Both maps change in
// the same critical section, so a lookup never sees a dangling user entry.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]*entry // conn_id -> entry
	byUser map[string]string // user -> conn_id
	conf   RegistryConf
}

func NewRegistry(conf RegistryConf) *Registry {
	conf.norm()
	return &Registry{
		byConn: make(map[string]*entry),
		byUser: make(map[string]string),
		conf:   conf,
	}
}

// Register adds c to the live set. Registering an id twice replaces the old
// connection: it loses its user binding and is closed.
func (r *Registry) Register(c Conn) {
	if c == nil {
		return
	}
	r.mu.Lock()
	old, replaced := r.removeLocked(c.ID())
	r.byConn[c.ID()] = &entry{conn: c}
	n := len(r.byConn)
	r.mu.Unlock()

	if replaced {
		if old.userID != "" {
			r.conf.OnRemove(old.userID, c.ID())
		}
		if old.conn != c {
			old.conn.Close()
		}
	}
	r.conf.OnSize(n)
	logger.Infof("[Registry] online conn=%s total=%d", c.ID(), n)
}

// Unregister removes the connection and its user binding. Unknown ids are ignored.
func (r *Registry) Unregister(connID string) {
	r.remove(connID)
}

func (r *Registry) remove(connID string) (Conn, bool) {
	r.mu.Lock()
	e, ok := r.removeLocked(connID)
	n := len(r.byConn)
	r.mu.Unlock()
	if !ok {
		return nil, false
	}

	if e.userID != "" {
		r.conf.OnRemove(e.userID, connID)
	}
	r.conf.OnSize(n)
	logger.Infof("[Registry] offline conn=%s user=%s total=%d", connID, e.userID, n)
	return e.conn, true
}

func (r *Registry) removeLocked(connID string) (*entry, bool) {
	e, ok := r.byConn[connID]
	if !ok {
		return nil, false
	}
	delete(r.byConn, connID)
	if e.userID != "" && r.byUser[e.userID] == connID {
		delete(r.byUser, e.userID)
	}
	return e, true
}

// BindUser maps userID to connID. A previous connection of the same user stays
// registered but loses the binding (last writer wins).
func (r *Registry) BindUser(connID, userID string) error {
	if userID == "" {
		return errs.New("bind user: empty userId", "connId", connID)
	}
	r.mu.Lock()
	e, ok := r.byConn[connID]
	if !ok {
		r.mu.Unlock()
		return errs.ErrNotFound.WrapMsg("conn not registered", "connId", connID)
	}
	if e.userID == userID {
		r.mu.Unlock()
		return nil
	}
	// the connection switches identity
	prevUser := ""
	if e.userID != "" && r.byUser[e.userID] == connID {
		delete(r.byUser, e.userID)
		prevUser = e.userID
	}
	// the user switches connection
	if prev, ok := r.byUser[userID]; ok {
		if pe := r.byConn[prev]; pe != nil {
			pe.userID = ""
		}
	}
	r.byUser[userID] = connID
	e.userID = userID
	r.mu.Unlock()

	if prevUser != "" {
		r.conf.OnRemove(prevUser, connID)
	}
	r.conf.OnBind(userID, connID)
	logger.Infof("[Registry] bind user=%s conn=%s", userID, connID)
	return nil
}

func (r *Registry) LookupByUser(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.lookupUserLocked(userID)
	if !ok {
		return nil, false
	}
	return e.conn, true
}

func (r *Registry) lookupUserLocked(userID string) (*entry, bool) {
	id, ok := r.byUser[userID]
	if !ok {
		return nil, false
	}
	e, ok := r.byConn[id]
	return e, ok
}

// UserOf returns the user bound to connID, if any.
func (r *Registry) UserOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byConn[connID]
	if !ok || e.userID == "" {
		return "", false
	}
	return e.userID, true
}

// Bindings returns a snapshot of user -> conn_id.
func (r *Registry) Bindings() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.byUser))
	for u, id := range r.byUser {
		out[u] = id
	}
	return out
}

// Broadcast sends data to every registered connection and returns how many
// accepted it. Connections whose Send fails are disconnected afterwards; one
// failure never stops delivery to the rest.
func (r *Registry) Broadcast(data []byte) int {
	failed := make(map[string]error)
	delivered := 0

	// sends happen under the read lock so a removed connection is never written to
	r.mu.RLock()
	for id, e := range r.byConn {
		if err := e.conn.Send(data); err != nil {
			failed[id] = err
			continue
		}
		delivered++
	}
	r.mu.RUnlock()

	for id, err := range failed {
		r.conf.OnSendError(id, err)
		r.Disconnect(id)
	}
	return delivered
}

// Unicast sends data to one connection. A failed send disconnects it.
func (r *Registry) Unicast(connID string, data []byte) error {
	r.mu.RLock()
	e, ok := r.byConn[connID]
	if !ok {
		r.mu.RUnlock()
		return errs.ErrNotFound.WrapMsg("conn not registered", "connId", connID)
	}
	err := e.conn.Send(data)
	r.mu.RUnlock()

	if err != nil {
		r.conf.OnSendError(connID, err)
		r.Disconnect(connID)
		return err
	}
	return nil
}

// SendToUser resolves userID and unicasts to its connection.
func (r *Registry) SendToUser(userID string, data []byte) error {
	r.mu.RLock()
	e, ok := r.lookupUserLocked(userID)
	if !ok {
		r.mu.RUnlock()
		return errs.ErrNotFound.WrapMsg("user not online", "userId", userID)
	}
	connID := e.conn.ID()
	err := e.conn.Send(data)
	r.mu.RUnlock()

	if err != nil {
		r.conf.OnSendError(connID, err)
		r.Disconnect(connID)
		return err
	}
	return nil
}

// Disconnect unregisters connID and closes it; the path taken on write failures.
func (r *Registry) Disconnect(connID string) {
	if c, ok := r.remove(connID); ok {
		c.Close()
	}
}

func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}

// CloseAll removes and closes every connection, returning how many there were.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	all := r.byConn
	r.byConn = make(map[string]*entry)
	r.byUser = make(map[string]string)
	r.mu.Unlock()

	for id, e := range all {
		if e.userID != "" {
			r.conf.OnRemove(e.userID, id)
		}
		e.conn.Close()
	}
	r.conf.OnSize(0)
	logger.Infof("[Registry] closed all connections count=%d", len(all))
	return len(all)
}
