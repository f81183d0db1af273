package chat

import (
	"sync"

	"PPGateway/tools/errs"
)

type fakeConn struct {
	id string

	mu     sync.Mutex
	sent   [][]byte
	fail   bool
	closed int
}

func newFake(id string) *fakeConn { return &fakeConn{id: id} }

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail || f.closed > 0 {
		return errs.ErrSend.WrapMsg("fake send failed", "connId", f.id)
	}
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
}

func (f *fakeConn) Sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

func (f *fakeConn) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed > 0
}
