package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"PPGateway/logger"
	"PPGateway/tools/errs"
	"PPGateway/tools/safe"
)

// presence key: ppgw:presence:<user>
// value: <node>|<connId>, TTL controls the online validity period
const presencePrefix = "ppgw:presence:"

// 只删除仍然指向本连接的 presence, 避免把新连接的在线状态删掉
// KEYS[1] = presence key
// ARGV[1] = expected value
// 返回：1 已删除；0 不匹配/不存在
var luaCompareAndDel = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func PresenceKey(user string) string { return presencePrefix + user }

func presenceValue(node, connID string) string { return node + "|" + connID }

// ParsePresence splits a presence value into node and connection id.
func ParsePresence(v string) (node, connID string, ok bool) {
	node, connID, ok = strings.Cut(v, "|")
	if !ok || node == "" || connID == "" {
		return "", "", false
	}
	return node, connID, true
}

// hooks queue at most this many writes before dropping
const presenceQueue = 1024

type presenceOp struct {
	online bool
	user   string
	connID string
}

// PresenceStore publishes which gateway node and connection a user is on.
// Entries expire after ttl unless refreshed.
//
// Writes coming from registry hooks go through one queue drained by a single
// worker, so the online and offline of one user reach redis in hook order.
type PresenceStore struct {
	rdb     redis.Cmdable
	node    string
	ttl     time.Duration
	timeout time.Duration

	ops       chan presenceOp
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewPresenceStore starts the hook worker; Close stops it.
func NewPresenceStore(rdb redis.Cmdable, node string, ttl time.Duration) *PresenceStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	p := &PresenceStore{
		rdb:     rdb,
		node:    node,
		ttl:     ttl,
		timeout: 2 * time.Second,
		ops:     make(chan presenceOp, presenceQueue),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	safe.Go("presence", p.loop)
	return p
}

// Online sets the user as online on this node and renews the TTL.
func (p *PresenceStore) Online(ctx context.Context, user, connID string) error {
	if err := p.rdb.Set(ctx, PresenceKey(user), presenceValue(p.node, connID), p.ttl).Err(); err != nil {
		return errs.ErrTransport.WrapMsg("presence online", "user", user, "err", err)
	}
	return nil
}

// Offline removes the user only while the key still points at connID.
func (p *PresenceStore) Offline(ctx context.Context, user, connID string) (bool, error) {
	n, err := luaCompareAndDel.Run(ctx, p.rdb, []string{PresenceKey(user)}, presenceValue(p.node, connID)).Int()
	if err != nil {
		return false, errs.ErrTransport.WrapMsg("presence offline", "user", user, "err", err)
	}
	return n == 1, nil
}

// Lookup checks whether the user is online and where.
func (p *PresenceStore) Lookup(ctx context.Context, user string) (node, connID string, online bool, err error) {
	val, err := p.rdb.Get(ctx, PresenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, errs.ErrTransport.WrapMsg("presence lookup", "user", user, "err", err)
	}
	node, connID, ok := ParsePresence(val)
	return node, connID, ok, nil
}

// Refresh re-asserts every binding in one pipeline.
func (p *PresenceStore) Refresh(ctx context.Context, bindings map[string]string) error {
	if len(bindings) == 0 {
		return nil
	}
	_, err := p.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for user, connID := range bindings {
			pipe.Set(ctx, PresenceKey(user), presenceValue(p.node, connID), p.ttl)
		}
		return nil
	})
	if err != nil {
		return errs.ErrTransport.WrapMsg("presence refresh", "count", len(bindings), "err", err)
	}
	return nil
}

// BindHook suits RegistryConf.OnBind. The write is queued so a slow redis
// never stalls a read loop.
func (p *PresenceStore) BindHook() func(userID, connID string) {
	return func(userID, connID string) {
		p.enqueue(presenceOp{online: true, user: userID, connID: connID})
	}
}

// RemoveHook suits RegistryConf.OnRemove.
func (p *PresenceStore) RemoveHook() func(userID, connID string) {
	return func(userID, connID string) {
		p.enqueue(presenceOp{user: userID, connID: connID})
	}
}

func (p *PresenceStore) enqueue(op presenceOp) {
	select {
	case <-p.quit:
		return
	default:
	}
	select {
	case p.ops <- op:
	default:
		logger.Warnf("[presence] queue full, drop user=%s conn=%s online=%v", op.user, op.connID, op.online)
	}
}

func (p *PresenceStore) loop() {
	defer close(p.done)
	for {
		select {
		case op := <-p.ops:
			p.apply(op)
		case <-p.quit:
			// 退出前把已入队的写完
			for {
				select {
				case op := <-p.ops:
					p.apply(op)
				default:
					return
				}
			}
		}
	}
}

func (p *PresenceStore) apply(op presenceOp) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if op.online {
		if err := p.Online(ctx, op.user, op.connID); err != nil {
			logger.Warnf("[presence] online user=%s conn=%s err=%v", op.user, op.connID, err)
		}
		return
	}
	if _, err := p.Offline(ctx, op.user, op.connID); err != nil {
		logger.Warnf("[presence] offline user=%s conn=%s err=%v", op.user, op.connID, err)
	}
}

// Close flushes the queued hook writes and stops the worker. Hooks called
// afterwards are ignored.
func (p *PresenceStore) Close() {
	p.closeOnce.Do(func() { close(p.quit) })
	<-p.done
}

// RunRefresher renews the TTL of every local binding each interval until ctx
// is done. Use ttl/3 or so as the interval.
func (p *PresenceStore) RunRefresher(ctx context.Context, interval time.Duration, snapshot func() map[string]string) {
	if interval <= 0 {
		interval = p.ttl / 3
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			rctx, cancel := context.WithTimeout(ctx, p.timeout)
			if err := p.Refresh(rctx, snapshot()); err != nil {
				logger.Warnf("[presence] refresh err=%v", err)
			}
			cancel()
		}
	}
}
