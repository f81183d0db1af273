package global

import (
	"context"

	goredis "github.com/redis/go-redis/v9"

	"PPGateway/global/config"
	"PPGateway/logger"
	"PPGateway/service/chat"
	"PPGateway/service/chat/handlers"
	"PPGateway/service/events"
	"PPGateway/service/storage"
)

// Gateway is the fully wired process: server plus the optional presence
// store and event fan-out behind the registry and handler hooks.
type Gateway struct {
	Server   *chat.Server
	Metrics  *chat.Metrics
	Presence *storage.PresenceStore
	Fanout   *events.Fanout

	rdb       *goredis.Client
	stopFresh context.CancelFunc
}

// BuildGateway wires every component described by conf. Nothing listens
// until Server.Start.
func BuildGateway(conf config.GatewayConfig) (*Gateway, error) {
	g := &Gateway{}
	if conf.Metrics.Enabled {
		g.Metrics = chat.NewMetrics(conf.Metrics.Namespace)
	}

	presence, rdb, err := ConfigRedis(conf)
	if err != nil {
		return nil, err
	}
	g.Presence, g.rdb = presence, rdb

	fanout, err := ConfigEvents(conf)
	if err != nil {
		g.Close()
		return nil, err
	}
	g.Fanout = fanout

	regConf := chat.RegistryConf{
		OnSize: g.Metrics.SetConnections,
		OnSendError: func(connID string, err error) {
			g.Metrics.SendFailure()
			logger.Infof("[Registry] send failed conn=%s err=%v", connID, err)
		},
	}
	if presence != nil {
		regConf.OnBind = presence.BindHook()
		regConf.OnRemove = presence.RemoveHook()
	}
	reg := chat.NewRegistry(regConf)

	var hooks handlers.Hooks
	if fanout != nil {
		hooks.OnChat = fanout.Hook()
		hooks.OnSigned = fanout.Hook()
	}
	disp := chat.NewDispatcher(reg, g.Metrics)
	handlers.RegisterDefaults(disp, hooks)

	g.Server = chat.NewServer(conf, reg, disp, g.Metrics)

	if presence != nil {
		ctx, cancel := context.WithCancel(context.Background())
		g.stopFresh = cancel
		go presence.RunRefresher(ctx, conf.Redis.PresenceTTL/3, reg.Bindings)
	}
	return g, nil
}

// Shutdown stops the server and releases every backend.
func (g *Gateway) Shutdown(ctx context.Context) error {
	var err error
	if g.Server != nil {
		err = g.Server.Stop(ctx)
	}
	g.Close()
	return err
}

// Close releases the backends without touching the server.
func (g *Gateway) Close() {
	if g.stopFresh != nil {
		g.stopFresh()
	}
	if g.Fanout != nil {
		g.Fanout.Close()
	}
	if g.Presence != nil {
		g.Presence.Close()
	}
	if g.rdb != nil {
		if err := g.rdb.Close(); err != nil {
			logger.Warnf("[redis] close err=%v", err)
		}
	}
}
