package natsx

import (
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"PPGateway/global/config"
	"PPGateway/logger"
	"PPGateway/tools/errs"
)

// NatsxConfig 客户端配置
type NatsxConfig struct {
	Servers       []string
	Name          string
	User          string
	Password      string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// ConfigFrom maps the gateway nats section onto a client config.
func ConfigFrom(c config.NatsConfig) NatsxConfig {
	return NatsxConfig{
		Servers:  c.Servers,
		Name:     c.Name,
		User:     c.User,
		Password: c.Password,
	}
}

func (cfg *NatsxConfig) norm() {
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "ppgateway"
	}
}

func (cfg NatsxConfig) options() []nats.Option {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warnf("[natsx] disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Infof("[natsx] reconnected url=%s", nc.ConnectedUrl())
		}),
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}
	return opts
}

// NatsxClient 统一客户端, 网关只用它发布事件
type NatsxClient struct {
	cfg NatsxConfig
	nc  *nats.Conn
}

// NewNatsxClient 连接 NATS
func NewNatsxClient(cfg NatsxConfig) (*NatsxClient, error) {
	if len(cfg.Servers) == 0 {
		return nil, errs.ErrConfig.WrapMsg("nats servers missing")
	}
	cfg.norm()
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), cfg.options()...)
	if err != nil {
		return nil, errs.ErrTransport.WrapMsg("nats connect", "servers", cfg.Servers, "err", err)
	}
	logger.Infof("[natsx] connected url=%s name=%s", nc.ConnectedUrl(), cfg.Name)
	return &NatsxClient{cfg: cfg, nc: nc}, nil
}

// Conn exposes the raw connection; *nats.Conn satisfies Publisher.
func (c *NatsxClient) Conn() *nats.Conn { return c.nc }

// Close 优雅关闭
func (c *NatsxClient) Close() error {
	if c == nil || c.nc == nil {
		return nil
	}
	return c.nc.Drain()
}
