package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"PPGateway/global"
	"PPGateway/global/config"
	"PPGateway/logger"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "ppgateway",
		Short:         "WebSocket message gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(serveCmd(), versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var (
		confPath    string
		port        int
		stopTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway until SIGINT/SIGTERM",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := config.Load(confPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				conf.Port = port
			}
			return serve(conf, stopTimeout)
		},
	}

	cmd.Flags().StringVarP(&confPath, "config", "c", "", "path to a yaml config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port, overrides the config")
	cmd.Flags().DurationVar(&stopTimeout, "stop-timeout", 10*time.Second, "graceful shutdown limit")
	return cmd
}

func serve(conf config.GatewayConfig, stopTimeout time.Duration) error {
	global.ConfigLogger(conf)
	global.ConfigIds(conf)
	defer logger.Sync()
	defer glog.Flush()

	gw, err := global.BuildGateway(conf)
	if err != nil {
		return err
	}

	// 监听失败是唯一的致命错误
	if err := gw.Server.Start(conf.Port); err != nil {
		gw.Close()
		return err
	}
	logger.Infof("[main] gateway up node=%d addr=%s path=%s", conf.NodeID, gw.Server.Addr(), conf.Path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Infof("[main] shutting down, online=%d", gw.Server.Registry().Size())
	sctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return gw.Shutdown(sctx)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ppgateway %s (%s) %s %s/%s\n", version, commit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
