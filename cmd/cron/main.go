package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest"
	"golang.org/x/sync/errgroup"

	"nof0-refresh/internal/cli"
	"nof0-refresh/internal/config"
	"nof0-refresh/internal/handler"
	"nof0-refresh/internal/scheduler"
	"nof0-refresh/internal/svc"
)

const (
	fireTimeout     = 2 * time.Minute  // Upper bound for one AskForRefresh
	shutdownTimeout = 10 * time.Second // Grace period for shutdown
)

var (
	configFile = flag.String("f", "etc/refresher.yaml", "the config file")
	serve      = flag.Bool("serve", false, "also serve the callback API from this process")
)

func main() {
	flag.Parse()

	cfg := config.MustLoad(*configFile)
	cli.LogConfigSummary(cfg)

	svcCtx := svc.MustNewServiceContext(*cfg)
	sched, err := scheduler.New(svcCtx.Orchestrator, cfg.Refresh.Value, fireTimeout)
	logx.Must(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched.Start()
		logx.Infof("[main] scheduler started for %v", sched.Timeframes())
		<-ctx.Done()
		sched.Stop()
		logx.Info("[main] scheduler stopped")
		return nil
	})

	if *serve {
		server := rest.MustNewServer(cfg.RestConf)
		handler.RegisterHandlers(server, svcCtx)
		g.Go(func() error {
			logx.Infof("[main] serving callback API at %s:%d", cfg.Host, cfg.Port)
			server.Start()
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			server.Stop()
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	<-ctx.Done()
	logx.Info("[main] shutdown signal received, stopping tasks...")
	select {
	case err := <-done:
		if err != nil {
			logx.Errorf("[main] stopped with error: %v", err)
			os.Exit(1)
		}
		logx.Info("[main] all tasks stopped cleanly")
	case <-time.After(shutdownTimeout):
		logx.Error("[main] shutdown timeout exceeded, forcing exit")
	}
	logx.Close()
}
