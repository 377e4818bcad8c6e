package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/boostscore/config"
	"github.com/rushteam/boostscore/server"
)

type serveCmdConfig struct {
	configInput string
	addr        string
}

func serveCmd(rootConfig *rootCmdConfig) *cobra.Command {
	cfg := &serveCmdConfig{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scoring HTTP API",
		Long:  `Load the model described by the config file and serve /predict, /predict/sparse, /health and /metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.configInput == "" {
				return fmt.Errorf("required config flag was not set")
			}
			return cfg.run(rootConfig)
		},
	}
	cmd.Flags().StringVarP(&(cfg.configInput), "config", "c", "", "path to a YAML or JSON config file (required)")
	cmd.Flags().StringVar(&(cfg.addr), "addr", "", "listen address, overrides server.addr")
	return cmd
}

func (c *serveCmdConfig) run(root *rootCmdConfig) error {
	log := root.logger(os.Stderr)

	cfg, err := config.Load(c.configInput)
	if err != nil {
		return err
	}
	if c.addr != "" {
		cfg.Server.Addr = c.addr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := cfg.OpenStore()
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	sc, err := config.Build(ctx, cfg, config.Deps{Store: st}, log)
	if err != nil {
		return err
	}
	opts := []server.Option{server.WithRateLimit(cfg.Server.RateLimit, cfg.Server.Burst)}
	fetcher, err := config.BuildFetcher(cfg, st)
	if err != nil {
		return err
	}
	if fetcher != nil {
		opts = append(opts, server.WithEntities(fetcher))
	}
	srv := server.New(sc, log, opts...)

	if cfg.Watch {
		w, err := config.NewWatcher(cfg, config.Deps{Store: st}, log, srv.Swap)
		if err != nil {
			return err
		}
		go func() {
			if err := w.Run(ctx); err != nil {
				log.Error("model watcher stopped", "error", err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
	}
	log.Info("starting boostscore", "addr", ln.Addr().String())
	return serveUntilDone(ctx, httpServer, ln, log)
}

// shutdownTimeout 是优雅关闭等待在途请求的最长时间。
const shutdownTimeout = 10 * time.Second

// serveUntilDone 在 ln 上提供服务，ctx 取消后优雅关闭。
// 只有 Shutdown 返回（在途请求处理完或超时）后才返回，调用方之后才能安全关闭 Store。
func serveUntilDone(ctx context.Context, httpServer *http.Server, ln net.Listener, log *slog.Logger) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		log.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		log.Info("server stopped")
		return nil
	})
	return eg.Wait()
}
