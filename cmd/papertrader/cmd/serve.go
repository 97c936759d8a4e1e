package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rustyeddy/papertrader/api"
	"github.com/rustyeddy/papertrader/metrics"
	"github.com/rustyeddy/papertrader/pricing"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the portfolio over HTTP",
	Long: `Run the JSON API on server.addr (or --addr). Prometheus metrics
are exposed on /metrics.

With --refresh, open positions are marked to fresh quotes on that
interval while the server runs.

Examples:
  papertrader serve
  papertrader serve --addr :9090 --refresh 1m`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveAddr    string
	serveRefresh time.Duration
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().DurationVar(&serveRefresh, "refresh", 0, "mark positions to fresh quotes this often (0 disables)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	addr := s.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	metrics.ObservePortfolio(s.engine.Portfolio())

	handler := api.NewServer(s.engine, s.prices, s.log)
	handler.AllowClientPrice(s.cfg.Server.AllowClientPrice)
	if s.cfg.Server.AllowClientPrice {
		s.log.Warn("orders may set their own reference price")
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if serveRefresh > 0 {
		go refreshLoop(ctx, pricing.NewRefresher(s.prices, s.engine, s.log), s, serveRefresh)
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("http server starting", "addr", addr, "live_quotes", s.prices.Live())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("serve %s: %w", addr, err)
		}
	case <-ctx.Done():
		s.log.Info("shutting down server")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("server exiting")
	return nil
}

func refreshLoop(ctx context.Context, r *pricing.Refresher, s *session, every time.Duration) {
	tick := time.NewTicker(every)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if _, err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
				metrics.SaveErrors.Inc()
				s.log.Error("scheduled refresh", "err", err)
			}
			metrics.ObservePortfolio(s.engine.Portfolio())
		}
	}
}
