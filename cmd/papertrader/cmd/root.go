package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rustyeddy/papertrader/config"
	"github.com/rustyeddy/papertrader/internal/logging"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/pricing"
	"github.com/rustyeddy/papertrader/sim"
	"github.com/rustyeddy/papertrader/store"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "papertrader",
	Short: "A paper trading simulator for equities",
	Long: `Papertrader simulates a brokerage account with virtual cash.

It provides tools for:
  - Placing market, limit and stop orders against live or synthetic quotes
  - Tracking positions at weighted-average cost with realized and unrealized P/L
  - Keeping a watchlist and an append-only trade journal
  - Serving the portfolio over a JSON HTTP API

State is saved after every change to the configured store.`,
	SilenceUsage: true,
}

var (
	cfgPath  string
	logLevel string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (YAML or JSON); defaults apply when empty")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}

// session is one engine loaded from the configured store, with the
// pieces commands need around it.
type session struct {
	cfg     *config.Config
	log     *slog.Logger
	engine  *sim.Engine
	prices  *pricing.Gateway
	closers []func() error
}

func openSession(ctx context.Context, cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	log, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	slog.SetDefault(log)

	s := &session{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	st, err := store.Open(cfg.Store.Type, cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, st.Close)

	cash, _ := cfg.StartingCash()
	rates, _ := cfg.Rates()
	s.engine = sim.NewEngine(cash, rates, st)
	s.engine.SetLogger(log)
	if err := s.engine.Load(ctx); err != nil {
		return nil, err
	}

	if cfg.Audit.Enabled() {
		rec, err := journal.NewCSV(cfg.Audit.TradesFile, cfg.Audit.EquityFile)
		if err != nil {
			return nil, fmt.Errorf("open audit trail: %w", err)
		}
		s.closers = append(s.closers, rec.Close)
		s.engine.SetRecorder(rec)
	}

	if s.prices, err = newGateway(ctx, cfg, log, s); err != nil {
		return nil, err
	}

	ok = true
	return s, nil
}

func newGateway(ctx context.Context, cfg *config.Config, log *slog.Logger, s *session) (*pricing.Gateway, error) {
	ttl, _ := cfg.QuoteTTL()
	gap, _ := cfg.MinInterval()
	opts := pricing.Options{
		Provider:    cfg.Pricing.Provider,
		APIKey:      cfg.Pricing.APIKey,
		BaseURL:     cfg.Pricing.BaseURL,
		TTL:         ttl,
		MinInterval: gap,
		Fallback:    cfg.Pricing.Fallback,
		Logger:      log,
	}

	if cfg.Pricing.RedisURL != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		rdb, err := pricing.DialRedis(dialCtx, cfg.Pricing.RedisURL)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, rdb.Close)
		if ttl <= 0 {
			ttl = pricing.DefaultTTL
		}
		opts.Cache = pricing.NewRedisCache(rdb, ttl)
		log.Info("redis quote cache enabled")
	}
	return pricing.New(opts)
}

// Close releases the store and any audit files, newest first.
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && s.log != nil {
			s.log.Warn("close", "err", err)
		}
	}
	s.closers = nil
}

// reportSave turns a failed snapshot save into a warning on stderr. The
// change it follows has already happened in memory.
func reportSave(cmd *cobra.Command, err error) error {
	if err == nil {
		return nil
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	return err
}

