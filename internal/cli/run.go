package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/HydroRoll-Team/hydroroll-webhook/internal/bot"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/command"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/config"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/dedupe"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/delivery"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/dispatch"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/event"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/feed"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/server"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/state"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/stats"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/subscription"
)

// feedFetchTimeout bounds one arXiv query round trip.
const feedFetchTimeout = 30 * time.Second

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the webhook bridge",
	RunE:  runBridge,
}

func runBridge(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg.Logging)

	store, err := state.NewFileStore(cfg.State.Dir)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}

	table, err := subscription.Load(store, subscription.Subscription{
		Groups: cfg.Webhook.Groups,
		Events: cfg.Webhook.Events,
	})
	if err != nil {
		return fmt.Errorf("loading subscriptions: %w", err)
	}

	collector := stats.NewCollector(stats.StateKey)
	if err := collector.LoadFrom(store); err != nil {
		return fmt.Errorf("loading stats: %w", err)
	}

	sender := buildSender(cfg.Delivery, logger)
	pool := delivery.NewPool(sender, cfg.Delivery.QueueSize, logger)

	deduper, err := buildDeduper(cfg.Dedupe)
	if err != nil {
		return fmt.Errorf("creating deduper: %w", err)
	}

	classifier := &event.Classifier{
		MaxCommits:      cfg.Webhook.MaxCommits,
		TruncateComment: cfg.Webhook.TruncateComment,
	}

	dispatcher := dispatch.New(classifier, deduper, table, collector, pool, logger)
	dispatcher.FilterBots = cfg.Webhook.FilterBots

	ingress := server.New(dispatcher, collector, cfg.Server.Secret, logger)
	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	supervisor := server.NewSupervisor(addr, ingress, logger)

	var (
		feedSettings *feed.Settings
		feedStats    *stats.Collector
		poller       *feed.Poller
	)
	if cfg.Feed.Enabled {
		feedSettings, err = feed.LoadSettings(store, feed.Defaults{
			Keywords: cfg.Feed.Keywords,
			Groups:   cfg.Feed.Groups,
			Interval: cfg.Feed.Interval,
		})
		if err != nil {
			return fmt.Errorf("loading feed settings: %w", err)
		}
		feedStats = stats.NewCollector(feed.StatsKey)
		if err := feedStats.LoadFrom(store); err != nil {
			return fmt.Errorf("loading feed stats: %w", err)
		}
		client := feed.NewClient(cfg.Feed.BaseURL, feedFetchTimeout)
		poller = feed.NewPoller(client, feedSettings, pool, feedStats, cfg.Feed.Query, cfg.Feed.MaxResults, logger)
	}

	commands := command.New(supervisor, table, collector, feedSettings, feedStats, logger)
	listener := bot.New(commands, sender, cfg.Bot.Admins, logger)

	botSrv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Bot.Host, strconv.Itoa(cfg.Bot.Port)),
		Handler:           listener,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background workers (stats flushers, feed poller) outlive the signal
	// context so they can flush during shutdown.
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		collector.Run(workCtx, store, cfg.Stats.FlushInterval, logger)
	}()
	if poller != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			feedStats.Run(workCtx, store, cfg.Stats.FlushInterval, logger)
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Run(workCtx)
		}()
	}

	if cfg.Server.AutoStart {
		if err := supervisor.Start(); err != nil {
			return fmt.Errorf("starting webhook server: %w", err)
		}
	} else {
		logger.Info("webhook server idle until /webhook on", "addr", addr)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("bot listener starting", "addr", botSrv.Addr)
		errCh <- botSrv.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("bot listener error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down gracefully")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if supervisor.Running() {
		if err := supervisor.Stop(shutCtx); err != nil {
			logger.Error("stopping webhook server", "err", err)
		}
	}
	if err := botSrv.Shutdown(shutCtx); err != nil {
		logger.Error("stopping bot listener", "err", err)
	}

	cancelWork()
	wg.Wait()
	pool.Close()

	logger.Info("bridge stopped")
	return runErr
}

// buildSender selects the outbound channel. Unrecognized types were already
// rejected by config validation; log is the safe fallback.
func buildSender(cfg config.DeliveryConfig, logger *slog.Logger) delivery.Sender {
	switch cfg.Type {
	case "onebot":
		return delivery.NewOneBot(cfg.APIURL, cfg.AccessToken, cfg.Timeout, logger)
	default:
		return &delivery.Log{Logger: logger}
	}
}

func buildDeduper(cfg config.DedupeConfig) (dedupe.Deduper, error) {
	switch cfg.Backend {
	case "off":
		return dedupe.None{}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		return dedupe.NewRedis(client, cfg.TTL), nil
	default:
		return dedupe.NewMemory(cfg.Capacity)
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
