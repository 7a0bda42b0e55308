package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/okian/dripcue/internal/adapters/notify"
	"github.com/okian/dripcue/internal/adapters/store"
	service "github.com/okian/dripcue/internal/app"
	"github.com/okian/dripcue/internal/config"
	"github.com/okian/dripcue/internal/domain/beat"
	"github.com/okian/dripcue/internal/domain/timer"
	"github.com/okian/dripcue/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

// setup initialises logging on w and loads configuration.
func setup(ctx context.Context, w io.Writer) (*config.Config, error) {
	if err := logger.InitWithWriter(w, false); err != nil {
		return nil, fmt.Errorf("initialise logging: %w", err)
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

func storeConfig(cfg *config.Config) store.Config {
	return store.Config{
		Backend:   cfg.StoreBackend,
		Dir:       cfg.StoreDir,
		RedisAddr: cfg.StoreRedisAddr,
		RedisDB:   cfg.StoreRedisDB,
	}
}

func notifyConfig(cfg *config.Config) notify.Config {
	return notify.Config{
		Backends:       cfg.NotifyBackends,
		WebhookURL:     cfg.NotifyWebhookURL,
		WebhookTimeout: cfg.NotifyWebhookTimeout(),
		MQTTBroker:     cfg.NotifyMQTTBroker,
		MQTTTopic:      cfg.NotifyMQTTTopic,
		MQTTClientID:   cfg.NotifyMQTTClientID,
		QueueCapacity:  cfg.NotifyQueueSize,
		DedupeSize:     cfg.NotifyDedupeSize,
	}
}

func schedulerOptions(cfg *config.Config, sink beat.PulseSink) []beat.Option {
	opts := []beat.Option{
		beat.WithLookAhead(cfg.LookAhead()),
		beat.WithFramePeriod(cfg.FramePeriod()),
		beat.WithPulseVisualDuration(cfg.PulseVisualDuration()),
		beat.WithMinInterval(cfg.MinInterval()),
		beat.WithSoundEnabled(cfg.SoundEnabled),
		beat.WithVibrationEnabled(cfg.VibrationEnabled),
	}
	if v, ok := sink.(beat.VisualSink); ok {
		opts = append(opts, beat.WithVisualSink(v))
	}
	return opts
}

func registryOptions(cfg *config.Config) []timer.Option {
	return []timer.Option{
		timer.WithMaxActive(cfg.MaxActiveTimers),
		timer.WithNearEndThreshold(cfg.NearEndThreshold()),
		timer.WithStoreKey(cfg.StoreKey),
		timer.WithLegacyDefaultDuration(cfg.LegacyDefaultDuration()),
	}
}

// wiring is a fully wired service plus the resources it holds open.
type wiring struct {
	cfg     *config.Config
	backend store.Backend
	async   *notify.Async
	svc     *service.Service
}

// wire builds the store, the notification chain, the registry, the scheduler
// and the service. Nothing is started.
func wire(ctx context.Context, cfg *config.Config, sink beat.PulseSink, opts ...service.Option) (*wiring, error) {
	backend, err := store.Open(ctx, storeConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	async, dispatcher, err := notify.Build(notifyConfig(cfg))
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	registry := timer.New(backend, dispatcher, registryOptions(cfg)...)
	scheduler := beat.New(sink, schedulerOptions(cfg, sink)...)
	svcOpts := append([]service.Option{
		service.WithSweepPeriod(cfg.SweepPeriod()),
		service.WithRedrawPeriod(cfg.RedrawPeriod()),
	}, opts...)

	return &wiring{
		cfg:     cfg,
		backend: backend,
		async:   async,
		svc:     service.New(registry, scheduler, svcOpts...),
	}, nil
}

// start launches notification delivery and then the service drivers.
func (r *wiring) start(ctx context.Context) error {
	r.async.Start(ctx)
	return r.svc.Start(ctx)
}

// close stops the service, drains pending notifications and releases the
// store.
func (r *wiring) close() error {
	r.svc.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(r.async.Shutdown(ctx), r.backend.Close())
}

// closeLogged is close for deferred use.
func (r *wiring) closeLogged() {
	if err := r.close(); err != nil {
		logger.Get().Error(context.Background(), "shutdown incomplete", logger.Error(err))
	}
	_ = logger.Sync()
}
