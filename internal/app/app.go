package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/formiko/flagsh/internal/api"
	"github.com/formiko/flagsh/internal/auth"
	"github.com/formiko/flagsh/internal/config"
	"github.com/formiko/flagsh/internal/controller"
	"github.com/formiko/flagsh/internal/eventbus"
	"github.com/formiko/flagsh/internal/logging"
	"github.com/formiko/flagsh/internal/metrics"
	"github.com/formiko/flagsh/internal/observability"
	"github.com/formiko/flagsh/internal/registry"
	"github.com/formiko/flagsh/internal/storage"
	"github.com/formiko/flagsh/internal/world"
	"github.com/formiko/flagsh/internal/world/block"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App собирает все компоненты плагина по конфигу
type App struct {
	Config     *config.Config
	Host       world.EntityAPI
	Clearance  *block.ClearanceTable
	Store      storage.FlagStore
	Bus        eventbus.EventBus
	Registry   *registry.Registry
	Controller *controller.Controller
	Prometheus *prometheus.Registry

	api           *api.RestServer
	metricsSrv    *http.Server
	busLogger     eventbus.Subscription
	shutdownTrace func(context.Context) error
}

// New создает компоненты и загружает сохраненные флаги.
// host - хост сущностей игрового сервера; nil означает хост в памяти.
func New(ctx context.Context, cfg *config.Config, host world.EntityAPI) (*App, error) {
	if host == nil {
		host = world.NewManager()
	}

	a := &App{
		Config:     cfg,
		Host:       host,
		Clearance:  block.NewClearanceTable(),
		Prometheus: prometheus.NewRegistry(),
	}

	if err := a.Clearance.ApplyOverrides(cfg.Flags.WallClearance); err != nil {
		return nil, fmt.Errorf("wall clearance: %w", err)
	}

	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTelemetry(ctx, "flagsh", cfg.Telemetry.Endpoint, cfg.Telemetry.Insecure)
		if err != nil {
			return nil, fmt.Errorf("telemetry: %w", err)
		}
		a.shutdownTrace = shutdown
	}

	store, err := OpenStore(ctx, cfg.Storage)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = store

	bus, err := OpenBus(cfg.EventBus)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Bus = bus
	if sub, err := eventbus.StartLoggingListener(bus); err == nil {
		a.busLogger = sub
	} else {
		logging.Warn("⚠️ Логгер событий не запущен: %v", err)
	}

	a.Prometheus.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	flagMetrics, err := metrics.NewFlags(a.Prometheus)
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := metrics.RegisterBus(a.Prometheus, bus); err != nil {
		a.Close()
		return nil, err
	}

	a.Registry = registry.New(host, store, bus, flagMetrics)
	if _, err := a.Registry.Load(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.Controller = controller.New(host, a.Registry, a.Clearance, cfg.Flags)

	if cfg.API.Enabled {
		if err := a.buildAPI(); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *App) buildAPI() error {
	var tokens *auth.TokenManager
	if a.Config.API.JWTSecret != "" {
		tm, err := auth.NewTokenManager(a.Config.API.JWTSecret, a.Config.API.TokenTTL())
		if err != nil {
			return fmt.Errorf("api tokens: %w", err)
		}
		tokens = tm
	} else {
		logging.Warn("⚠️ api.jwt_secret не задан: админские эндпоинты отключены")
	}

	rs, err := api.NewRestServer(api.Config{
		Addr:       fmt.Sprintf(":%d", a.Config.API.GetPort()),
		Registry:   a.Registry,
		Bus:        a.Bus,
		Tokens:     tokens,
		SizeStep:   a.Config.Flags.IncreasingSizeStep,
		Registerer: a.Prometheus,
		Gatherer:   a.Prometheus,
	})
	if err != nil {
		return err
	}
	a.api = rs
	return nil
}

// OpenStore открывает хранилище флагов, выбранное в конфиге
func OpenStore(ctx context.Context, cfg config.StorageConfig) (storage.FlagStore, error) {
	switch cfg.Backend {
	case "memory":
		return storage.NewMemoryStore(), nil
	case "badger":
		return storage.NewBadgerStore(cfg.DataPath)
	case "redis":
		return storage.NewRedisStore(ctx, &storage.RedisConfig{
			Addr:      cfg.RedisAddr,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.KeyPrefix,
		})
	default:
		return nil, fmt.Errorf("storage backend %q is not supported", cfg.Backend)
	}
}

// OpenBus подключает JetStream, если задан URL, иначе создает шину в памяти
func OpenBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		return eventbus.NewMemoryBus(cfg.Buffer), nil
	}
	bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, cfg.RetentionDuration())
	if err != nil {
		return nil, fmt.Errorf("eventbus: %w", err)
	}
	return bus, nil
}

// Start запускает HTTP эндпоинты: /metrics и REST API
func (a *App) Start() {
	a.metricsSrv = metrics.Serve(fmt.Sprintf(":%d", a.Config.Server.GetMetricsPort()), a.Prometheus)
	if a.api != nil {
		a.api.Start()
	}
}

// API возвращает REST сервер или nil, если API выключен
func (a *App) API() *api.RestServer { return a.api }

// Close останавливает серверы и закрывает внешние подключения.
// Флаги не удаляются: их сущности живут у хоста и восстанавливаются при следующем запуске.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if a.api != nil {
		errs = append(errs, a.api.Stop(ctx))
	}
	if a.metricsSrv != nil {
		errs = append(errs, a.metricsSrv.Shutdown(ctx))
	}
	if a.busLogger != nil {
		a.busLogger.Unsubscribe()
	}
	if a.Bus != nil {
		errs = append(errs, a.Bus.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.shutdownTrace != nil {
		errs = append(errs, a.shutdownTrace(ctx))
	}
	return errors.Join(errs...)
}
