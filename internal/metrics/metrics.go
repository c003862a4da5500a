package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/formiko/flagsh/internal/eventbus"
	"github.com/formiko/flagsh/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "flagsh"

// Flags инкапсулирует Prometheus-метрики операций с флагами.
// Нулевой указатель допустим: все методы становятся no-op.
type Flags struct {
	placed    prometheus.Counter
	extended  prometheus.Counter
	removed   prometheus.Counter
	rollbacks prometheus.Counter
	active    prometheus.Gauge
}

// NewFlags создаёт метрики и регистрирует их в reg.
func NewFlags(reg prometheus.Registerer) (*Flags, error) {
	m := &Flags{
		placed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flags_placed_total",
			Help:      "Число установленных флагов.",
		}),
		extended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flags_extended_total",
			Help:      "Число увеличений размера флагов.",
		}),
		removed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flags_removed_total",
			Help:      "Число сломанных флагов.",
		}),
		rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spawn_rollbacks_total",
			Help:      "Откаты создания сущностей после ошибки хоста.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flags_active",
			Help:      "Количество флагов в реестре.",
		}),
	}

	for _, c := range []prometheus.Collector{m.placed, m.extended, m.removed, m.rollbacks, m.active} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Flags) Placed() {
	if m != nil {
		m.placed.Inc()
	}
}

func (m *Flags) Extended() {
	if m != nil {
		m.extended.Inc()
	}
}

func (m *Flags) Removed() {
	if m != nil {
		m.removed.Inc()
	}
}

func (m *Flags) Rollback() {
	if m != nil {
		m.rollbacks.Inc()
	}
}

// SetActive выставляет число флагов в реестре
func (m *Flags) SetActive(n int) {
	if m != nil {
		m.active.Set(float64(n))
	}
}

// RegisterBus экспортирует статистику шины событий.
// Значения читаются из bus.Metrics() в момент сбора.
func RegisterBus(reg prometheus.Registerer, bus eventbus.EventBus) error {
	stat := func(get func(eventbus.Stats) float64) func() float64 {
		return func() float64 { return get(bus.Metrics()) }
	}

	collectors := []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "eventbus",
			Name:      "messages_published_total",
			Help:      "Общее число опубликованных сообщений.",
		}, stat(func(s eventbus.Stats) float64 { return float64(s.Published) })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "eventbus",
			Name:      "messages_consumed_total",
			Help:      "Общее число доставленных сообщений подписчикам.",
		}, stat(func(s eventbus.Stats) float64 { return float64(s.Consumed) })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "eventbus",
			Name:      "messages_dropped_total",
			Help:      "Сообщений, отброшенных из-за ошибок или ограничения back-pressure.",
		}, stat(func(s eventbus.Stats) float64 { return float64(s.Dropped) })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "eventbus",
			Name:      "messages_inflight",
			Help:      "Количество сообщений, находящихся в очереди (не доставленных).",
		}, stat(func(s eventbus.Stats) float64 { return float64(s.InFlight) })),
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Serve запускает HTTP-эндпоинт /metrics на addr (например, ":2112").
// Метод неблокирующий; возвращает сервер для остановки через Shutdown.
func Serve(addr string, g prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logging.Info("📈 Prometheus /metrics доступен по адресу %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Ошибка Prometheus HTTP сервера: %v", err)
		}
	}()
	return srv
}
