package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/formiko/flagsh/internal/app"
	"github.com/formiko/flagsh/internal/config"
	wallflag "github.com/formiko/flagsh/internal/flag"
	"github.com/formiko/flagsh/internal/logging"
	"github.com/formiko/flagsh/internal/vec"
	"github.com/formiko/flagsh/internal/world"
	"github.com/formiko/flagsh/internal/world/block"
	"github.com/google/uuid"
)

func main() {
	configPath := flag.String("config", "", "Путь к YAML конфигу (по умолчанию FLAGSH_CONFIG)")
	demo := flag.Bool("demo", false, "Повесить, увеличить и сломать тестовый баннер при старте")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	// Инициализируем систему логирования
	if cfg.Logging.Dir != "" {
		logging.SetLogDir(cfg.Logging.Dir)
	}
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	level := logging.ParseLevel(cfg.Logging.Level)
	applyLogLevel(level)

	logging.Info("🚩 Запуск flagsh: storage=%s, eventbus=%s", cfg.Storage.Backend, busName(cfg))

	ctx := context.Background()
	a, err := app.New(ctx, cfg, world.NewManager())
	if err != nil {
		logging.Error("❌ Ошибка инициализации: %v", err)
		log.Fatalf("❌ Ошибка инициализации: %v", err)
	}
	applyLogLevel(level) // логгеры, созданные при сборке компонентов
	a.Start()
	logging.Info("✅ Сервисы запущены: %d флагов в реестре", a.Registry.Len())
	logging.Info("   📈 Метрики: http://localhost:%d/metrics", cfg.Server.GetMetricsPort())
	if cfg.API.Enabled {
		logging.Info("   🌐 REST API: http://localhost:%d/api/flags", cfg.API.GetPort())
	}

	if *demo {
		runDemo(ctx, a)
	}

	// Канал для получения сигналов ОС
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logging.Info("📡 Получен сигнал %v, завершение работы...", sig)

	if err := a.Close(); err != nil {
		logging.Error("❌ Ошибка остановки: %v", err)
	}
	logging.Info("👋 Сервер успешно остановлен")
}

func busName(cfg *config.Config) string {
	if cfg.EventBus.URL == "" {
		return "memory"
	}
	return cfg.EventBus.URL
}

// applyLogLevel выставляет уровень консоли всем уже созданным логгерам компонентов
func applyLogLevel(level logging.LogLevel) {
	lm := logging.GetLoggerManager()
	for _, component := range lm.ListComponents() {
		if err := lm.SetLogLevel(component, level, logging.TRACE); err != nil {
			logging.Warn("Не удалось выставить уровень логов %s: %v", component, err)
		}
	}
}

// runDemo проводит баннер через весь жизненный цикл на хосте в памяти
func runDemo(ctx context.Context, a *app.App) {
	w := uuid.New()
	anchor := block.New(w, vec.Vec3{X: 0, Y: 64, Z: 0}, block.MaterialSolid)
	wall := block.New(w, vec.Vec3{X: 1, Y: 64, Z: 0}, block.MaterialSolid)
	held := world.ItemStack{Material: "white_banner", Amount: 3}

	f, held, err := a.Controller.PlaceBanner(ctx, anchor, wall, held, wallflag.VariantBanner)
	if err != nil {
		logging.Error("demo: place: %v", err)
		return
	}

	hitbox := f.Hitboxes()[0]
	if held, err = a.Controller.Interact(ctx, hitbox, held); err != nil {
		logging.Error("demo: extend: %v", err)
		return
	}
	logging.Info("demo: флаг %s увеличен до %.2f, в руке осталось %d", f.Key(), f.Size(), held.Amount)

	dropped, err := a.Controller.Attack(ctx, f.Hitboxes()[0])
	if err != nil {
		logging.Error("demo: remove: %v", err)
		return
	}
	logging.Info("demo: флаг сломан, выпало %d предметов", dropped)
}
