package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/formiko/flagsh/internal/auth"
	"github.com/formiko/flagsh/internal/eventbus"
	"github.com/formiko/flagsh/internal/flag"
	"github.com/formiko/flagsh/internal/logging"
	"github.com/formiko/flagsh/internal/middleware"
	"github.com/formiko/flagsh/internal/registry"
	"github.com/formiko/flagsh/internal/vec"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RestServer - админский REST API над реестром флагов
type RestServer struct {
	router   *gin.Engine
	srv      *http.Server
	reg      *registry.Registry
	bus      eventbus.EventBus
	tokens   *auth.TokenManager
	sizeStep float64
	metrics  *ServerMetrics
	log      *logging.Logger
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Addr       string             // адрес для запуска сервера, например ":8088"
	Registry   *registry.Registry // реестр флагов
	Bus        eventbus.EventBus  // шина событий, может быть nil
	Tokens     *auth.TokenManager // nil отключает админские эндпоинты
	SizeStep   float64            // flags.increasing_size_step, для числа выпавших предметов
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// FlagView - флаг в ответах API
type FlagView struct {
	Key string `json:"key"`
	flag.State
}

// ResizeRequest - запрос на изменение размера флага
type ResizeRequest struct {
	Size float32 `json:"size" binding:"required,gt=0"`
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) (*RestServer, error) {
	if config.Addr == "" {
		config.Addr = ":8088"
	}
	if config.Registry == nil {
		return nil, errors.New("api: registry is required")
	}
	if config.Registerer == nil {
		config.Registerer = prometheus.DefaultRegisterer
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	log := logging.GetComponentLogger("api")

	// === Observability middleware ===
	router.Use(otelgin.Middleware("flagsh_api"))
	router.Use(middleware.NewRequestLogger(log).Handler())

	promMw, err := middleware.NewPrometheusMiddleware("flagsh_api", config.Registerer)
	if err != nil {
		return nil, fmt.Errorf("api metrics: %w", err)
	}
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Gatherer)

	rs := &RestServer{
		router:   router,
		reg:      config.Registry,
		bus:      config.Bus,
		tokens:   config.Tokens,
		sizeStep: config.SizeStep,
		metrics:  NewServerMetrics(),
		log:      log,
	}
	rs.srv = &http.Server{
		Addr:              config.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	rs.setupRoutes()
	return rs, nil
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")
	{
		api.GET("/stats", rs.handleStats)
		api.GET("/flags", rs.handleListFlags)
		api.GET("/flags/:world/:x/:y/:z", rs.handleGetFlag)
	}

	// Административные эндпоинты (только для админов)
	admin := api.Group("/admin")
	admin.Use(rs.jwtMiddleware(), rs.adminMiddleware())
	{
		admin.PUT("/flags/:world/:x/:y/:z/size", rs.handleResizeFlag)
		admin.DELETE("/flags/:world/:x/:y/:z", rs.handleRemoveFlag)
	}
}

// Handler возвращает http.Handler сервера (используется в тестах)
func (rs *RestServer) Handler() http.Handler { return rs.router }

// Start запускает REST сервер в отдельной горутине
func (rs *RestServer) Start() {
	go func() {
		rs.log.Info("🌐 REST API доступен по адресу %s", rs.srv.Addr)
		if err := rs.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rs.log.Error("❌ Ошибка REST API сервера: %v", err)
		}
	}()
}

// Stop останавливает REST сервер, дожидаясь завершения запросов
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.srv.Shutdown(ctx)
}

// handleHealth возвращает состояние сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "OK",
		Data: map[string]interface{}{
			"uptime": rs.metrics.GetUptime(),
			"flags":  rs.reg.Len(),
		},
	})
}

// handleStats возвращает статистику сервера
func (rs *RestServer) handleStats(c *gin.Context) {
	stats := map[string]interface{}{
		"flags":  rs.reg.Len(),
		"memory": rs.metrics.GetDetailedMemoryStats(),
	}

	server := map[string]interface{}{"uptime": rs.metrics.GetUptime()}
	if cpu, err := rs.metrics.GetCPUUsage(); err == nil {
		server["cpu_percent"] = cpu
	}
	if rss, err := rs.metrics.GetRSS(); err == nil {
		server["rss_mb"] = rss
	}
	stats["server"] = server

	if rs.bus != nil {
		stats["eventbus"] = rs.bus.Metrics()
	}

	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Статистика сервера", Data: stats})
}

// handleListFlags возвращает все флаги
func (rs *RestServer) handleListFlags(c *gin.Context) {
	flags := rs.reg.All()
	views := make([]FlagView, 0, len(flags))
	for _, f := range flags {
		views = append(views, FlagView{Key: f.Key(), State: f.Snapshot()})
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список флагов получен",
		Data: map[string]interface{}{
			"flags": views,
			"total": len(views),
		},
	})
}

// handleGetFlag возвращает флаг по якорю
func (rs *RestServer) handleGetFlag(c *gin.Context) {
	f, ok := rs.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Флаг найден",
		Data:    FlagView{Key: f.Key(), State: f.Snapshot()},
	})
}

// handleResizeFlag задает флагу новый размер
func (rs *RestServer) handleResizeFlag(c *gin.Context) {
	var req ResizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный формат запроса"})
		return
	}

	f, ok := rs.lookup(c)
	if !ok {
		return
	}

	if err := rs.reg.Extend(c.Request.Context(), f, req.Size); err != nil {
		rs.log.Warn("Resize %s by %s failed: %v", f.Key(), c.GetString("operator"), err)
		c.JSON(statusFor(err), GenericResponse{Success: false, Message: err.Error()})
		return
	}

	rs.log.Info("Flag %s resized to %.2f by %s", f.Key(), req.Size, c.GetString("operator"))
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Размер флага изменен",
		Data:    FlagView{Key: f.Key(), State: f.Snapshot()},
	})
}

// handleRemoveFlag ломает флаг как игрок: предметы выпадают на якоре
func (rs *RestServer) handleRemoveFlag(c *gin.Context) {
	f, ok := rs.lookup(c)
	if !ok {
		return
	}

	dropped, err := rs.reg.Remove(c.Request.Context(), f, rs.sizeStep)
	if err != nil {
		c.JSON(statusFor(err), GenericResponse{Success: false, Message: err.Error()})
		return
	}

	rs.log.Info("Flag %s removed by %s", f.Key(), c.GetString("operator"))
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Флаг удален",
		Data:    map[string]interface{}{"key": f.Key(), "dropped": dropped},
	})
}

// lookup разбирает якорь из пути и находит флаг; при ошибке пишет ответ сам
func (rs *RestServer) lookup(c *gin.Context) (*flag.Flag, bool) {
	worldID, err := uuid.Parse(c.Param("world"))
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный ID мира"})
		return nil, false
	}

	var pos vec.Vec3
	for _, p := range []struct {
		name string
		dst  *int
	}{{"x", &pos.X}, {"y", &pos.Y}, {"z", &pos.Z}} {
		v, err := strconv.Atoi(c.Param(p.name))
		if err != nil {
			c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверная координата " + p.name})
			return nil, false
		}
		*p.dst = v
	}

	f, ok := rs.reg.At(worldID, pos)
	if !ok {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Флаг не найден"})
		return nil, false
	}
	return f, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, flag.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, flag.ErrSpawn):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
