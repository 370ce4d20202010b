// Package api - REST API управления записью и воспроизведением сессий
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/annel0/session-replay/internal/auth"
	"github.com/annel0/session-replay/internal/catalog"
	"github.com/annel0/session-replay/internal/logging"
	"github.com/annel0/session-replay/internal/middleware"
	"github.com/annel0/session-replay/internal/scripting"
	"github.com/annel0/session-replay/internal/session"
	"github.com/annel0/session-replay/internal/timeref"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Session - контроллер сессии; реализуется session.Controller
type Session interface {
	scripting.SessionControl
	State() session.State
}

// ScriptExecutor выполняет интерактивные команды
type ScriptExecutor interface {
	ExecuteInteractive(script string) error
}

// Dispatcher выполняет fn в потоке цикла симуляции; реализуется sim.Loop
type Dispatcher interface {
	Submit(ctx context.Context, fn func()) error
}

// Clock - текущие показания часов
type Clock interface {
	ApplicationTime() float64
	SimulationTime() float64
}

// ModeSource сообщает режим времени планировщика
type ModeSource interface {
	Mode() timeref.Mode
}

// Config содержит зависимости REST сервера
type Config struct {
	Addr       string                // адрес для запуска сервера
	Session    Session               // контроллер сессии
	Scripts    ScriptExecutor        // движок скриптов
	Loop       Dispatcher            // nil - команды выполняются в потоке запроса
	Catalog    catalog.Catalog       // каталог записей
	Clock      Clock                 // часы симуляции
	Scheduler  ModeSource            // планировщик скриптов
	Epochs     timeref.EpochConverter
	Paths      scripting.SessionPaths
	Authority  *auth.Authority       // nil - аутентификация выключена
	Users      []auth.User
	Registerer prometheus.Registerer // метрики HTTP
	Logger     *logging.Logger
}

// RestServer представляет REST API сервер
type RestServer struct {
	router  *gin.Engine
	server  *http.Server
	cfg     Config
	metrics *ServerMetrics
	log     *logging.Logger
}

// NewRestServer создает новый REST API сервер
func NewRestServer(cfg Config) *RestServer {
	if cfg.Addr == "" {
		cfg.Addr = ":8088"
	}
	if cfg.Epochs == nil {
		cfg.Epochs = timeref.J2000{}
	}
	log := cfg.Logger
	if log == nil {
		log = logging.GetComponentLogger("api")
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("replay_api"))
	router.Use(middleware.NewRequestLogger(log).Handler())
	router.Use(middleware.NewPrometheusMiddleware("replay_api", cfg.Registerer).Handler())

	rs := &RestServer{
		router:  router,
		server:  &http.Server{Addr: cfg.Addr, Handler: router},
		cfg:     cfg,
		metrics: NewServerMetrics(),
		log:     log,
	}
	rs.setupRoutes()
	return rs
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	api := rs.router.Group("/api")

	if rs.cfg.Authority != nil {
		api.POST("/auth/login", rs.handleLogin)
	}

	protected := api.Group("/")
	protected.Use(rs.jwtMiddleware())
	{
		protected.GET("/status", rs.handleStatus)
		protected.GET("/recordings", rs.handleListRecordings)
		protected.GET("/recordings/:id", rs.handleGetRecording)

		operator := protected.Group("/")
		operator.Use(rs.operatorMiddleware())
		{
			operator.DELETE("/recordings/:id", rs.handleDeleteRecording)
			operator.POST("/session/recording", rs.handleStartRecording)
			operator.DELETE("/session/recording", rs.handleStopRecording)
			operator.POST("/session/playback", rs.handleStartPlayback)
			operator.DELETE("/session/playback", rs.handleStopPlayback)
			operator.POST("/scripts", rs.handleExecuteScript)
		}
	}

	rs.router.GET("/health", rs.handleHealth)
}

// Handler возвращает http.Handler сервера
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// Start запускает сервер; блокируется до Stop
func (rs *RestServer) Start() error {
	rs.log.Info("🌐 REST API на %s", rs.cfg.Addr)
	if err := rs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop останавливает сервер, дожидаясь текущих запросов
func (rs *RestServer) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return rs.server.Shutdown(ctx)
}

// submit выполняет команду в потоке цикла симуляции
func (rs *RestServer) submit(ctx context.Context, fn func() error) error {
	if rs.cfg.Loop == nil {
		return fn()
	}
	var err error
	if serr := rs.cfg.Loop.Submit(ctx, func() { err = fn() }); serr != nil {
		return serr
	}
	return err
}
