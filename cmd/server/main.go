package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/annel0/session-replay/internal/api"
	"github.com/annel0/session-replay/internal/auth"
	"github.com/annel0/session-replay/internal/catalog"
	"github.com/annel0/session-replay/internal/config"
	"github.com/annel0/session-replay/internal/eventbus"
	"github.com/annel0/session-replay/internal/keyframe"
	"github.com/annel0/session-replay/internal/logging"
	"github.com/annel0/session-replay/internal/metrics"
	"github.com/annel0/session-replay/internal/observability"
	"github.com/annel0/session-replay/internal/schedule"
	"github.com/annel0/session-replay/internal/scripting"
	"github.com/annel0/session-replay/internal/session"
	"github.com/annel0/session-replay/internal/sim"
	"github.com/annel0/session-replay/internal/timeref"
	"github.com/annel0/session-replay/internal/vec"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "", "YAML config path (default: $REPLAY_CONFIG)")
	interactive := flag.Bool("interactive", true, "Read Lua commands from stdin")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	logging.Configure(cfg.LoggingOptions())
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	logging.Info("🎬 Запуск сервера записи и воспроизведения сессий...")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// === ТЕЛЕМЕТРИЯ ===
	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTelemetry(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Endpoint)
		if err != nil {
			logging.Error("❌ Ошибка инициализации OpenTelemetry: %v", err)
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logging.Warn("Ошибка остановки OpenTelemetry: %v", err)
				}
			}()
		}
	}

	// === МЕТРИКИ И ШИНА СОБЫТИЙ ===
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	bus, err := openEventBus(cfg.EventBus)
	if err != nil {
		log.Fatalf("❌ Ошибка подключения к шине событий: %v", err)
	}
	defer bus.Close()

	if _, err := eventbus.StartLoggingListener(bus, logging.GetComponentLogger("events")); err != nil {
		logging.Warn("Не удалось подписать логгер на шину: %v", err)
	}
	exporter := eventbus.NewMetricsExporter(bus, reg, 10*time.Second)
	exporter.Start()
	defer exporter.Stop()

	metricsAddr := fmt.Sprintf(":%d", cfg.Server.GetMetricsPort())
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: m.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("❌ Ошибка сервера метрик: %v", err)
		}
	}()

	// === КАТАЛОГ ЗАПИСЕЙ ===
	cat, err := openCatalog(ctx, cfg.Catalog)
	if err != nil {
		log.Fatalf("❌ Ошибка открытия каталога записей: %v", err)
	}
	defer cat.Close()

	if err := os.MkdirAll(cfg.Recording.Dir, 0755); err != nil {
		log.Fatalf("❌ Ошибка создания каталога записей %s: %v", cfg.Recording.Dir, err)
	}

	// === ДВИЖОК ===
	epochs := timeref.J2000{}
	clock := sim.NewClock(cfg.Server.SimStart)
	camera := sim.NewNavigator(keyframe.CameraPose{Rotation: vec.IdentityQuat(), FocusNode: "Root"})

	engine := scripting.NewEngine(scripting.WithContext(ctx))
	scheduler := schedule.NewScheduler(engine, epochs, schedule.WithMetrics(m))
	scheduler.SetEnabled(cfg.Schedule.Enabled)
	mode, _ := cfg.ScheduleMode()
	scheduler.SetTimeReferenceMode(mode, clock.ApplicationTime(), clock.SimulationTime())

	ctrl := session.NewController(clock, camera, scheduler,
		session.WithEventBus(bus),
		session.WithCatalog(cat),
		session.WithMetrics(m),
	)
	engine.SetRecorder(ctrl)

	scripting.RegisterSessionLibrary(engine, ctrl, scripting.SessionPaths{
		Dir:      cfg.Recording.Dir,
		Compress: cfg.Recording.Compress,
	})
	scripting.RegisterSchedulerLibrary(engine, scheduler, clock, epochs)
	scripting.RegisterSimulationLibrary(engine, clock, epochs)

	for _, path := range cfg.Schedule.Files {
		entries, err := engine.LoadScheduleFile(path, epochs)
		if err != nil {
			logging.Error("❌ Ошибка загрузки расписания: %v", err)
			continue
		}
		scheduler.LoadScripts(entries...)
	}
	for _, path := range cfg.Scripting.Startup {
		if err := engine.RunFile(path); err != nil {
			logging.Error("❌ Ошибка стартового скрипта: %v", err)
		}
	}

	loop := sim.NewLoop(clock, camera, scheduler, ctrl, cfg.Server.TickRate)
	go loop.Run(ctx)

	// === REST API ===
	var restServer *api.RestServer
	if cfg.API.Enabled {
		restServer, err = newRestServer(cfg, ctrl, engine, loop, cat, clock, scheduler, reg)
		if err != nil {
			log.Fatalf("❌ Ошибка создания REST API: %v", err)
		}
		go func() {
			if err := restServer.Start(); err != nil {
				logging.Error("❌ Ошибка REST API: %v", err)
			}
		}()
	}

	if *interactive {
		go readCommands(ctx, loop, engine)
	}

	logging.Info("✅ Сервер запущен: %d тиков/с, метрики http://localhost%s/metrics", cfg.Server.TickRate, metricsAddr)
	<-ctx.Done()
	logging.Info("📡 Получен сигнал завершения, остановка...")

	// === GRACEFUL SHUTDOWN ===
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()

	if ctrl.IsRecording() {
		if err := ctrl.StopRecording(stopCtx); err != nil {
			logging.Error("❌ Ошибка завершения записи: %v", err)
		}
	}
	if ctrl.IsPlayingBack() {
		if err := ctrl.StopPlayback(stopCtx); err != nil {
			logging.Error("❌ Ошибка остановки воспроизведения: %v", err)
		}
	}
	if restServer != nil {
		if err := restServer.Stop(stopCtx); err != nil {
			logging.Warn("Ошибка остановки REST API: %v", err)
		}
	}
	if err := metricsSrv.Shutdown(stopCtx); err != nil {
		logging.Warn("Ошибка остановки сервера метрик: %v", err)
	}

	logging.Info("👋 Сервер успешно остановлен")
}

func openEventBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		logging.Info("📨 Шина событий в памяти")
		return eventbus.NewMemoryBus(1024), nil
	}
	logging.Info("📨 Шина событий JetStream: %s (stream %s)", cfg.URL, cfg.Stream)
	return eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
}

func openCatalog(ctx context.Context, cfg config.CatalogConfig) (catalog.Catalog, error) {
	settings := cfg.Settings()
	switch settings.Backend {
	case catalog.BackendRedis:
		logging.Info("🗂️ Каталог записей в Redis: %s", cfg.RedisAddr)
	case catalog.BackendMongo:
		logging.Info("🗂️ Каталог записей в MongoDB: %s", cfg.Mongo.URI)
	case catalog.BackendMaria:
		logging.Info("🗂️ Каталог записей в MariaDB: %s:%d", cfg.Maria.Host, cfg.Maria.Port)
	default:
		if cfg.Path == "" {
			logging.Warn("Каталог записей в памяти: сведения не переживут перезапуск")
		}
	}
	return catalog.Open(ctx, settings)
}

func newRestServer(cfg *config.Config, ctrl *session.Controller, engine *scripting.Engine, loop *sim.Loop,
	cat catalog.Catalog, clock *sim.Clock, scheduler *schedule.Scheduler, reg prometheus.Registerer) (*api.RestServer, error) {
	gin.SetMode(gin.ReleaseMode)

	var authority *auth.Authority
	if len(cfg.API.Users) > 0 {
		a, err := auth.NewAuthority(cfg.API.Secret, time.Duration(cfg.API.TokenTTL)*time.Minute)
		if err != nil {
			return nil, err
		}
		authority = a
	} else {
		logging.Warn("⚠️ REST API без аутентификации: в api.users нет пользователей")
	}

	return api.NewRestServer(api.Config{
		Addr:      fmt.Sprintf(":%d", cfg.API.GetPort()),
		Session:   ctrl,
		Scripts:   engine,
		Loop:      loop,
		Catalog:   cat,
		Clock:     clock,
		Scheduler: scheduler,
		Epochs:    timeref.J2000{},
		Paths: scripting.SessionPaths{
			Dir:      cfg.Recording.Dir,
			Compress: cfg.Recording.Compress,
		},
		Authority:  authority,
		Users:      cfg.API.Users,
		Registerer: reg,
	}), nil
}

// readCommands выполняет строки stdin как интерактивные Lua-команды
// в потоке цикла симуляции
func readCommands(ctx context.Context, loop *sim.Loop, engine *scripting.Engine) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var execErr error
		if err := loop.Submit(ctx, func() { execErr = engine.ExecuteInteractive(line) }); err != nil {
			return
		}
		if execErr != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", execErr)
		}
	}
}
