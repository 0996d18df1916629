package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	backendhttp "cloudtune-ops/internal/backend/http"
	"cloudtune-ops/internal/backend/mock"
	"cloudtune-ops/internal/bot"
	"cloudtune-ops/internal/config"
	"cloudtune-ops/internal/dbquery"
	"cloudtune-ops/internal/deploy"
	"cloudtune-ops/internal/monitor"
	"cloudtune-ops/internal/notify"
	"cloudtune-ops/internal/server"
	"cloudtune-ops/internal/service"
	storage_gorm "cloudtune-ops/internal/storage/gorm"
	"cloudtune-ops/internal/telemetry"

	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "Path to the configuration file (JSON or YAML)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Локальная БД истории ---
	db, err := storage_gorm.Open(cfg.DB.DSN, cfg.DB.MigrationsPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	log.Println("Database migrations applied successfully.")

	deployRepo, err := storage_gorm.NewGormDeployRepository(db)
	if err != nil {
		log.Fatalf("Failed to create deploy repository: %v", err)
	}
	alertRepo, err := storage_gorm.NewGormAlertRepository(db)
	if err != nil {
		log.Fatalf("Failed to create alert repository: %v", err)
	}

	// --- Метрики ---
	meterProvider, metricsHandler, err := telemetry.NewPrometheus()
	if err != nil {
		log.Fatalf("Failed to create metrics exporter: %v", err)
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Printf("Failed to shut down meter provider: %v", err)
		}
	}()
	metrics, err := telemetry.New(meterProvider)
	if err != nil {
		log.Fatalf("Failed to create metrics: %v", err)
	}

	state := monitor.NewState()
	if err := metrics.ObserveBackendUp(func() int64 { return state.Backend().Gauge() }); err != nil {
		log.Printf("Failed to register backend gauge: %v", err)
	}

	// --- Зависимости ---
	var backend service.BackendClient
	if cfg.Backend.UseMock {
		log.Println("Using mock backend client.")
		backend = mock.NewMonitoringClientMock()
	} else {
		backend = backendhttp.NewMonitoringClient(cfg.Backend.BaseURL, cfg.Backend.HealthPath, cfg.Backend.MonitoringAPIKey, cfg.RequestTimeout())
	}

	var library service.LibraryQuerier
	docker, err := dbquery.NewDockerExecutor()
	if err != nil {
		log.Printf("Docker is unavailable, user lookups are disabled: %v", err)
	} else {
		defer docker.Close()
		library = dbquery.NewClient(docker, cfg.Library.ContainerName, cfg.Library.DBUser, cfg.Library.DBName)
	}

	runner := deploy.NewRunner(deploy.Options{
		ScriptPath: cfg.Deploy.ScriptPath,
		RepoURL:    cfg.Deploy.RepoURL,
		AppDir:     cfg.Deploy.AppDir,
		Timeout:    cfg.DeployTimeout(),
	}, deployRepo, metrics)

	runtime := service.NewRuntime(cfg.Telegram.AllowedChatIDs, cfg.DeployChatIDs(), cfg.Alerts.RecipientChatIDs)

	sessions := service.NewUserSessions(service.DefaultSessionTTL)
	go sessions.Start()
	defer sessions.Stop()

	monitoringService := service.NewMonitoringService(backend, library, sessions, deployRepo, alertRepo, state, cfg.Telegram.UsersPageSize)

	telegramBot, err := bot.NewBot(cfg.Telegram.BotToken, monitoringService, runtime, runner, bot.DeploySettings{
		Enabled: cfg.Deploy.Enabled,
		Branch:  cfg.Deploy.Branch,
	}, cfg.CheckInterval())
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	var mirrors []bot.Mirror
	discord, err := notify.NewDiscord(cfg.Discord.BotToken, cfg.Discord.ChannelID)
	if err != nil {
		log.Printf("Discord mirror is disabled: %v", err)
	} else if discord != nil {
		mirrors = append(mirrors, discord)
	}
	broadcaster := bot.NewBroadcaster(telegramBot.Sender(), runtime, metrics, mirrors...)

	// --- Запуск ---
	g, gctx := errgroup.WithContext(ctx)

	var trigger server.WatchdogTrigger
	if cfg.Alerts.Enabled {
		watchdog := monitor.NewWatchdog(backend, backend, broadcaster, alertRepo, state, metrics, monitor.Options{
			Interval:      cfg.CheckInterval(),
			NotifyOnStart: cfg.Alerts.NotifyOnStart,
			Limits:        cfg.Alerts.Limits,
		})
		trigger = watchdog
		g.Go(func() error {
			return watchdog.Run(gctx)
		})
	} else {
		log.Println("Watchdog is disabled.")
	}

	router := server.NewRouter(monitoringService, trigger, metricsHandler, cfg.Server.WebhookToken)
	g.Go(func() error {
		return server.Start(gctx, cfg.Server.AppPort, router)
	})

	g.Go(func() error {
		telegramBot.Start(gctx)
		return nil
	})

	log.Println("Application started. Press Ctrl+C to exit.")
	if err := g.Wait(); err != nil {
		log.Printf("Application stopped with error: %v", err)
		return
	}
	log.Println("Application stopped.")
}
