package main // process entry: flags, configuration, wiring and lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/iliyamo/event-ticket-bot/internal/bot"
	"github.com/iliyamo/event-ticket-bot/internal/config"
	"github.com/iliyamo/event-ticket-bot/internal/database"
	"github.com/iliyamo/event-ticket-bot/internal/handler"
	"github.com/iliyamo/event-ticket-bot/internal/logger"
	"github.com/iliyamo/event-ticket-bot/internal/metrics"
	"github.com/iliyamo/event-ticket-bot/internal/queue"
	"github.com/iliyamo/event-ticket-bot/internal/ratelimit"
	"github.com/iliyamo/event-ticket-bot/internal/repository"
	"github.com/iliyamo/event-ticket-bot/internal/router"
	"github.com/iliyamo/event-ticket-bot/internal/service"
	"github.com/iliyamo/event-ticket-bot/internal/session"
)

// Exit statuses.  exitRestart asks the service manager to start the bot
// again after a database reset.
const (
	exitOK      = 0
	exitFailure = 1
	exitRestart = 3
)

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file read before the environment")
	mode := pflag.String("mode", "", "update source: polling or webhook (overrides BOT_MODE)")
	migrateOnly := pflag.Bool("migrate-only", false, "apply database migrations and exit")
	pflag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", *envFile, err)
		os.Exit(exitFailure)
	}
	if *mode != "" {
		_ = os.Setenv("BOT_MODE", *mode)
	}
	cfg := config.Load()

	log, err := logger.New(logger.Config{
		ServiceName: "ticketbot",
		Environment: cfg.Env,
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(exitFailure)
	}
	code := run(cfg, *migrateOnly, log)
	_ = log.Sync()
	os.Exit(code)
}

func run(cfg config.Config, migrateOnly bool, log *zap.Logger) int {
	db, err := database.Open(cfg)
	if err != nil {
		log.Error("open database", zap.Error(err), zap.String("driver", cfg.DBDriver))
		return exitFailure
	}
	defer db.Close()
	if err := database.RunMigrations(db, cfg.DBDriver); err != nil {
		log.Error("migrate database", zap.Error(err))
		return exitFailure
	}
	if migrateOnly {
		log.Info("migrations applied")
		return exitOK
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Error("connect to telegram", zap.Error(err))
		return exitFailure
	}
	log.Info("telegram bot authorized", zap.String("username", api.Self.UserName))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()
	var wg sync.WaitGroup
	spawn := func(f func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f(workCtx)
		}()
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable: pending approvals kept in memory, rate limiting disabled")
	} else {
		defer rdb.Close()
	}
	var pending service.PendingStore = service.NewMemoryPending(cfg.PendingTTL)
	if rdb != nil {
		pending = service.NewRedisPending(rdb, cfg.PendingTTL)
	}
	limiter := ratelimit.New(config.LoadRateLimitConfig(), rdb)
	mtr := metrics.New(prometheus.DefaultRegisterer)

	var publisher service.EventPublisher = service.NopPublisher{}
	if config.BrokerEnabled() {
		url := config.BrokerURL()
		async := service.NewAsyncPublisher(&service.AMQPPublisher{URL: url, Log: log.Named("publisher")}, 256, log.Named("publisher"))
		publisher = async
		spawn(async.Run)
		consumer := &queue.Consumer{URL: url, LogDir: "logs", Log: log.Named("consumer")}
		spawn(func(ctx context.Context) {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("ticket consumer stopped", zap.Error(err))
			}
		})
	}

	users := repository.NewUserRepo(db)
	orgs := repository.NewOrgRepo(db, cfg.DBDriver)
	events := repository.NewEventRepo(db)
	products := repository.NewProductRepo(db, cfg.DBDriver)
	promos := repository.NewPromoRepo(db)
	tickets := repository.NewTicketRepo(db, cfg.DBDriver)
	blacklist := repository.NewBlacklistRepo(db)

	access, err := service.NewAccess(cfg.SuperAdminID, orgs)
	if err != nil {
		log.Error("build access policy", zap.Error(err))
		return exitFailure
	}
	if cfg.SuperAdminID == 0 {
		log.Warn("ADMIN_ID is not set: no super admin")
	}
	reports := service.NewReports(events, tickets)
	supervisor := service.NewSupervisor()
	sessions := session.NewStore(cfg.SessionIdleTTL)
	spawn(func(ctx context.Context) { sessions.RunJanitor(ctx, time.Minute) })

	b := bot.New(bot.Deps{
		Messenger: bot.NewTelegram(api),
		Sessions:  sessions,
		Users:     users,
		Orgs:      orgs,
		Events:    events,
		Products:  products,
		Promos:    promos,
		Blacklist: blacklist,
		Access:    access,
		Auth:      service.NewAuth(users, cfg.BcryptCost),
		Tickets: service.NewTickets(service.TicketsDeps{
			DB: db, Products: products, Tickets: tickets, Promos: promos, Access: access,
			Publisher: publisher, Metrics: mtr, Log: log,
		}),
		Pending: pending,
		Reports: reports,
		Maintenance: &service.Maintenance{
			DB: db, Driver: cfg.DBDriver, Supervisor: supervisor, Log: log.Named("maintenance"),
		},
		Limiter:        limiter,
		Metrics:        mtr,
		Log:            log.Named("bot"),
		OrgQuota:       cfg.OrgLimitPerOwner,
		BroadcastDelay: cfg.BroadcastDelay,
		ReportSecret:   cfg.JWTSecret,
		ReportLinkTTL:  cfg.ReportLinkTTL,
		PublicBaseURL:  cfg.PublicBaseURL,
	})
	pool := bot.NewPool(b, cfg.Workers, cfg.QueueSize)
	spawn(pool.Run)
	// Pending tickets whose approval record expired or was lost with the
	// process are discarded so their unit goes back on sale.
	sweepAge := max(cfg.PendingTTL, time.Minute)
	spawn(func(ctx context.Context) { b.RunPendingSweeper(ctx, time.Minute, sweepAge) })

	routes := router.Routes{
		Health: &handler.HealthHandler{DB: db, Redis: rdb},
		Reports: &handler.ReportHandler{
			Events: events, Reports: reports, Access: access, Log: log.Named("reports"),
		},
		ReportSecret: cfg.JWTSecret,
		Limiter:      limiter,
		Log:          log.Named("http"),
	}
	if cfg.BotMode == "webhook" {
		routes.Webhook = &handler.WebhookHandler{Secret: cfg.WebhookSecret, Queue: pool, Log: log.Named("webhook")}
		if err := setWebhook(api, cfg.WebhookURL, cfg.WebhookSecret); err != nil {
			log.Error("register webhook", zap.Error(err))
			return exitFailure
		}
		log.Info("webhook registered", zap.String("url", cfg.WebhookURL))
	} else {
		if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			log.Warn("delete webhook", zap.Error(err))
		}
		spawn(func(ctx context.Context) { bot.Poll(ctx, api, pool, log.Named("poll")) })
		log.Info("long polling started")
	}

	e := router.New(routes)
	srvErr := make(chan error, 1)
	go func() {
		addr := ":" + cfg.HTTPPort
		log.Info("http listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	code := exitOK
	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case <-supervisor.Restart():
		log.Warn("restart requested")
		code = exitRestart
	case err := <-srvErr:
		log.Error("http server failed", zap.Error(err))
		code = exitFailure
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	cancelWork()
	wg.Wait()
	log.Info("stopped", zap.Int("exit_code", code))
	return code
}

// setWebhook registers url with Telegram.  The secret_token parameter is
// sent as a raw field since the client's WebhookConfig predates it.
func setWebhook(api *tgbotapi.BotAPI, url, secret string) error {
	params := tgbotapi.Params{"url": url}
	params.AddNonEmpty("secret_token", secret)
	resp, err := api.MakeRequest("setWebhook", params)
	if err != nil {
		return err
	}
	if !resp.Ok {
		return fmt.Errorf("setWebhook: %s", resp.Description)
	}
	return nil
}
