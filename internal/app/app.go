package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/config"
	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/greeting"
	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/httpapi"
	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/push"
	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/scheduler"
	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/store"
	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/telegram"
)

type App struct {
	cfg    config.Config
	log    *zap.Logger
	bot    *tgbotapi.BotAPI
	router *telegram.Router
	repo   store.Repo
	sched  *scheduler.Scheduler
	http   *httpapi.Server

	schedDone chan struct{} // closed when the scheduler loop returns
}

// New connects to the configured services. Telegram, FCM and Gemini are optional and
// skipped when their credentials are empty.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	repo, err := store.Open(ctx, cfg.DBDriver, cfg.DBPath, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	log.Info("store ready", zap.String("driver", cfg.DBDriver))

	a := &App{cfg: cfg, log: log, repo: repo}

	var gen greeting.Generator
	if cfg.GeminiAPIKey != "" {
		g, err := greeting.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Warn("gemini disabled", zap.Error(err))
		} else {
			gen = g
		}
	}

	opts := []scheduler.Option{
		scheduler.WithInterval(cfg.CheckInterval),
		scheduler.WithLink(cfg.NotificationURL),
	}

	if cfg.FirebaseCreds != "" {
		sender, err := push.NewSender(ctx, cfg.FirebaseCreds, log.Named("push"))
		if err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("init fcm: %w", err)
		}
		opts = append(opts, scheduler.WithPush(sender))
	} else {
		log.Info("FIREBASE_CREDENTIALS_PATH not set, web push disabled")
	}

	var router *telegram.Router
	if cfg.TelegramToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("init telegram: %w", err)
		}
		bot.Debug = false
		a.bot = bot
		router = telegram.NewRouter(bot, log.Named("telegram"), repo, nil)
		opts = append(opts, scheduler.WithSender(router))
	} else {
		log.Info("TELEGRAM_BOT_TOKEN not set, telegram disabled")
	}

	composer := greeting.NewComposer(gen, log.Named("greeting"))
	a.sched = scheduler.New(repo, log.Named("scheduler"), composer, opts...)
	if router != nil {
		router.SetPlanner(a.sched)
		a.router = router
	}

	if cfg.CronSecret == "" {
		log.Warn("CRON_SECRET not set, /api/cron/check-birthdays is unauthenticated")
	}
	a.http = httpapi.New(repo, a.sched, log.Named("http"),
		httpapi.WithCronSecret(cfg.CronSecret),
		httpapi.WithPDFFont(cfg.PDFFontPath),
	)
	return a, nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting birthday-reminder",
		zap.String("http", a.cfg.HTTPAddr),
		zap.Bool("scheduler", a.cfg.SchedulerEnabled),
		zap.Bool("telegram", a.bot != nil),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := a.http.Listen(a.cfg.HTTPAddr); err != nil {
			a.log.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	if a.cfg.SchedulerEnabled {
		a.schedDone = make(chan struct{})
		go func() {
			defer close(a.schedDone)
			a.sched.Run(ctx)
		}()
	}

	var updCh tgbotapi.UpdatesChannel
	if a.bot != nil {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 30
		updCh = a.bot.GetUpdatesChan(u)
	}

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")
			return a.shutdown()

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}

func (a *App) shutdown() error {
	if a.bot != nil {
		a.bot.StopReceivingUpdates()
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err := a.http.Shutdown(shCtx)
	cancel()
	if err != nil {
		a.log.Warn("http server shutdown error", zap.Error(err))
	}

	// An in-flight check must finish before the store goes away.
	if a.schedDone != nil {
		<-a.schedDone
	}

	if err := a.repo.Close(); err != nil {
		a.log.Warn("store close error", zap.Error(err))
	}
	return nil
}
