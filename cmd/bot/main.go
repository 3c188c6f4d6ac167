package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"birthday_notification_bot/internal/app"
	"birthday_notification_bot/internal/domain/birthday"
	"birthday_notification_bot/internal/domain/delivery"
	"birthday_notification_bot/internal/domain/user"
	"birthday_notification_bot/internal/infra/config"
	idb "birthday_notification_bot/internal/infra/database"
	"birthday_notification_bot/internal/infra/logger"
	"birthday_notification_bot/internal/infra/scheduler"
	"birthday_notification_bot/internal/infra/telegram"

	"gopkg.in/telebot.v3"
)

func main() {
	fmt.Println("Birthday Notification Bot starting...")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load application configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg)
	log := logger.Get().WithField("component", "main")
	log.Infof("Configuration loaded. LogLevel: %s, Environment: %s, Superadmin ID: %d",
		cfg.LogLevel, cfg.Environment, cfg.SuperadminTelegramID)

	ctx := context.Background()

	// Initialize Repositories. "memory://" keeps everything in process, which
	// is handy for local runs without a database file.
	var (
		userRepo     user.Repository
		birthdayRepo birthday.Repository
		deliveryRepo delivery.Repository
	)
	if cfg.DatabaseURL == "memory://" {
		userRepo = idb.NewInMemoryUserRepository(cfg.DefaultTimezone)
		birthdayRepo = idb.NewInMemoryBirthdayRepository()
		deliveryRepo = idb.NewInMemoryDeliveryRepository()
		log.Warn("Using in-memory storage; all data is lost on restart")
	} else {
		db, driver, err := idb.Open(cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("Could not connect to database")
		}
		defer db.Close()

		if err := idb.Migrate(db, driver, cfg.SuperadminTelegramID); err != nil {
			log.WithError(err).Fatal("Could not run database migrations")
		}
		log.Infof("Database ready (driver: %s)", driver)

		switch driver {
		case idb.DriverPostgres:
			userRepo = idb.NewPostgresUserRepository(db, cfg.DefaultTimezone)
			birthdayRepo = idb.NewPostgresBirthdayRepository(db)
			deliveryRepo = idb.NewPostgresDeliveryRepository(db)
		default:
			userRepo = idb.NewSQLiteUserRepository(db, cfg.DefaultTimezone)
			birthdayRepo = idb.NewSQLiteBirthdayRepository(db)
			deliveryRepo = idb.NewSQLiteDeliveryRepository(db)
		}
	}
	log.Info("Repositories initialized.")

	// Initialize Telegram Bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			entry := logger.Get().WithField("component", "telebot").WithError(err)
			if c != nil && c.Sender() != nil {
				entry = entry.WithField("sender_id", c.Sender().ID)
			}
			entry.Error("Unhandled bot error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		log.WithError(err).Fatal("Could not create Telegram bot")
	}

	// Initialize Services
	clock := app.SystemClock()
	birthdayService := app.NewBirthdayService(userRepo, birthdayRepo, clock,
		logger.Get().WithField("component", "birthday_service"))
	adminService := app.NewAdminService(userRepo, birthdayRepo, cfg.SuperadminTelegramID, clock)
	reminderService := app.NewReminderService(
		userRepo, birthdayRepo, deliveryRepo,
		telegram.NewTelebotAdapter(bot),
		clock,
		app.ReminderConfig{
			DailySendHour:      cfg.DailySendHour,
			WeeklySendHour:     cfg.WeeklySendHour,
			WeeklySendDay:      cfg.WeeklySendWeekday,
			UpcomingWindowDays: cfg.UpcomingWindowDays,
		},
		logger.Get().WithField("component", "reminder_service"),
	)
	log.Info("Services initialized.")

	// Initialize ReminderScheduler
	reminderScheduler := scheduler.NewReminderScheduler(
		reminderService,
		logger.Get().WithField("component", "scheduler"),
		cfg.CronSpecDaily,
		cfg.CronSpecWeekly,
	)
	if err := reminderScheduler.Start(); err != nil {
		log.WithError(err).Fatal("Could not start reminder scheduler")
	}

	// Register Handlers
	handlerLogger := logger.Get().WithField("component", "telegram")
	telegram.RegisterBotCommands(ctx, bot, birthdayService, userRepo, clock, handlerLogger)
	telegram.RegisterAdminHandlers(ctx, bot, adminService, handlerLogger)
	telegram.NewFlowHandler(birthdayService, handlerLogger).Register(ctx, bot)
	log.Info("Command handlers registered.")

	log.Info("Application setup complete. Bot and scheduler are starting...")

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	go bot.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down application...")
	reminderScheduler.Stop()
	bot.Stop()
	log.Info("Application shut down gracefully.")
}
