package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "time/tzdata"

	"personal-days-bot/internal/api"
	"personal-days-bot/internal/config"
	"personal-days-bot/internal/handler"
	"personal-days-bot/internal/repository"
	"personal-days-bot/internal/service"
	"personal-days-bot/pkg/calendar"
	"personal-days-bot/pkg/mailer"
	"personal-days-bot/pkg/telegram"
	"personal-days-bot/pkg/trigger"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	logrus.Info("Initializing config...")
	cfg := config.GetBotConfig()
	logrus.Info("Config initialized...")

	logger := logrus.New()
	logger.SetLevel(cfg.LogLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logrus.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Инициализируем SQLite базу данных
	db, err := gorm.Open(sqlite.Open(cfg.DatabaseURL), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true, // SQLite ограничения
	})
	if err != nil {
		logrus.Fatal("Failed to connect to database:", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		logrus.Fatal("Failed to get database instance:", err)
	}

	// Одна запись за раз, иначе SQLite отвечает "database is locked"
	sqlDB.SetMaxOpenConns(1)

	store, err := repository.NewGormTabularStore(db)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create tabular store")
	}

	userRepo, err := repository.NewGormUserRepository(db)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create user repository")
	}

	requestRepo := repository.NewSheetLeaveRequestRepository(store, cfg.Location)
	exceptionRepo := repository.NewSheetExceptionRepository(store, cfg.Location)
	adminRepo := repository.NewSheetAdminRecipientRepository(store)

	userService := service.NewUserService(userRepo, adminRepo)
	exceptionService := service.NewExceptionService(exceptionRepo, cfg.Location)

	// Администраторы и закрытые даты из конфига
	if added, err := userService.SeedAdmins(ctx, cfg.AdminEmails); err != nil {
		logrus.WithError(err).Warn("Failed to seed admin recipients")
	} else if added > 0 {
		logrus.Infof("Seeded %d admin recipients", added)
	}

	if cfg.ExceptionsFile != "" {
		if _, err := exceptionService.LoadFromJSON(ctx, cfg.ExceptionsFile); err != nil {
			logrus.WithError(err).Warn("Failed to load exception dates")
		}
	}

	// Telegram необязателен: без токена работает только HTTP
	var client *telegram.Client
	if cfg.TelegramToken != "" {
		client, err = telegram.NewClient(cfg.TelegramToken, cfg.TelegramDebug)
		if err != nil {
			logrus.Fatal("Failed to create Telegram client:", err)
		}
		logrus.Infof("Authorized on account %s", client.Bot.Self.UserName)
	}

	notifier := buildNotifier(cfg, client, userRepo, logger)
	feed := calendar.NewICSFeed(cfg.CalendarFile, "Personal days")

	dispatcher := service.NewQueueDispatcher(64, logger)

	limits := service.DefaultRuleLimits()
	limits.MinLeadDays = cfg.MinLeadDays
	limits.MaxLeadMonths = cfg.MaxLeadMonths
	limits.WeekdayQuota = cfg.WeekdayQuota
	limits.SpecialQuota = cfg.SpecialQuota
	engine := service.NewRuleEngine(limits, cfg.Location)

	requestService := service.NewLeaveRequestService(
		requestRepo,
		exceptionRepo,
		engine,
		feed,
		notifier,
		dispatcher,
		cfg.Location,
	).WithLogger(logger).WithDirectory(service.NewUserDirectory(userRepo))

	reminderService := service.NewReminderService(
		requestRepo,
		adminRepo,
		notifier,
		cfg.ReminderHorizonDays,
		cfg.Location,
	).WithLogger(logger)

	exportService := service.NewExportService(requestRepo, cfg.Location)

	var wg sync.WaitGroup

	// Ежедневное напоминание администраторам
	schedule, err := trigger.Parse(cfg.ReminderRRule, time.Now(), cfg.Location)
	if err != nil {
		logrus.WithError(err).Fatal("Invalid reminder schedule")
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		schedule.Run(ctx, "reminder_digest", func(ctx context.Context) error {
			_, err := reminderService.NotifyExpiringSoon(ctx)
			return err
		})
	}()

	if cfg.HTTPAddr != "" {
		server := api.NewServer(requestService, reminderService, userService, exportService, cfg.Location, logger)
		app := server.App()

		wg.Add(1)
		go func() {
			defer wg.Done()
			logrus.Infof("HTTP API listening on %s", cfg.HTTPAddr)
			if err := app.Listen(cfg.HTTPAddr); err != nil {
				logrus.WithError(err).Error("HTTP server stopped")
			}
		}()

		go func() {
			<-ctx.Done()
			if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
				logrus.WithError(err).Warn("HTTP shutdown failed")
			}
		}()
	}

	if client != nil {
		botHandler := handler.NewHandler(
			client,
			userService,
			requestService,
			reminderService,
			exceptionService,
			exportService,
			cfg,
		)

		updates := client.Bot.GetUpdatesChan(client.UpdateConfig)

		wg.Add(1)
		go func() {
			defer wg.Done()
			botHandler.HandleUpdates(ctx, updates)
		}()
	}

	logrus.Info("Bot started. Press Ctrl+C to stop.")
	<-ctx.Done()

	if client != nil {
		client.Bot.StopReceivingUpdates()
	}
	wg.Wait()

	// Дожидаемся календаря и уведомлений, поставленных до остановки
	dispatcher.Close()

	if err := sqlDB.Close(); err != nil {
		logrus.Infof("Error closing database: %v", err)
	}

	logrus.Info("Bot stopped gracefully")
}

// buildNotifier собирает каналы уведомлений: почта и/или Telegram
func buildNotifier(cfg *config.BotConfig, client *telegram.Client, users repository.UserRepository, logger *logrus.Logger) service.Notifier {
	var channels service.FanoutNotifier

	if cfg.MailEnabled() {
		m, err := mailer.NewSMTPMailer(mailer.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			logrus.WithError(err).Fatal("Invalid SMTP configuration")
		}
		channels = append(channels, m)
	}

	if client != nil {
		lookup := func(ctx context.Context, email string) (int64, error) {
			user, err := users.GetByEmail(ctx, email)
			if err != nil || user == nil {
				return 0, err
			}
			return user.ChatID, nil
		}
		channels = append(channels, telegram.NewNotifier(client, lookup, cfg.BaseAdminChatID, logger))
	}

	if len(channels) == 0 {
		logrus.Warn("No notification channel configured, notifications are disabled")
		return nil
	}
	return channels
}
