package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"review_reply_bot/internal/app"
	"review_reply_bot/internal/domain/posting"
	iapi "review_reply_bot/internal/infra/api"
	"review_reply_bot/internal/infra/config"
	idb "review_reply_bot/internal/infra/database"
	"review_reply_bot/internal/infra/logger"
	"review_reply_bot/internal/infra/scheduler"
	"review_reply_bot/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")

	mainLogger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"operator_id": cfg.OperatorTelegramID,
		"api":         cfg.APIBaseURL,
	}).Info("Review reply bot starting...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Outcome journal (optional)
	var journal posting.OutcomeRepository
	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = idb.NewPostgresConnection(cfg.DatabaseURL)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not connect to database")
		}
		defer db.Close()

		schemaCtx, schemaCancel := context.WithTimeout(ctx, 10*time.Second)
		err = idb.EnsureSchema(schemaCtx, db)
		schemaCancel()
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not prepare journal schema")
		}
		journal = idb.NewPostgresOutcomeRepository(db)
		mainLogger.Info("Outcome journal enabled.")
	} else {
		mainLogger.Info("DATABASE_URL not set, outcome journal disabled.")
	}

	apiClient := iapi.NewClient(iapi.Config{
		BaseURL:    cfg.APIBaseURL,
		Token:      cfg.APIToken,
		Timeout:    cfg.HTTPTimeout,
		MaxRetries: cfg.HTTPMaxRetries,
	}, logger.Component("api"))

	board := app.NewReviewBoard(apiClient, logger.Component("review_board"))
	jobs := app.NewJobStore()
	intervalScheduler := scheduler.NewIntervalScheduler(logger.Component("scheduler"))

	// Initialize Telegram Bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := logger.Component("telebot").WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithFields(logrus.Fields{"text": c.Text(), "sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
			}
			entry.Error("Telegram handler error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not create Telegram bot")
	}
	telegramClient := telegram.NewTelebotAdapter(bot)

	notifier := telegram.NewNotifier(telegramClient, cfg.OperatorTelegramID, cfg.NotificationTTL, logger.Component("notifier"))
	progressView := telegram.NewProgressView(telegramClient, board, cfg.OperatorTelegramID, logger.Component("progress"))
	jobs.Subscribe(progressView.Observe)
	if _, err := intervalScheduler.Every("progress", cfg.ProgressRefreshInterval, progressView.Flush); err != nil {
		mainLogger.WithError(err).Fatal("Could not schedule progress refresh")
	}

	postingService := app.NewPostingService(
		jobs,
		board,
		apiClient,
		intervalScheduler,
		notifier,
		journal,
		app.PostingConfig{
			PollInterval:      cfg.PollInterval,
			CountdownInterval: cfg.CountdownInterval,
			MaxPollFailures:   cfg.MaxPollFailures,
		},
		logger.Component("posting"),
	)
	if err := postingService.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not start posting service")
	}
	historyService := app.NewHistoryService(journal, cfg.OperatorTelegramID)

	// Register Handlers
	handlerLogger := logger.Component("handlers")
	telegram.RegisterBotCommands(bot, cfg.OperatorTelegramID, historyService.Enabled(), handlerLogger)
	telegram.RegisterOperatorHandlers(ctx, bot, board, postingService, historyService, cfg.OperatorTelegramID, cfg.UpgradeURL, handlerLogger)
	mainLogger.Info("Command handlers registered.")

	intervalScheduler.Start()
	go bot.Start()
	mainLogger.Info("Application setup complete. Bot and scheduler are running.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received

	mainLogger.Info("Shutting down application...")
	bot.Stop()
	cancel()
	postingService.Stop()
	intervalScheduler.Stop()
	mainLogger.Info("Application shut down gracefully.")
}
