package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/folio/backend/internal/bot"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/certificates"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/config"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/contacts"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/database"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/events"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/geo"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/notify"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/ratelimit"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/telegram"
	"github.com/MarcoPoloResearchLab/folio/backend/internal/visitors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const driverMemory = "memory"

type application struct {
	contacts     *contacts.Service
	visitors     *visitors.Service
	certificates certificates.Source
	limiter      ratelimit.Limiter
	bot          *bot.Interpreter
	purger       *visitors.Purger

	closers []func() error
	logger  *zap.Logger
}

// Close releases resources in reverse order of acquisition.
func (a *application) Close() {
	for index := len(a.closers) - 1; index >= 0; index-- {
		if err := a.closers[index](); err != nil {
			a.logger.Warn("shutdown step failed", zap.Error(err))
		}
	}
}

func buildApplication(cfg config.AppConfig, logger *zap.Logger) (*application, error) {
	app := &application{logger: logger}

	contactStore, visitorStore, err := app.buildStores(cfg.Database, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	limiter, err := app.buildLimiter(cfg.RateLimit, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.limiter = limiter

	publisher, err := app.buildPublisher(cfg.Events, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	location, err := time.LoadLocation(cfg.Telegram.Timezone)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("telegram timezone: %w", err)
	}
	dispatcher, err := buildDispatcher(cfg.Telegram, location, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	locator := geo.NewClient(geo.ClientConfig{
		BaseURL:    cfg.Geo.APIURL,
		Timeout:    cfg.Geo.Timeout,
		HTTPClient: &http.Client{Timeout: cfg.Geo.Timeout},
	})

	app.contacts, err = contacts.NewService(contacts.ServiceConfig{
		Store:    contactStore,
		Notifier: dispatcher,
		Events:   publisher,
		Logger:   logger,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	app.visitors, err = visitors.NewService(visitors.ServiceConfig{
		Store:    visitorStore,
		Locator:  locator,
		Notifier: dispatcher,
		Events:   publisher,
		Logger:   logger,
	})
	if err != nil {
		app.Close()
		return nil, err
	}

	app.bot = bot.NewInterpreter(bot.Config{
		ChatID:    cfg.Telegram.ChatID,
		Messenger: dispatcher,
		Contacts:  app.contacts,
		Visitors:  app.visitors,
		Location:  location,
		Logger:    logger,
	})

	app.certificates, err = buildCertificateSource(cfg.Certificates)
	if err != nil {
		app.Close()
		return nil, err
	}

	if cfg.Retention.VisitorDays > 0 {
		app.purger = visitors.NewPurger(visitors.PurgerConfig{
			Store:     visitorStore,
			Retention: time.Duration(cfg.Retention.VisitorDays) * 24 * time.Hour,
			Interval:  cfg.Retention.Interval,
			Logger:    logger,
		})
	}

	return app, nil
}

func (a *application) buildStores(cfg config.DatabaseConfig, logger *zap.Logger) (contacts.Store, visitors.Store, error) {
	if cfg.Driver == driverMemory {
		var seed []contacts.Message
		if cfg.SeedDemo {
			seed = contacts.DemoMessages()
		}
		logger.Warn("using in-memory storage; data is lost on restart")
		return contacts.NewMemoryStore(nil, seed...), visitors.NewMemoryStore(nil), nil
	}

	dbConfig := database.Config{
		Driver:   cfg.Driver,
		Path:     cfg.Path,
		DSN:      cfg.DSN,
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
		Name:     cfg.Name,
	}
	db, err := database.Open(dbConfig, logger, &contacts.Message{}, &visitors.Event{})
	if err != nil {
		return nil, nil, err
	}

	executor, err := database.NewExecutor(database.ExecutorConfig{
		Database: db,
		Connector: database.ConnectorFunc(func() (*gorm.DB, error) {
			return database.Connect(dbConfig)
		}),
		MaxAttempts: cfg.MaxAttempts,
		RetryDelay:  cfg.RetryDelay,
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, executor.Close)

	contactStore, err := contacts.NewGormStore(executor, nil)
	if err != nil {
		return nil, nil, err
	}
	visitorStore, err := visitors.NewGormStore(executor, nil)
	if err != nil {
		return nil, nil, err
	}
	return contactStore, visitorStore, nil
}

func (a *application) buildLimiter(cfg config.RateLimitConfig, logger *zap.Logger) (ratelimit.Limiter, error) {
	if cfg.Backend != "redis" {
		return ratelimit.NewMemoryLimiter(nil), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	a.closers = append(a.closers, client.Close)
	return ratelimit.NewRedisLimiter(ratelimit.RedisConfig{Client: client, Logger: logger}), nil
}

func (a *application) buildPublisher(cfg config.EventsConfig, logger *zap.Logger) (events.Publisher, error) {
	if cfg.AMQPURL == "" {
		return events.NopPublisher{}, nil
	}
	publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.Queue)
	if err != nil {
		return nil, fmt.Errorf("events publisher: %w", err)
	}
	a.closers = append(a.closers, publisher.Close)
	logger.Info("publishing domain events", zap.String("queue", cfg.Queue))
	return publisher, nil
}

// buildDispatcher returns a no-op dispatcher when Telegram credentials are absent.
func buildDispatcher(cfg config.TelegramConfig, location *time.Location, logger *zap.Logger) (*notify.Dispatcher, error) {
	dispatcherConfig := notify.DispatcherConfig{
		ChatID:   cfg.ChatID,
		Location: location,
		Timeout:  cfg.Timeout,
		Logger:   logger,
	}
	if !cfg.Enabled() {
		logger.Info("telegram notifications disabled")
		return notify.NewDispatcher(dispatcherConfig), nil
	}

	client, err := telegram.NewClient(telegram.ClientConfig{
		Token:         cfg.BotToken,
		BaseURL:       cfg.APIURL,
		HTTPClient:    &http.Client{Timeout: cfg.Timeout},
		RatePerSecond: cfg.RatePerSecond,
	})
	if err != nil {
		if errors.Is(err, telegram.ErrMissingToken) {
			return notify.NewDispatcher(dispatcherConfig), nil
		}
		return nil, err
	}
	dispatcherConfig.Sender = client
	return notify.NewDispatcher(dispatcherConfig), nil
}

func buildCertificateSource(cfg config.CertificatesConfig) (certificates.Source, error) {
	if cfg.S3Bucket == "" {
		return certificates.NewDirectorySource(cfg.Dir, cfg.URLPrefix), nil
	}
	return certificates.NewS3Source(certificates.S3Config{
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		Prefix:    cfg.S3Prefix,
		URLPrefix: cfg.URLPrefix,
	})
}
