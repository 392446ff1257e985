package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/repairdesk/repair-desk/internal/api/http"
	"github.com/repairdesk/repair-desk/internal/api/http/handlers"
	"github.com/repairdesk/repair-desk/internal/auth"
	"github.com/repairdesk/repair-desk/internal/config"
	"github.com/repairdesk/repair-desk/internal/events"
	"github.com/repairdesk/repair-desk/internal/intake"
	"github.com/repairdesk/repair-desk/internal/notify"
	"github.com/repairdesk/repair-desk/internal/observability"
	"github.com/repairdesk/repair-desk/internal/persistence"
	"github.com/repairdesk/repair-desk/internal/repository"
	"github.com/repairdesk/repair-desk/internal/service"
	"github.com/repairdesk/repair-desk/internal/session"
	"github.com/repairdesk/repair-desk/internal/worker"
)

type repositories struct {
	tickets     repository.TicketRepository
	technicians repository.TechnicianRepository
	customers   repository.CustomerRepository
	history     repository.TicketHistoryRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}
	repos := buildRepositories(pg)

	var redis *persistence.Redis
	var sessions session.Store
	if cfg.Intake.SessionStore == "redis" {
		redis = persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		sessions = session.NewRedisStore(redis.Client, cfg.Intake.IdleTimeout())
	} else {
		logger.Info("intake sessions kept in memory")
		sessions = session.NewMemoryStore(cfg.Intake.IdleTimeout())
	}

	var transport notify.Transport
	if cfg.Chat.BotToken != "" {
		transport = notify.NewTelegramTransport(cfg.Chat.APIBaseURL, cfg.Chat.BotToken)
	} else {
		logger.Warn("CHAT_BOT_TOKEN not set, outbound messages are only logged")
		transport = notify.NewLogTransport(logger)
	}

	metrics := observability.NewMetrics()
	authz := auth.NewAuthorizer(cfg.Access.AdminIDs, cfg.Access.StaffIDs)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	bus := events.NewInMemoryDispatcher(logger)
	worker.StartHistoryWorker(bus, repos.history, logger)

	notifications := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher:  notify.NewDispatcher(transport, logger, metrics, cfg.Chat.SendTimeout()),
		Customers:   repos.customers,
		Authorizer:  authz,
		Roster:      cfg.Technicians,
		StaffChatID: cfg.Chat.StaffChatID,
		Logger:      logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     repos.tickets,
		TechnicianRepo: repos.technicians,
		HistoryRepo:    repos.history,
		Logger:         logger,
	})
	if err := ticketService.SyncRoster(ctx, cfg.Technicians); err != nil {
		logger.Fatal("failed to register technicians", zap.Error(err))
	}
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:     repos.tickets,
		TechnicianRepo: repos.technicians,
		Notifications:  notifications,
		Dispatcher:     bus,
		Authorizer:     authz,
		Logger:         logger,
	})
	lifecycleService := service.NewLifecycleService(service.LifecycleDependencies{
		TicketRepo:     repos.tickets,
		TechnicianRepo: repos.technicians,
		Notifications:  notifications,
		Dispatcher:     bus,
		Authorizer:     authz,
		Logger:         logger,
	})
	ratingService := service.NewRatingService(service.RatingDependencies{
		TicketRepo:     repos.tickets,
		TechnicianRepo: repos.technicians,
		CustomerRepo:   repos.customers,
		Notifications:  notifications,
		Authorizer:     authz,
		Logger:         logger,
	})
	intakeService := service.NewIntakeService(service.IntakeDependencies{
		Flow:          intake.NewFlow(intake.DefaultCatalog()),
		Sessions:      sessions,
		TicketRepo:    repos.tickets,
		CustomerRepo:  repos.customers,
		Notifications: notifications,
		Dispatcher:    bus,
		Authorizer:    authz,
		Metrics:       metrics,
		Logger:        logger,
	})

	inquiryService := service.NewInquiryService(service.InquiryDependencies{
		TicketRepo:     repos.tickets,
		TechnicianRepo: repos.technicians,
		CustomerRepo:   repos.customers,
		Logger:         logger,
	})

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Chat: handlers.NewChatHandler(handlers.ChatHandlerDependencies{
			Intake:        intakeService,
			Inquiry:       inquiryService,
			Assignment:    assignmentService,
			Lifecycle:     lifecycleService,
			Rating:        ratingService,
			Notifications: notifications,
			WebhookSecret: cfg.Chat.WebhookSecret,
			Logger:        logger,
		}),
		Tickets:        handlers.NewTicketsHandler(ticketService, assignmentService, lifecycleService),
		Technicians:    handlers.NewTechniciansHandler(ticketService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Authorizer:     authz,
	})
	app.Get("/metrics", func(c *fiber.Ctx) error {
		return c.JSON(metrics.Snapshot())
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func buildRepositories(pg *persistence.Postgres) repositories {
	if !pg.Enabled() {
		store := repository.NewMemoryStore()
		return repositories{
			tickets:     store.Tickets(),
			technicians: store.Technicians(),
			customers:   store.Customers(),
			history:     store.History(),
		}
	}
	pool := pg.PoolHandle()
	return repositories{
		tickets:     repository.NewTicketRepository(pool),
		technicians: repository.NewTechnicianRepository(pool),
		customers:   repository.NewCustomerRepository(pool),
		history:     repository.NewTicketHistoryRepository(pool),
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
