package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/account-service/internal/api/http"
	"github.com/spec-kit/account-service/internal/api/http/handlers"
	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/backend"
	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/directory"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/locking"
	"github.com/spec-kit/account-service/internal/notify"
	"github.com/spec-kit/account-service/internal/observability"
	"github.com/spec-kit/account-service/internal/persistence"
	"github.com/spec-kit/account-service/internal/repository"
	"github.com/spec-kit/account-service/internal/service"
	"github.com/spec-kit/account-service/internal/tasks"
	"github.com/spec-kit/account-service/internal/validate"
	"github.com/spec-kit/account-service/internal/worker"
)

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

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()

	pool := pg.PoolHandle()
	requestRepo := repository.NewAccountRequestRepository(pool)
	staffRepo := repository.NewStaffRepository(pool)

	dir := directory.NewLDAPClient(directory.LDAPOptions{
		URL:             cfg.Directory.LDAPURL,
		BindDN:          cfg.Directory.BindDN,
		BindPassword:    cfg.Directory.BindPassword,
		AccountsBaseDN:  cfg.Directory.AccountsBaseDN,
		AffiliateBaseDN: cfg.Directory.AffiliateBaseDN,
		MinUID:          cfg.Directory.MinUID,
	}, logger)

	// The creation lock has to hold across every instance, so Redis is the
	// locker of record; the in-process one only covers a single node.
	var locker locking.Locker
	if err := redis.Ping(ctx); err != nil {
		logger.Warn("redis unavailable, using in-process creation lock", zap.Error(err))
		locker = locking.NewMemoryLocker()
	} else {
		locker = locking.NewRedisLocker(redis.Client, cfg.App.Name)
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	if cfg.NATS.URL != "" {
		conn, err := nats.Connect(cfg.NATS.URL, nats.Name(cfg.App.Name))
		if err != nil {
			logger.Warn("nats unavailable, events stay local", zap.Error(err))
		} else {
			defer conn.Close()
			dispatcher = events.NewNATSDispatcher(conn, cfg.NATS.SubjectPrefix, dispatcher, logger)
		}
	}
	worker.StartAuditWorker(dispatcher, logger)

	validator := validate.New(dir, requestRepo, cfg.Directory.ReservedPrefixes, logger)
	registry := tasks.NewRegistry(cfg.Lock.TaskTimeout(), cfg.Lock.TaskRetain(), logger)
	notifier := notify.NewMailNotifier(cfg.Notify.EmailFrom, cfg.Notify.SMTPAddr, logger)

	accountService := service.NewAccountService(service.AccountDependencies{
		RequestRepo: requestRepo,
		Directory:   dir,
		Validator:   validator,
		Locker:      locker,
		Credentials: backend.NewKerberos(cfg.Kerberos.KadminPath, cfg.Kerberos.AdminPrincipal, cfg.Kerberos.Keytab, logger),
		Provisioner: backend.NewFSProvisioner(cfg.Provision.HomeRoot, cfg.Provision.WebRoot, logger),
		Notifier:    notifier,
		Dispatcher:  dispatcher,
		Tasks:       registry,
		LockWait:    cfg.Lock.Wait(),
		LockTTL:     cfg.Lock.TTL(),
		Metrics:     metrics,
		Logger:      logger,
	})

	authService := service.NewAuthService(cfg.Auth, staffRepo)
	authMiddleware := auth.NewMiddleware(authService.TokenManager(), staffRepo)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Requests:       handlers.NewRequestsHandler(accountService),
		Review:         handlers.NewReviewHandler(accountService),
		Staff:          handlers.NewStaffHandler(authService),
		AuthMiddleware: authMiddleware,
		MetricsHandler: metrics.Handler(),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
