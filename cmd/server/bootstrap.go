package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mysterymsg/mystery/internal/api"
	"github.com/mysterymsg/mystery/internal/app"
	"github.com/mysterymsg/mystery/internal/app/maintenance"
	iauth "github.com/mysterymsg/mystery/internal/auth"
	"github.com/mysterymsg/mystery/internal/cache"
	"github.com/mysterymsg/mystery/internal/database"
	"github.com/mysterymsg/mystery/internal/middleware"
	"github.com/mysterymsg/mystery/internal/monitoring"
	"github.com/mysterymsg/mystery/internal/monitoring/checks"
	"github.com/mysterymsg/mystery/internal/security"
	"github.com/mysterymsg/mystery/internal/services"
	"github.com/mysterymsg/mystery/internal/store"
	"github.com/mysterymsg/mystery/pkg/logger"
	"github.com/mysterymsg/mystery/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	Stores    *database.Handle[store.Store]
	Accounts  *services.AccountService
	Inbox     *services.InboxService
	Jobs      *monitoring.JobTracker
	RateStore middleware.RateStore
	Scheduler *maintenance.Scheduler
	Router    *gin.Engine
}

// bootstrapRuntime opens the store, builds the services and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.Stores = database.NewHandle(func(ctx context.Context) (store.Store, error) {
		return openStore(ctx, cfg)
	})
	st, err := stack.Stores.Get(ctx)
	if err != nil {
		return nil, err
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	audit := security.NewAuditService(st, jwtSvc, cfg)
	logAudit(audit.Run(ctx), log)

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}

	stack.Accounts, err = services.NewAccountService(st,
		services.NewCodeIssuer(services.WithCodeTTL(cfg.Verification.CodeTTLOrDefault())),
		services.NewVerificationMailer(mailer, cfg.Email.VerificationBaseURL()),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise account service: %w", err)
	}

	stack.Inbox, err = services.NewInboxService(st)
	if err != nil {
		return nil, fmt.Errorf("initialise inbox service: %w", err)
	}

	stack.Jobs = monitoring.NewJobTracker()
	health := monitoring.NewHealthManager()
	health.RegisterReadiness(checks.Store(st, 0))
	health.RegisterReadiness(checks.Maintenance(stack.Jobs, 0))

	schedulerOpts := []maintenance.Option{
		maintenance.WithTracker(stack.Jobs),
		maintenance.WithStatsSchedule(strings.TrimSpace(cfg.Monitoring.StatsSchedule)),
	}

	stack.RateStore = middleware.NewMemoryRateStore()
	if cfg.Server.RateStore() == app.RateStoreDatabase {
		if sqlStore, ok := st.(*store.SQLStore); ok {
			counters := cache.NewDatabaseStore(sqlStore.DB())
			stack.RateStore = middleware.NewDatabaseRateStore(counters)
			schedulerOpts = append(schedulerOpts,
				maintenance.WithCounterPurger(counters, strings.TrimSpace(cfg.Server.RateLimit.PurgeSchedule)))
		} else {
			log.Warn("database rate store requires a SQL driver; using in-memory counters",
				zap.String("driver", cfg.Database.NormalisedDriver()))
		}
	}

	stack.Scheduler = maintenance.NewScheduler(st, schedulerOpts...)
	if err := stack.Scheduler.RunOnce(ctx); err != nil {
		log.Warn("initial maintenance run failed", zap.Error(err))
	}
	if err := stack.Scheduler.Start(); err != nil {
		return nil, fmt.Errorf("start maintenance jobs: %w", err)
	}

	stack.Router, err = api.NewRouter(api.Dependencies{
		Config:    cfg,
		Accounts:  stack.Accounts,
		Inbox:     stack.Inbox,
		JWT:       jwtSvc,
		Health:    health,
		Jobs:      stack.Jobs,
		Audit:     audit,
		RateStore: stack.RateStore,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	var errs error

	if s.Scheduler != nil {
		<-s.Scheduler.Stop().Done()
	}

	if s.Stores != nil {
		if st, ok := s.Stores.Reset(); ok && st != nil {
			errs = multierr.Append(errs, st.Close(ctx))
		}
	}

	if errs != nil {
		log.Warn("shutdown completed with errors", zap.Error(errs))
	}
}

func logAudit(result security.Result, log *zap.Logger) {
	for _, check := range result.Checks {
		fields := []zap.Field{zap.String("check", check.ID), zap.String("remediation", check.Remediation)}
		switch check.Status {
		case security.StatusFail:
			log.Error(check.Message, fields...)
		case security.StatusWarn:
			log.Warn(check.Message, fields...)
		}
	}
	log.Info("security audit completed",
		zap.Int("pass", result.Summary[string(security.StatusPass)]),
		zap.Int("warn", result.Summary[string(security.StatusWarn)]),
		zap.Int("fail", result.Summary[string(security.StatusFail)]),
	)
}

// openStore connects the backend selected by database.driver and prepares its schema.
func openStore(ctx context.Context, cfg *app.Config) (store.Store, error) {
	log := logger.WithModule("database")
	driver := cfg.Database.NormalisedDriver()

	if driver == app.DriverMongo {
		mongoCfg := cfg.Database.MongoConfig()
		client, err := database.OpenMongo(ctx, mongoCfg)
		if err != nil {
			return nil, fmt.Errorf("open mongodb: %w", err)
		}
		st, err := store.NewMongoStore(ctx, client, mongoCfg.Database)
		if err != nil {
			return nil, multierr.Append(fmt.Errorf("prepare mongodb store: %w", err), client.Disconnect(context.Background()))
		}
		log.Info("database connected", zap.String("driver", driver), zap.String("database", mongoCfg.Database))
		return st, nil
	}

	db, err := database.Open(cfg.Database.SQLConfig())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Prepare(db); err != nil {
		return nil, multierr.Append(fmt.Errorf("prepare database: %w", err), database.Close(db))
	}

	st, err := store.NewSQLStore(db)
	if err != nil {
		return nil, multierr.Append(err, database.Close(db))
	}

	log.Info("database connected", zap.String("driver", driver))
	return st, nil
}
