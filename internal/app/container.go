package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/config"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/database"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/eventbus"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/locking"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/middleware"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/observability"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/queue"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/security"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/sqlc"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/modules/absences"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/modules/health"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/shared/validator"
)

type Container struct {
	Config         *config.Config
	DB             *database.DB
	Breaker        *database.BreakerDB
	Logger         *observability.Logger
	Repo           *sqlc.Repository
	JWTService     *security.JWTService
	AuthMiddleware *middleware.AuthMiddleware
	Validator      *validator.Validator
	Metrics        *observability.Metrics
	AuditLogger    *observability.AuditLogger

	Calculator     *absences.EndTimeCalculator
	Queue          *queue.Queue
	Locker         locking.Locker
	AbsenceService *absences.Service
	Dispatcher     *absences.Dispatcher
	Detector       *absences.Detector
	Scheduler      *absences.Scheduler
	AbsenceHandler *absences.Handler
	EventHandler   *absences.EventHandler

	HealthHandler *health.Handler

	rateLimiter security.RateLimiter
	redisMu     sync.RWMutex
	redisClient *redis.Client
}

func NewContainer(cfg *config.Config, db *database.DB, logger *observability.Logger) *Container {
	metrics := observability.NewMetrics()
	jwtService := security.NewJWTService(&cfg.JWT)
	validatorInstance := validator.New()

	var auditLogger *observability.AuditLogger
	if cfg.AuditLog.Enabled && cfg.AuditLog.Path != "" {
		dedicatedAuditLogger, err := observability.NewDedicatedAuditLogger(
			cfg.AuditLog.Path,
			cfg.AuditLog.Format,
		)
		if err != nil {
			logger.Error(context.Background(), "Failed to initialize dedicated audit logger, falling back to main logger",
				zap.Error(err),
				zap.String("path", cfg.AuditLog.Path),
			)
			auditLogger = observability.NewAuditLogger(logger)
		} else {
			logger.Info(context.Background(), "Audit logging enabled with dedicated file",
				zap.String("path", cfg.AuditLog.Path),
				zap.String("format", cfg.AuditLog.Format),
			)
			auditLogger = dedicatedAuditLogger
		}
	} else {
		auditLogger = observability.NewAuditLogger(logger)
	}

	var breaker *database.BreakerDB
	if cfg.Database.CircuitBreaker.Enabled {
		logger.Info(context.Background(), "Initializing database circuit breaker",
			zap.Bool("enabled", cfg.Database.CircuitBreaker.Enabled),
			zap.Uint32("max_failures", cfg.Database.CircuitBreaker.MaxFailures),
			zap.Float64("failure_threshold", cfg.Database.CircuitBreaker.FailureThreshold),
			zap.Duration("reset_timeout", cfg.Database.CircuitBreaker.ResetTimeout),
		)
		breaker = database.NewBreakerDB(db, cfg.Database.CircuitBreaker, metrics, logger)
	}
	repo := sqlc.NewRepository(db, breaker)

	c := &Container{
		Config:         cfg,
		DB:             db,
		Breaker:        breaker,
		Logger:         logger,
		Repo:           repo,
		JWTService:     jwtService,
		AuthMiddleware: middleware.NewAuthMiddleware(jwtService, metrics, auditLogger),
		Validator:      validatorInstance,
		Metrics:        metrics,
		AuditLogger:    auditLogger,
	}
	c.wireAbsences()

	c.HealthHandler = health.NewHandler(db.DB)
	c.HealthHandler.SetTaskCounter(c.Queue)
	if cfg.Redis.Enabled {
		c.HealthHandler.SetRedisClientProvider(func() (redis.Cmdable, error) {
			return c.GetRedisClient()
		})
	}

	return c
}

// wireAbsences builds the scheduling core: calculator, queue, reconciliation
// service and the transports in front of it.
func (c *Container) wireAbsences() {
	cfg := c.Config
	loc, err := cfg.Scheduling.Location()
	if err != nil {
		c.Logger.Warn(context.Background(), "Invalid scheduling time zone, using server local zone",
			zap.String("timezone", cfg.Scheduling.Timezone),
			zap.Error(err),
		)
		loc = time.Local
	}

	c.Calculator = absences.NewEndTimeCalculator(loc, cfg.Scheduling.GracePeriod)
	c.Queue = queue.New(c.Repo, queue.ConfigFrom(&cfg.Scheduling), c.Metrics, c.Logger)
	c.Locker = c.GetLocker()

	store := absences.NewRepository(c.Repo)
	c.AbsenceService = absences.NewService(store, store, store, store, c.Locker, c.Calculator,
		absences.ReconcileConfigFrom(&cfg.Scheduling), c.Logger, c.Metrics, c.AuditLogger)
	c.Dispatcher = absences.NewDispatcher(c.AbsenceService, c.Queue, c.Logger, c.Metrics)
	c.Detector = absences.NewDetector(c.Calculator, c.Dispatcher, c.Logger, c.Metrics)
	c.Scheduler = absences.NewScheduler(store, c.AbsenceService, c.Calculator, cfg.Scheduling.SweepLookback, c.Logger, c.Metrics)
	c.AbsenceHandler = absences.NewHandler(c.Detector, c.AbsenceService, c.Queue, c.Validator, c.AuditLogger)
	c.EventHandler = absences.NewEventHandler(c.Detector, c.Validator)
}

// NewEventConsumer returns nil when kafka is disabled.
func (c *Container) NewEventConsumer() *eventbus.Consumer {
	if !c.Config.Kafka.Enabled {
		return nil
	}
	return eventbus.NewConsumer(eventbus.NewReader(&c.Config.Kafka), c.EventHandler, c.Logger, c.Metrics)
}

// GetRedisClient provides a thread-safe singleton that allows retries on failure
func (c *Container) GetRedisClient() (*redis.Client, error) {
	c.redisMu.RLock()
	if c.redisClient != nil {
		client := c.redisClient
		c.redisMu.RUnlock()
		return client, nil
	}
	c.redisMu.RUnlock()

	c.redisMu.Lock()
	defer c.redisMu.Unlock()

	// Double-check after acquiring lock
	if c.redisClient != nil {
		return c.redisClient, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:            fmt.Sprintf("%s:%s", c.Config.Redis.Host, c.Config.Redis.Port),
		Password:        c.Config.Redis.Password,
		DB:              c.Config.Redis.DB,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		PoolSize:        c.Config.Redis.PoolSize,
		MinIdleConns:    c.Config.Redis.MinIdleConns,
		MaxRetries:      c.Config.Redis.MaxRetries,
		ConnMaxLifetime: c.Config.Redis.ConnMaxLifetime,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		c.redisClient = nil
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	c.redisClient = client
	return c.redisClient, nil
}

// GetLocker returns the per-session reconciliation lock: redis when enabled and
// reachable, otherwise an in-process lock.
func (c *Container) GetLocker() locking.Locker {
	if c.Locker != nil {
		return c.Locker
	}

	if c.Config.Redis.Enabled {
		client, err := c.GetRedisClient()
		if err == nil {
			c.Logger.Info(context.Background(), "Using Redis for session reconciliation locks",
				zap.String("redis_host", c.Config.Redis.Host),
			)
			return locking.NewRedisLocker(client)
		}
		if c.Config.Server.Env == "production" {
			c.Logger.Fatal(context.Background(),
				"Redis required for session locks in production but unavailable",
				zap.Error(err),
			)
		}
		c.Logger.Warn(context.Background(),
			"Redis connection failed, falling back to in-process session locks",
			zap.Error(err),
		)
	}
	return locking.NewMemoryLocker()
}

func (c *Container) GetRateLimiter() security.RateLimiter {
	if c.rateLimiter != nil {
		return c.rateLimiter
	}

	if c.Config.Redis.Enabled {
		client, err := c.GetRedisClient()
		if err != nil {
			if c.Config.Server.Env == "production" {
				c.Logger.Fatal(context.Background(),
					"Redis required for rate limiting in production but unavailable",
					zap.Error(err),
					zap.String("redis_host", c.Config.Redis.Host),
					zap.String("redis_port", c.Config.Redis.Port),
				)
			} else {
				c.Logger.Warn(context.Background(),
					"Redis connection failed, falling back to in-memory rate limiter",
					zap.Error(err),
				)
			}
		} else {
			c.Logger.Info(context.Background(),
				"Successfully connected to Redis for rate limiting",
				zap.String("redis_host", c.Config.Redis.Host),
			)
			c.rateLimiter = security.NewRedisRateLimiter(client)
			return c.rateLimiter
		}
	}

	if !c.Config.Redis.Enabled {
		c.Logger.Info(context.Background(), "Redis disabled in configuration, using in-memory rate limiter")
	}

	c.rateLimiter = security.NewInMemoryRateLimiter()
	return c.rateLimiter
}

// Close gracefully closes all infrastructure connections
func (c *Container) Close() {
	if c.AuditLogger != nil {
		if err := c.AuditLogger.Close(); err != nil {
			c.Logger.Error(context.Background(), "Error closing audit logger", zap.Error(err))
		}
	}

	c.redisMu.Lock()
	defer c.redisMu.Unlock()

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Error(context.Background(), "Error closing DB", zap.Error(err))
		}
	}

	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			c.Logger.Error(context.Background(), "Error closing Redis", zap.Error(err))
		}
		c.redisClient = nil
	}
}
