package health

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/shared/utils"
)

// TaskCounter reports the size of the delayed task queue by status.
type TaskCounter interface {
	Count(ctx context.Context, status string) (int64, error)
}

type Handler struct {
	db        *sql.DB
	redis     func() (redis.Cmdable, error)
	tasks     TaskCounter
	startTime time.Time
}

func NewHandler(db *sql.DB) *Handler {
	return &Handler{
		db:        db,
		startTime: time.Now(),
	}
}

// SetRedisClientProvider enables the redis check. The provider is called per
// request so a client that failed at boot can recover.
func (h *Handler) SetRedisClientProvider(provider func() (redis.Cmdable, error)) {
	h.redis = provider
}

func (h *Handler) SetTaskCounter(tasks TaskCounter) {
	h.tasks = tasks
}

type HealthResponse struct {
	Status   string         `json:"status"`
	Version  string         `json:"version"`
	Uptime   string         `json:"uptime"`
	Database DatabaseHealth `json:"database"`
	Redis    *RedisHealth   `json:"redis,omitempty"`
	Queue    *QueueHealth   `json:"queue,omitempty"`
	System   SystemHealth   `json:"system"`
}

type DatabaseHealth struct {
	Status          string `json:"status"`
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
	Idle            int    `json:"idle"`
	MaxOpenConns    int    `json:"max_open_conns"`
}

type RedisHealth struct {
	Status string `json:"status"`
}

type QueueHealth struct {
	Status  string `json:"status"`
	Pending int64  `json:"pending"`
	Running int64  `json:"running"`
	Failed  int64  `json:"failed"`
}

type SystemHealth struct {
	NumGoroutine int    `json:"num_goroutine"`
	MemAllocMB   uint64 `json:"mem_alloc_mb"`
	NumCPU       int    `json:"num_cpu"`
}

// @Summary Check API health
// @Description Get comprehensive health status of the API including database, redis and task queue state
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	dbHealth := h.getDatabaseHealth(ctx)

	overallStatus := "ok"
	if dbHealth.Status != "ok" {
		overallStatus = "degraded"
	}

	resp := HealthResponse{
		Status:   overallStatus,
		Version:  "1.0.0",
		Uptime:   time.Since(h.startTime).String(),
		Database: dbHealth,
		System:   h.getSystemHealth(),
	}

	if h.redis != nil {
		resp.Redis = &RedisHealth{Status: h.checkRedis(ctx)}
		if resp.Redis.Status != "ok" {
			resp.Status = "degraded"
		}
	}
	if h.tasks != nil {
		resp.Queue = h.getQueueHealth(ctx)
	}

	utils.Success(c, http.StatusOK, resp)
}

// @Summary Check API readiness
// @Description Check if API is ready to serve traffic (database connectivity check)
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /ready [get]
func (h *Handler) Ready(c *gin.Context) {
	dbStatus := h.checkDatabase(c.Request.Context())
	if dbStatus != "ok" {
		utils.Success(c, http.StatusServiceUnavailable, HealthResponse{
			Status: "not ready",
			Database: DatabaseHealth{
				Status: dbStatus,
			},
		})
		return
	}
	utils.Success(c, http.StatusOK, HealthResponse{
		Status: "ready",
		Database: DatabaseHealth{
			Status: "ok",
		},
	})
}

// @Summary Check API liveness
// @Description Lightweight check to verify API process is running
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /alive [get]
func (h *Handler) Alive(c *gin.Context) {
	utils.Success(c, http.StatusOK, gin.H{
		"status": "alive",
	})
}

func (h *Handler) checkDatabase(ctx context.Context) string {
	dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(dbCtx); err != nil {
		return "error"
	}
	return "ok"
}

func (h *Handler) checkRedis(ctx context.Context) string {
	client, err := h.redis()
	if err != nil || client == nil {
		return "unavailable"
	}
	pingCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return "error"
	}
	return "ok"
}

func (h *Handler) getQueueHealth(ctx context.Context) *QueueHealth {
	q := &QueueHealth{Status: "ok"}
	for status, dst := range map[string]*int64{"pending": &q.Pending, "running": &q.Running, "failed": &q.Failed} {
		n, err := h.tasks.Count(ctx, status)
		if err != nil {
			q.Status = "error"
			continue
		}
		*dst = n
	}
	return q
}

func (h *Handler) getDatabaseHealth(ctx context.Context) DatabaseHealth {
	status := h.checkDatabase(ctx)
	stats := h.db.Stats()

	return DatabaseHealth{
		Status:          status,
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		MaxOpenConns:    stats.MaxOpenConnections,
	}
}

func (h *Handler) getSystemHealth() SystemHealth {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemHealth{
		NumGoroutine: runtime.NumGoroutine(),
		MemAllocMB:   m.Alloc / 1024 / 1024,
		NumCPU:       runtime.NumCPU(),
	}
}
