// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/saas-metrics/internal/core"
)

const probeTimeout = 2 * time.Second

type Handler struct {
	counts      func(ctx context.Context) (map[string]int64, error)
	eventsCount func(ctx context.Context) (int64, error)
	dbStats     func() sql.DBStats
	redisStats  func() *redis.PoolStats
	redisPing   func(ctx context.Context) error
	dbPing      func(ctx context.Context) error
	startedAt   time.Time
}

type HandlerConfig struct {
	// Counts returns platform-wide row totals keyed by entity.
	Counts func(ctx context.Context) (map[string]int64, error)
	// EventsCount reports how many role transitions are retained.
	EventsCount func(ctx context.Context) (int64, error)
	DBStats     func() sql.DBStats
	RedisStats  func() *redis.PoolStats
	RedisPing   func(ctx context.Context) error
	DBPing      func(ctx context.Context) error
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		counts:      cfg.Counts,
		eventsCount: cfg.EventsCount,
		dbStats:     cfg.DBStats,
		redisStats:  cfg.RedisStats,
		redisPing:   cfg.RedisPing,
		dbPing:      cfg.DBPing,
		startedAt:   time.Now(),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/stats", h.GetPlatformStats)
		r.Get("/stats/stores", h.GetStoreStats)
		r.Get("/stats/runtime", h.GetRuntimeStats)
	})
}

// GetPlatformStats reports tenant, user and metric totals across every
// tenant.
func (h *Handler) GetPlatformStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.counts == nil {
		core.InternalServerError(w, errors.New("platform counts not configured"))
		return
	}

	counts, err := h.counts(ctx)
	if err != nil {
		core.HandleError(w, err, "stats")
		return
	}

	response := PlatformStatsResponse{
		Tenants: counts["tenants"],
		Users:   counts["users"],
		Metrics: counts["metrics"],
	}

	if h.eventsCount != nil {
		n, err := h.eventsCount(ctx)
		if err == nil {
			response.RoleTransitions = &n
		}
	}

	core.OK(w, response)
}

// GetStoreStats probes Postgres and Redis in parallel and reports their
// pools. A failed probe still returns 200 with healthy=false.
func (h *Handler) GetStoreStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	var (
		wg       sync.WaitGroup
		response StoreStatsResponse
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		response.Database.Probe = probe(ctx, h.dbPing)
	}()
	go func() {
		defer wg.Done()
		response.Redis.Probe = probe(ctx, h.redisPing)
	}()
	wg.Wait()

	response.Database.Pool = h.databasePool()
	response.Redis.Pool = h.redisPool()

	core.OK(w, response)
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	core.OK(w, RuntimeStats{
		GoVersion:     runtime.Version(),
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		NumGoroutine:  runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		HeapAlloc:     mem.HeapAlloc,
		MemSys:        mem.Sys,
		NumGC:         mem.NumGC,
	})
}

func probe(ctx context.Context, ping func(context.Context) error) Probe {
	if ping == nil {
		return Probe{Error: "not configured"}
	}

	start := time.Now()
	err := ping(ctx)
	p := Probe{
		Healthy:   err == nil,
		LatencyMS: float64(time.Since(start).Microseconds()) / 1000,
	}
	if err != nil {
		p.Error = err.Error()
	}
	return p
}

func (h *Handler) databasePool() *DBPoolStats {
	if h.dbStats == nil {
		return nil
	}

	s := h.dbStats()
	return &DBPoolStats{
		MaxOpenConnections: s.MaxOpenConnections,
		OpenConnections:    s.OpenConnections,
		InUse:              s.InUse,
		Idle:               s.Idle,
		WaitCount:          s.WaitCount,
		WaitDuration:       s.WaitDuration.String(),
	}
}

func (h *Handler) redisPool() *RedisPoolStats {
	if h.redisStats == nil {
		return nil
	}

	s := h.redisStats()
	return &RedisPoolStats{
		Hits:       s.Hits,
		Misses:     s.Misses,
		Timeouts:   s.Timeouts,
		TotalConns: s.TotalConns,
		IdleConns:  s.IdleConns,
	}
}

type PlatformStatsResponse struct {
	Tenants         int64  `json:"tenants"`
	Users           int64  `json:"users"`
	Metrics         int64  `json:"metrics"`
	RoleTransitions *int64 `json:"role_transitions,omitempty"`
}

type StoreStatsResponse struct {
	Database DatabaseStatus `json:"database"`
	Redis    RedisStatus    `json:"redis"`
}

type Probe struct {
	Healthy   bool    `json:"healthy"`
	LatencyMS float64 `json:"latency_ms"`
	Error     string  `json:"error,omitempty"`
}

type DatabaseStatus struct {
	Probe
	Pool *DBPoolStats `json:"pool,omitempty"`
}

type RedisStatus struct {
	Probe
	Pool *RedisPoolStats `json:"pool,omitempty"`
}

type DBPoolStats struct {
	MaxOpenConnections int    `json:"max_open_connections"`
	OpenConnections    int    `json:"open_connections"`
	InUse              int    `json:"in_use"`
	Idle               int    `json:"idle"`
	WaitCount          int64  `json:"wait_count"`
	WaitDuration       string `json:"wait_duration"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
}

type RuntimeStats struct {
	GoVersion     string `json:"go_version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	NumGoroutine  int    `json:"num_goroutine"`
	NumCPU        int    `json:"num_cpu"`
	HeapAlloc     uint64 `json:"heap_alloc"`
	MemSys        uint64 `json:"mem_sys"`
	NumGC         uint32 `json:"num_gc"`
}
