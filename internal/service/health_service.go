package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/orbitlabs/orbit-api/internal/client"
	"github.com/orbitlabs/orbit-api/internal/model"
)

// Configured is implemented by clients that can say whether they have
// enough configuration to be called at all.
type Configured interface {
	IsConfigured() bool
}

// HealthService aggregates component probes into a single report. The
// database and object storage are load-bearing; everything else degrades
// the service instead of taking it down.
type HealthService struct {
	pool    *pgxpool.Pool
	rdb     *redis.Client
	storage Configured
	gemini  Configured
	email   Configured
	mock    bool
}

func NewHealthService(pool *pgxpool.Pool, rdb *redis.Client, storage *client.S3Client, gemini *client.GeminiClient, email *client.EmailClient, mock bool) *HealthService {
	h := &HealthService{pool: pool, rdb: rdb, mock: mock}
	if storage != nil {
		h.storage = storage
	}
	if gemini != nil {
		h.gemini = gemini
	}
	if email != nil {
		h.email = email
	}
	return h
}

// Report probes every component. Probes are bounded so a hung dependency
// cannot hang the health endpoint.
func (s *HealthService) Report(ctx context.Context) *model.HealthReport {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	components := make(map[string]model.HealthState)
	details := make(map[string]string)

	if s.pool == nil {
		components["database"] = model.HealthUnhealthy
		details["database"] = "no connection pool"
	} else if err := s.pool.Ping(ctx); err != nil {
		components["database"] = model.HealthUnhealthy
		details["database"] = err.Error()
	} else {
		components["database"] = model.HealthHealthy
	}

	if s.rdb == nil {
		components["redis"] = model.HealthDegraded
		details["redis"] = "not configured; notifications and rate limiting disabled"
	} else if err := s.rdb.Ping(ctx).Err(); err != nil {
		components["redis"] = model.HealthDegraded
		details["redis"] = err.Error()
	} else {
		components["redis"] = model.HealthHealthy
	}

	if s.storage == nil || !s.storage.IsConfigured() {
		components["storage"] = model.HealthUnhealthy
		details["storage"] = "object storage not configured"
	} else {
		components["storage"] = model.HealthHealthy
	}

	switch {
	case s.mock:
		components["gemini"] = model.HealthHealthy
		details["gemini"] = "mock mode"
	case s.gemini == nil || !s.gemini.IsConfigured():
		components["gemini"] = model.HealthDegraded
		details["gemini"] = "no API key; analysis unavailable"
	default:
		components["gemini"] = model.HealthHealthy
	}

	if s.email == nil || !s.email.IsConfigured() {
		components["email"] = model.HealthDegraded
		details["email"] = "email function not configured; completion emails disabled"
	} else {
		components["email"] = model.HealthHealthy
	}

	return &model.HealthReport{
		Overall:    overallState(components),
		Components: components,
		Details:    details,
		Timestamp:  time.Now().UTC(),
	}
}

func overallState(components map[string]model.HealthState) model.HealthState {
	overall := model.HealthHealthy
	for _, state := range components {
		if state == model.HealthUnhealthy {
			return model.HealthUnhealthy
		}
		if state == model.HealthDegraded {
			overall = model.HealthDegraded
		}
	}
	return overall
}
