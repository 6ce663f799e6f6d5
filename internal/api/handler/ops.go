// Package handler provides HTTP handlers for the CityWander API.
package handler

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/citywander/citywander/internal/api/models"
	"github.com/citywander/citywander/internal/api/response"
	"github.com/citywander/citywander/internal/discovery"
	"github.com/citywander/citywander/internal/provider/resilience"
)

// Pinger checks connectivity of a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	db        Pinger
	discovery *discovery.Service
	registry  *resilience.Registry
	providers []string
}

// NewOpsHandler creates a new OpsHandler. db, discovery and registry are
// optional; nil dependencies are simply skipped in readiness and status
// reports. The static provider names are used when no registry is wired.
func NewOpsHandler(version, buildTime string, db Pinger, disc *discovery.Service, registry *resilience.Registry, providers []string) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		db:        db,
		discovery: disc,
		registry:  registry,
		providers: providers,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. The service is
// ready when its backing database answers a ping.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			health.Status = models.HealthStatusFail
			health.Details = map[string]interface{}{"database": err.Error()}
			response.JSON(w, r, http.StatusServiceUnavailable, health)
			return
		}
	}

	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	now := models.Timestamp(time.Now())
	status := models.SystemStatus{
		Status: models.HealthStatusOK,
		Time:   now,
	}

	if h.db != nil {
		dbStatus := models.SubsystemStatus{Name: "cloud-sql", Status: models.HealthStatusOK}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		if err := h.db.Ping(ctx); err != nil {
			detail := err.Error()
			dbStatus.Status = models.HealthStatusFail
			dbStatus.Detail = &detail
			status.Status = models.HealthStatusDegraded
		}
		cancel()
		status.Subsystems = append(status.Subsystems, dbStatus)
	}

	if h.discovery != nil {
		stats := h.discovery.CacheStats()
		detail := fmt.Sprintf("%d cached areas, %d fresh", stats.Entries, stats.FreshEntries)
		status.Subsystems = append(status.Subsystems, models.SubsystemStatus{
			Name:   "discovery-cache",
			Status: models.HealthStatusOK,
			Detail: &detail,
		})
	}

	if h.registry != nil && h.registry.ProviderCount() > 0 {
		all := h.registry.GetAllHealth()
		sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
		for _, ph := range all {
			ps := models.ProviderStatus{
				Provider: ph.Name,
				Status:   models.HealthStatusOK,
			}
			switch {
			case ph.IsUnhealthy():
				ps.Status = models.HealthStatusFail
				status.Status = models.HealthStatusDegraded
			case ph.IsDegraded():
				ps.Status = models.HealthStatusDegraded
				status.Status = models.HealthStatusDegraded
			}
			if ph.LastSuccessAt != nil {
				ts := models.Timestamp(*ph.LastSuccessAt)
				ps.LastSuccessAt = &ts
			}
			if ph.LastFailureAt != nil {
				ts := models.Timestamp(*ph.LastFailureAt)
				ps.LastFailureAt = &ts
			}
			if ph.LastError != "" {
				msg := ph.LastError
				ps.Message = &msg
			}
			status.Providers = append(status.Providers, ps)
		}
	} else {
		for _, name := range h.providers {
			status.Providers = append(status.Providers, models.ProviderStatus{
				Provider: name,
				Status:   models.HealthStatusOK,
			})
		}
	}

	response.JSON(w, r, http.StatusOK, status)
}
