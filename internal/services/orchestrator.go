// Package services starts and stops daemon components in dependency order.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	ferrors "git.home.luguber.info/inful/nasstate/internal/foundation/errors"
)

// ServiceStatus represents the current state of a service.
type ServiceStatus string

const (
	StatusNotStarted ServiceStatus = "not_started"
	StatusStarting   ServiceStatus = "starting"
	StatusRunning    ServiceStatus = "running"
	StatusStopping   ServiceStatus = "stopping"
	StatusStopped    ServiceStatus = "stopped"
	StatusFailed     ServiceStatus = "failed"
)

// HealthStatus represents the health of a service.
type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Healthy reports a service without problems.
func Healthy() HealthStatus { return HealthStatus{Status: "healthy"} }

// Unhealthy reports a failing service.
func Unhealthy(message string) HealthStatus {
	return HealthStatus{Status: "unhealthy", Message: message}
}

// ManagedService defines the interface for services managed by the orchestrator.
type ManagedService interface {
	// Name returns the service name for logging and identification.
	Name() string

	// Start initializes and starts the service.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the service.
	Stop(ctx context.Context) error

	// Health returns the current health status of the service.
	Health() HealthStatus

	// Dependencies returns the names of services this service depends on.
	Dependencies() []string
}

// ServiceInfo contains metadata about a managed service.
type ServiceInfo struct {
	Name         string        `json:"name"`
	Status       ServiceStatus `json:"status"`
	Health       HealthStatus  `json:"health"`
	Dependencies []string      `json:"dependencies,omitempty"`
	StartedAt    *time.Time    `json:"started_at,omitempty"`
	StoppedAt    *time.Time    `json:"stopped_at,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
}

// Orchestrator manages the lifecycle of multiple services with dependency resolution.
type Orchestrator struct {
	services   map[string]ManagedService
	status     map[string]ServiceStatus
	startedAt  map[string]time.Time
	stoppedAt  map[string]time.Time
	lastErrors map[string]error
	started    []string // names in the order they came up
	mu         sync.RWMutex

	// lifecycle serializes StartAll and StopAll; mu is never held while a
	// service runs its own Start or Stop.
	lifecycle sync.Mutex

	logger       *slog.Logger
	startTimeout time.Duration
	stopTimeout  time.Duration
}

// NewOrchestrator creates an orchestrator logging to logger.
func NewOrchestrator(logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		services:     make(map[string]ManagedService),
		status:       make(map[string]ServiceStatus),
		startedAt:    make(map[string]time.Time),
		stoppedAt:    make(map[string]time.Time),
		lastErrors:   make(map[string]error),
		logger:       logger,
		startTimeout: 30 * time.Second,
		stopTimeout:  10 * time.Second,
	}
}

// WithTimeouts configures start and stop timeouts.
func (so *Orchestrator) WithTimeouts(start, stop time.Duration) *Orchestrator {
	so.startTimeout = start
	so.stopTimeout = stop
	return so
}

// Register adds a service.
func (so *Orchestrator) Register(service ManagedService) error {
	so.mu.Lock()
	defer so.mu.Unlock()

	name := service.Name()
	if name == "" {
		return ferrors.ValidationError("service name cannot be empty").Build()
	}
	if _, exists := so.services[name]; exists {
		return ferrors.ValidationError(fmt.Sprintf("service %s already registered", name)).Build()
	}

	so.services[name] = service
	so.status[name] = StatusNotStarted
	so.logger.Debug("Service registered", slog.String("service", name), slog.Any("dependencies", service.Dependencies()))
	return nil
}

// StartAll starts all services in dependency order. If one fails, the ones
// already started are stopped again in reverse order.
func (so *Orchestrator) StartAll(ctx context.Context) error {
	so.lifecycle.Lock()
	defer so.lifecycle.Unlock()

	so.mu.RLock()
	startOrder, err := so.calculateStartOrder()
	so.mu.RUnlock()
	if err != nil {
		return ferrors.InternalError("failed to calculate service start order").
			WithCause(err).
			Build()
	}

	so.logger.Debug("Starting services", slog.Any("order", startOrder))
	for _, name := range startOrder {
		if err := so.startService(ctx, name); err != nil {
			so.stopStarted(context.WithoutCancel(ctx))
			return err
		}
	}
	return nil
}

// StopAll stops every running service in reverse start order.
func (so *Orchestrator) StopAll(ctx context.Context) error {
	so.lifecycle.Lock()
	defer so.lifecycle.Unlock()

	if err := so.stopStarted(ctx); err != nil {
		return ferrors.DaemonError("some services failed to stop gracefully").
			WithCause(err).
			Build()
	}
	return nil
}

// ServiceInfo returns information about a specific service.
func (so *Orchestrator) ServiceInfo(name string) (ServiceInfo, bool) {
	so.mu.RLock()
	defer so.mu.RUnlock()
	return so.info(name)
}

// AllServiceInfo returns information about all services, sorted by name.
func (so *Orchestrator) AllServiceInfo() []ServiceInfo {
	so.mu.RLock()
	defer so.mu.RUnlock()

	infos := make([]ServiceInfo, 0, len(so.services))
	for _, name := range so.names() {
		if info, ok := so.info(name); ok {
			infos = append(infos, info)
		}
	}
	return infos
}

func (so *Orchestrator) info(name string) (ServiceInfo, bool) {
	service, exists := so.services[name]
	if !exists {
		return ServiceInfo{}, false
	}

	info := ServiceInfo{
		Name:         name,
		Status:       so.status[name],
		Dependencies: service.Dependencies(),
		Health:       service.Health(),
	}
	if t, ok := so.startedAt[name]; ok {
		info.StartedAt = &t
	}
	if t, ok := so.stoppedAt[name]; ok {
		info.StoppedAt = &t
	}
	if err := so.lastErrors[name]; err != nil {
		info.LastError = err.Error()
	}
	return info, true
}

func (so *Orchestrator) names() []string {
	names := make([]string, 0, len(so.services))
	for name := range so.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// calculateStartOrder is a topological sort; ties are broken by name so the
// order is stable between runs.
func (so *Orchestrator) calculateStartOrder() ([]string, error) {
	visited := make(map[string]bool)
	visiting := make(map[string]bool)
	var order []string

	var visit func(string) error
	visit = func(name string) error {
		if visiting[name] {
			return fmt.Errorf("circular dependency detected involving service: %s", name)
		}
		if visited[name] {
			return nil
		}
		visiting[name] = true

		service, exists := so.services[name]
		if !exists {
			return fmt.Errorf("service not found: %s", name)
		}
		deps := slices.Clone(service.Dependencies())
		sort.Strings(deps)
		for _, dep := range deps {
			if err := visit(dep); err != nil {
				return err
			}
		}

		visiting[name] = false
		visited[name] = true
		order = append(order, name)
		return nil
	}

	for _, name := range so.names() {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (so *Orchestrator) setStatus(name string, status ServiceStatus, err error) {
	so.mu.Lock()
	defer so.mu.Unlock()
	so.status[name] = status
	if err != nil {
		so.lastErrors[name] = err
	}
}

func (so *Orchestrator) startService(ctx context.Context, name string) error {
	so.mu.RLock()
	service := so.services[name]
	so.mu.RUnlock()
	so.setStatus(name, StatusStarting, nil)

	timeoutCtx, cancel := context.WithTimeout(ctx, so.startTimeout)
	defer cancel()

	startTime := time.Now()
	if err := service.Start(timeoutCtx); err != nil {
		so.setStatus(name, StatusFailed, err)
		so.logger.Error("Service failed to start", slog.String("service", name), slog.String("error", err.Error()))
		return err
	}

	so.mu.Lock()
	so.status[name] = StatusRunning
	so.startedAt[name] = startTime
	so.lastErrors[name] = nil
	so.started = append(so.started, name)
	so.mu.Unlock()
	so.logger.Debug("Service started", slog.String("service", name), slog.Duration("duration", time.Since(startTime)))
	return nil
}

func (so *Orchestrator) stopService(ctx context.Context, name string) error {
	so.mu.RLock()
	service, status := so.services[name], so.status[name]
	so.mu.RUnlock()
	if status != StatusRunning {
		return nil
	}
	so.setStatus(name, StatusStopping, nil)

	timeoutCtx, cancel := context.WithTimeout(ctx, so.stopTimeout)
	defer cancel()

	stopTime := time.Now()
	if err := service.Stop(timeoutCtx); err != nil {
		so.setStatus(name, StatusFailed, err)
		return err
	}

	so.mu.Lock()
	so.status[name] = StatusStopped
	so.stoppedAt[name] = stopTime
	so.mu.Unlock()
	so.logger.Debug("Service stopped", slog.String("service", name), slog.Duration("duration", time.Since(stopTime)))
	return nil
}

// stopStarted stops running services in reverse start order and returns the
// last error.
func (so *Orchestrator) stopStarted(ctx context.Context) error {
	so.mu.Lock()
	started := so.started
	so.started = nil
	so.mu.Unlock()

	var lastError error
	for i := len(started) - 1; i >= 0; i-- {
		name := started[i]
		if err := so.stopService(ctx, name); err != nil {
			lastError = err
			so.logger.Error("Error stopping service", slog.String("service", name), slog.String("error", err.Error()))
		}
	}
	return lastError
}
