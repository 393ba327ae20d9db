package services

import "context"

// FuncService adapts plain functions to ManagedService.
type FuncService struct {
	name   string
	deps   []string
	start  func(ctx context.Context) error
	stop   func(ctx context.Context) error
	health func() HealthStatus
}

// NewFuncService creates a service. start, stop and health may be nil.
func NewFuncService(name string, start, stop func(ctx context.Context) error, deps ...string) *FuncService {
	return &FuncService{name: name, deps: deps, start: start, stop: stop}
}

// WithHealth sets the health probe.
func (f *FuncService) WithHealth(h func() HealthStatus) *FuncService {
	f.health = h
	return f
}

func (f *FuncService) Name() string           { return f.name }
func (f *FuncService) Dependencies() []string { return f.deps }

func (f *FuncService) Start(ctx context.Context) error {
	if f.start == nil {
		return nil
	}
	return f.start(ctx)
}

func (f *FuncService) Stop(ctx context.Context) error {
	if f.stop == nil {
		return nil
	}
	return f.stop(ctx)
}

func (f *FuncService) Health() HealthStatus {
	if f.health == nil {
		return Healthy()
	}
	return f.health()
}
