// Package server runs the simulation server's long-lived services and shuts
// them down together on a signal, a failure or context cancellation.
package server

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Service is a long-running component. Run blocks until ctx is cancelled or
// the service fails; a nil return after cancellation is a clean stop.
type Service interface {
	Run(ctx context.Context) error
}

// ServiceFunc adapts a function to Service.
type ServiceFunc func(ctx context.Context) error

// Run calls f.
func (f ServiceFunc) Run(ctx context.Context) error { return f(ctx) }

// Lifecycle runs named services concurrently and stops them all when any of
// them fails, a termination signal arrives or the parent context ends.
type Lifecycle struct {
	logger      *zap.Logger
	gracePeriod time.Duration

	mu       sync.Mutex
	services []namedService
}

type namedService struct {
	name    string
	service Service
}

// NewLifecycle creates a Lifecycle that waits up to gracePeriod for services
// to return after shutdown begins.
//
// Precondition: logger must be non-nil; gracePeriod must be > 0.
func NewLifecycle(logger *zap.Logger, gracePeriod time.Duration) *Lifecycle {
	if gracePeriod <= 0 {
		panic("server.NewLifecycle: gracePeriod must be > 0")
	}
	return &Lifecycle{logger: logger, gracePeriod: gracePeriod}
}

// Add registers a named service.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = append(l.services, namedService{name: name, service: svc})
}

// Run starts every service and blocks until they have all returned or the
// grace period has elapsed after shutdown began.
//
// Postcondition: Returns the joined errors of every failed service, or an
// error naming the services still running when the grace period expired.
func (l *Lifecycle) Run(ctx context.Context) error {
	start := time.Now()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.mu.Lock()
	services := append([]namedService(nil), l.services...)
	l.mu.Unlock()

	var (
		wg      sync.WaitGroup
		errMu   sync.Mutex
		errs    []error
		running = make(map[string]bool, len(services))
	)
	for _, ns := range services {
		running[ns.name] = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.logger.Info("starting service", zap.String("service", ns.name))
			svcStart := time.Now()
			err := ns.service.Run(ctx)
			failed := err != nil && (ctx.Err() == nil || !errors.Is(err, ctx.Err()))
			errMu.Lock()
			delete(running, ns.name)
			if failed {
				errs = append(errs, fmt.Errorf("service %s: %w", ns.name, err))
			}
			errMu.Unlock()
			if failed {
				l.logger.Error("service failed",
					zap.String("service", ns.name),
					zap.Error(err),
					zap.Duration("uptime", time.Since(svcStart)),
				)
				cancel()
				return
			}
			l.logger.Info("service stopped",
				zap.String("service", ns.name),
				zap.Duration("uptime", time.Since(svcStart)),
			)
		}()
	}
	l.logger.Info("all services started", zap.Int("count", len(services)))

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		l.logger.Info("shutting down", zap.NamedError("cause", context.Cause(ctx)))
		select {
		case <-done:
		case <-time.After(l.gracePeriod):
			errMu.Lock()
			names := make([]string, 0, len(running))
			for n := range running {
				names = append(names, n)
			}
			errs = append(errs, fmt.Errorf("services still running after %s: %v", l.gracePeriod, names))
			errMu.Unlock()
		}
	}

	l.logger.Info("shutdown complete", zap.Duration("total_uptime", time.Since(start)))
	errMu.Lock()
	defer errMu.Unlock()
	return errors.Join(errs...)
}
