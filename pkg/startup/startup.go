package startup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
)

// Dependency is one piece of the service that must be running before the
// pieces that depend on it.
type Dependency interface {
	GetName() string
	DependsOn() []string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type Status int

const (
	StatusPending Status = iota
	StatusStarted
	StatusStopped
	StatusFailed
)

type Startup struct {
	dependencies map[string]Dependency
	order        []string
	started      []string
	statuses     map[string]Status
	logger       ectologger.Logger
	maxAttempts  int
	baseDelay    time.Duration
}

type Option func(*Startup)

// WithBaseDelay sets the first retry delay. Later delays follow the Fibonacci
// sequence in multiples of it.
func WithBaseDelay(d time.Duration) Option {
	return func(s *Startup) {
		s.baseDelay = d
	}
}

func NewStartup(logger ectologger.Logger, maxAttempts int, opts ...Option) *Startup {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	s := &Startup{
		dependencies: make(map[string]Dependency),
		statuses:     make(map[string]Status),
		logger:       logger,
		maxAttempts:  maxAttempts,
		baseDelay:    time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddDependency registers d. Dependencies start in registration order unless
// DependsOn pulls something forward.
func (s *Startup) AddDependency(d Dependency) {
	if _, exists := s.dependencies[d.GetName()]; !exists {
		s.order = append(s.order, d.GetName())
	}
	s.dependencies[d.GetName()] = d
}

// Status reports the current state of the named dependency.
func (s *Startup) Status(name string) Status {
	return s.statuses[name]
}

// Start brings every dependency up, retrying the whole pass with Fibonacci
// backoff. Dependencies that already started are not restarted.
func (s *Startup) Start(ctx context.Context) error {
	var lastErr error

	a, b := 1, 1
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		s.logger.WithField("attempt", attempt).Infof("Beginning startup attempt %d", attempt)

		lastErr = nil
		for _, name := range s.order {
			if err := s.startDependency(ctx, name, nil); err != nil {
				s.logger.WithError(err).Errorf("Startup dependency '%s' attempt %d failed", name, attempt)
				lastErr = err
				break
			}
		}
		if lastErr == nil {
			return nil
		}

		if attempt == s.maxAttempts {
			break
		}

		wait := time.Duration(a) * s.baseDelay
		s.logger.Infof("Retrying in %s (attempt %d/%d)", wait, attempt, s.maxAttempts)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		a, b = b, a+b
	}

	return fmt.Errorf("startup failed after %d attempts: %w", s.maxAttempts, lastErr)
}

func (s *Startup) startDependency(ctx context.Context, name string, path []string) error {
	if s.statuses[name] == StatusStarted {
		return nil
	}
	for _, p := range path {
		if p == name {
			return fmt.Errorf("dependency cycle: %v -> %s", path, name)
		}
	}

	dependency, ok := s.dependencies[name]
	if !ok {
		return fmt.Errorf("unknown dependency '%s'", name)
	}

	for _, required := range dependency.DependsOn() {
		if err := s.startDependency(ctx, required, append(path, name)); err != nil {
			return err
		}
	}

	log := s.logger.WithField("dependency", name)
	log.Infof("Starting dependency '%s'", name)
	s.statuses[name] = StatusPending
	if err := dependency.Start(ctx); err != nil {
		s.statuses[name] = StatusFailed
		return fmt.Errorf("start %s: %w", name, err)
	}
	s.statuses[name] = StatusStarted
	s.started = append(s.started, name)
	return nil
}

// Stop stops every started dependency in reverse start order. Every
// dependency is given the chance to stop; failures are joined.
func (s *Startup) Stop(ctx context.Context) error {
	var errs []error
	for i := len(s.started) - 1; i >= 0; i-- {
		name := s.started[i]
		if s.statuses[name] != StatusStarted {
			continue
		}

		log := s.logger.WithField("dependency", name)
		log.Infof("Stopping dependency '%s'", name)
		if err := s.dependencies[name].Stop(ctx); err != nil {
			log.WithError(err).Errorf("Failed to stop dependency '%s'", name)
			errs = append(errs, fmt.Errorf("stop %s: %w", name, err))
		}
		s.statuses[name] = StatusStopped
	}
	s.started = nil
	return errors.Join(errs...)
}

// Func adapts plain functions to Dependency.
type Func struct {
	Name     string
	Requires []string
	OnStart  func(ctx context.Context) error
	OnStop   func(ctx context.Context) error
}

func (f Func) GetName() string     { return f.Name }
func (f Func) DependsOn() []string { return f.Requires }

func (f Func) Start(ctx context.Context) error {
	if f.OnStart == nil {
		return nil
	}
	return f.OnStart(ctx)
}

func (f Func) Stop(ctx context.Context) error {
	if f.OnStop == nil {
		return nil
	}
	return f.OnStop(ctx)
}
