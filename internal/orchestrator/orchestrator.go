// Package orchestrator starts and stops every engine component in
// dependency order and aggregates their health probes (§4.13).
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"ictengine/internal/core"

	"golang.org/x/sync/errgroup"
)

// Component is a named, independently runnable/stoppable/health-checkable
// engine service.
type Component struct {
	Name    string
	Run     func(ctx context.Context) error
	Stop    func(ctx context.Context) error
	Healthy func() bool
}

// Orchestrator starts components in the order they are registered and
// stops them in reverse order within a total deadline (§4.13).
type Orchestrator struct {
	logger             core.ILogger
	components         []Component
	shutdownDeadline   time.Duration

	cancel context.CancelFunc
	group  *errgroup.Group
}

// New constructs an Orchestrator with the given total shutdown deadline
// (default 30s if non-positive).
func New(shutdownDeadline time.Duration, logger core.ILogger) *Orchestrator {
	if shutdownDeadline <= 0 {
		shutdownDeadline = 30 * time.Second
	}
	return &Orchestrator{shutdownDeadline: shutdownDeadline, logger: logger}
}

// Register appends a component to the startup order; Event Bus first,
// API surface last, mirroring §4.13's dependency chain.
func (o *Orchestrator) Register(c Component) {
	o.components = append(o.components, c)
}

// Start launches every registered component's Run in its own goroutine
// under a shared errgroup/context and returns nil as soon as they are
// launched; a Run error surfaces through Wait. It does not block until
// shutdown; call Wait for that.
func (o *Orchestrator) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	group, groupCtx := errgroup.WithContext(runCtx)
	o.group = group

	for _, c := range o.components {
		comp := c
		if comp.Run == nil {
			continue
		}
		group.Go(func() error {
			if o.logger != nil {
				o.logger.Info("starting component", "component", comp.Name)
			}
			return comp.Run(groupCtx)
		})
	}
	return nil
}

// Wait blocks until every component's Run returns, which happens on
// context cancellation (normal shutdown) or the first hard failure.
func (o *Orchestrator) Wait() error {
	if o.group == nil {
		return nil
	}
	return o.group.Wait()
}

// Shutdown cancels the run context and stops every component in reverse
// registration order, cancelling anything still pending once the total
// deadline elapses.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	if o.cancel != nil {
		o.cancel()
	}

	deadlineCtx, cancel := context.WithTimeout(ctx, o.shutdownDeadline)
	defer cancel()

	var firstErr error
	for i := len(o.components) - 1; i >= 0; i-- {
		comp := o.components[i]
		if comp.Stop == nil {
			continue
		}
		if o.logger != nil {
			o.logger.Info("stopping component", "component", comp.Name)
		}
		if err := comp.Stop(deadlineCtx); err != nil {
			if o.logger != nil {
				o.logger.Error("component stop failed", "component", comp.Name, "error", err)
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("stop %s: %w", comp.Name, err)
			}
		}
		if deadlineCtx.Err() != nil {
			if o.logger != nil {
				o.logger.Warn("shutdown deadline exceeded, remaining components cancelled", "remaining", i)
			}
			break
		}
	}
	return firstErr
}

// Healthy reports whether every registered component with a health probe
// reports healthy; components without one are assumed healthy.
func (o *Orchestrator) Healthy() bool {
	for _, c := range o.components {
		if c.Healthy != nil && !c.Healthy() {
			return false
		}
	}
	return true
}
