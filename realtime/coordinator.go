// Package realtime owns the one-time wiring between the connection handle, the
// connection monitor and the notification dispatcher.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fistoar/crm-realtime/monitor"
	"github.com/fistoar/crm-realtime/notify"
	"github.com/fistoar/crm-realtime/tool"
)

// ErrAlreadyStarted is returned by Start while a previous Start has not been stopped.
var ErrAlreadyStarted = errors.New("realtime: already started")

// Handle is the connection handle as seen by the coordinator.
type Handle interface {
	monitor.Handle
	notify.Subscriber
	Connect(ctx context.Context) error
	Close() error
}

// Coordinator is created once per process and replaces a package-level "initialized" flag.
type Coordinator struct {
	handle     Handle
	monitor    *monitor.Monitor
	dispatcher *notify.Dispatcher

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(handle Handle, m *monitor.Monitor, d *notify.Dispatcher) *Coordinator {
	return &Coordinator{handle: handle, monitor: m, dispatcher: d}
}

// Start attaches the monitor and the dispatcher, negotiates notification permission in
// the background and connects.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return ErrAlreadyStarted
	}

	if err := c.monitor.Observe(c.handle); err != nil {
		return fmt.Errorf("observe connection: %w", err)
	}
	c.dispatcher.RegisterHandlers(c.handle)

	ctx, cancel := context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.dispatcher.Negotiate(ctx)
	}()

	if err := c.handle.Connect(ctx); err != nil {
		cancel()
		c.wg.Wait()
		c.dispatcher.UnregisterHandlers()
		c.monitor.Stop()
		return fmt.Errorf("connect: %w", err)
	}

	c.cancel = cancel
	c.started = true
	tool.DefaultLogger.Infof("[Realtime] started")
	return nil
}

// Started reports whether Start succeeded and Stop has not run since.
func (c *Coordinator) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// Stop detaches everything Start attached and closes the handle. Stop on a stopped
// coordinator does nothing.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}
	c.cancel()
	c.wg.Wait()
	c.dispatcher.UnregisterHandlers()
	c.monitor.Stop()
	err := c.handle.Close()
	c.started = false
	c.cancel = nil
	tool.DefaultLogger.Infof("[Realtime] stopped")
	return err
}
