package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RefreshFunc performs one refetch. Errors are logged and retried on the
// next tick; they never abort the coordinator.
type RefreshFunc func(ctx context.Context) error

// Coordinator runs a visibility-gated interval refresh. Ticks are
// suppressed while the host reports itself hidden; every transition back
// to visible triggers one immediate refresh. No backoff, no jitter.
type Coordinator struct {
	name     string
	interval time.Duration
	refresh  RefreshFunc
	logger   *zap.Logger

	mu       sync.Mutex
	visible  bool
	started  bool
	cancel   context.CancelFunc
	kick     chan struct{}
	done     chan struct{}
}

// New builds a coordinator. The host starts out visible.
func New(name string, interval time.Duration, refresh RefreshFunc, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		name:     name,
		interval: interval,
		refresh:  refresh,
		logger:   logger,
		visible:  true,
		kick:     make(chan struct{}, 1),
	}
}

// Start launches the tick loop. Safe to call once; subsequent calls are
// no-ops until Stop.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	c.started = true
	go c.loop(ctx, c.done)
}

// Stop halts the tick loop and waits for it to exit.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()
	cancel()
	<-done
}

// SetVisible records the host's visibility. A transition into visible
// schedules one immediate refresh.
func (c *Coordinator) SetVisible(visible bool) {
	c.mu.Lock()
	wasVisible := c.visible
	c.visible = visible
	c.mu.Unlock()
	if visible && !wasVisible {
		select {
		case c.kick <- struct{}{}:
		default:
		}
	}
}

// Visible reports the current visibility.
func (c *Coordinator) Visible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible
}

// Tick runs one refresh if the host is visible. Exposed so tests and the
// immediate-on-visible path share the exact production code.
func (c *Coordinator) Tick(ctx context.Context) {
	if !c.Visible() {
		return
	}
	if err := c.refresh(ctx); err != nil {
		c.logger.Warn("poll refresh failed",
			zap.String("poller", c.name),
			zap.Error(err))
	}
}

func (c *Coordinator) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.kick:
			c.Tick(ctx)
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}
