package gateway

import (
	"context"
	"sync"
	"time"
)

// heartbeat drives the per-connection liveness cycle: every period a ping
// is sent and a bounded death timer armed; a pong cancels the timer, the
// timer firing marks the connection dead. Worst-case detection latency for
// a silent peer is period + timeout.
type heartbeat struct {
	conn    *Conn
	period  time.Duration
	timeout time.Duration
	onDead  func()
	cancel  context.CancelFunc

	mu      sync.Mutex
	death   *time.Timer
	stopped bool
}

func newHeartbeat(conn *Conn, period, timeout time.Duration, onDead func()) *heartbeat {
	return &heartbeat{conn: conn, period: period, timeout: timeout, onDead: onDead}
}

// start launches the heartbeat loop in its own goroutine.
func (h *heartbeat) start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	go h.run(ctx)
}

func (h *heartbeat) run(ctx context.Context) {
	ticker := time.NewTicker(h.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Arm before sending so a fast pong can never observe the ping
			// ahead of its timer.
			h.arm()
			h.conn.Ping()
		}
	}
}

// arm starts the death timer for the ping that was just sent. A timer left
// armed by an earlier unanswered ping keeps running; it will fire first
// anyway since timeout < period.
func (h *heartbeat) arm() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped || h.death != nil {
		return
	}
	h.death = time.AfterFunc(h.timeout, h.onDead)
}

// pong cancels the pending death timer; the connection stays registered and
// the cycle returns to its resting state.
func (h *heartbeat) pong() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.death != nil {
		h.death.Stop()
		h.death = nil
	}
}

// stop cancels the heartbeat loop and any pending death timer. It must run
// before the connection is destroyed: a leaked timer firing against a
// removed connection is a correctness bug, not a nuisance. Idempotent.
func (h *heartbeat) stop() {
	h.mu.Lock()
	h.stopped = true
	if h.death != nil {
		h.death.Stop()
		h.death = nil
	}
	h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
	}
}
