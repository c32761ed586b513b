package gateway

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testPeriod  = 30 * time.Millisecond
	testTimeout = 15 * time.Millisecond
)

func TestHeartbeat_SilentPeerDeclaredDead(t *testing.T) {
	req := require.New(t)
	c := testConn("c1")

	dead := make(chan struct{})
	hb := newHeartbeat(c, testPeriod, testTimeout, func() { close(dead) })
	hb.start(context.Background())
	defer hb.stop()

	// Never pong: the death timer must fire within period + timeout, with
	// some scheduling slack.
	select {
	case <-dead:
	case <-time.After(10 * (testPeriod + testTimeout)):
		req.Fail("death timer never fired for a silent peer")
	}

	// The ping was actually sent.
	select {
	case <-c.ping:
	default:
		req.Fail("no ping was emitted")
	}
}

func TestHeartbeat_PongKeepsConnectionAlive(t *testing.T) {
	req := require.New(t)
	c := testConn("c1")

	var deaths atomic.Int32
	hb := newHeartbeat(c, testPeriod, testTimeout, func() { deaths.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hb.start(ctx)
	defer hb.stop()

	// Answer every ping promptly for several cycles.
	done := time.After(6 * testPeriod)
	for {
		select {
		case <-c.ping:
			hb.pong()
		case <-done:
			req.Zero(deaths.Load(), "responsive peer was declared dead")
			return
		}
	}
}

func TestHeartbeat_StopCancelsCycleAndTimer(t *testing.T) {
	req := require.New(t)
	c := testConn("c1")

	var deaths atomic.Int32
	hb := newHeartbeat(c, testPeriod, testTimeout, func() { deaths.Add(1) })
	hb.start(context.Background())

	// Let at least one ping go out so a death timer is armed, then stop.
	select {
	case <-c.ping:
	case <-time.After(10 * testPeriod):
		req.Fail("no ping was emitted")
	}
	hb.stop()

	// No timer may fire after a graceful stop.
	time.Sleep(4 * (testPeriod + testTimeout))
	req.Zero(deaths.Load(), "death timer fired after stop")

	// And no further pings either.
	drained := len(c.ping) // at most the one race ping queued before stop
	time.Sleep(3 * testPeriod)
	req.LessOrEqual(len(c.ping), drained, "heartbeat loop kept running after stop")
}

func TestHeartbeat_StopIsIdempotent(t *testing.T) {
	c := testConn("c1")
	hb := newHeartbeat(c, testPeriod, testTimeout, func() {})
	hb.start(context.Background())
	hb.stop()
	hb.stop()
}
