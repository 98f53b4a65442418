package dynners

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingTicker struct {
	ticks   atomic.Int32
	started chan struct{}
	block   bool
	aborted atomic.Bool
}

func (c *countingTicker) Tick(ctx context.Context) error {
	c.ticks.Add(1)
	if c.started != nil {
		select {
		case c.started <- struct{}{}:
		default:
		}
	}
	if c.block {
		<-ctx.Done()
		c.aborted.Store(true)
	}
	return nil
}

func TestDaemonOneShot(t *testing.T) {
	c := &countingTicker{}
	d := NewDaemon(c, 0)
	d.Start(testContext(t))

	select {
	case <-d.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("one-shot run did not finish")
	}
	if n := c.ticks.Load(); n != 1 {
		t.Errorf("ticks = %d, want 1", n)
	}

	d.Stop()
}

func TestDaemonStopCancelsTick(t *testing.T) {
	c := &countingTicker{started: make(chan struct{}, 1), block: true}
	d := NewDaemon(c, time.Hour)
	d.Start(testContext(t))

	select {
	case <-c.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first tick did not run at start")
	}

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	if !c.aborted.Load() {
		t.Error("running tick was not cancelled")
	}
	if n := c.ticks.Load(); n != 1 {
		t.Errorf("ticks = %d, want 1", n)
	}
}

type slowTicker struct {
	delay    time.Duration
	ticks    atomic.Int32
	inflight atomic.Int32
	peak     atomic.Int32
}

func (s *slowTicker) Tick(ctx context.Context) error {
	n := s.inflight.Add(1)
	defer s.inflight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	s.ticks.Add(1)
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
	}
	return nil
}

func TestDaemonPeriodicTicksDoNotOverlap(t *testing.T) {
	s := &slowTicker{delay: 1500 * time.Millisecond}
	d := NewDaemon(s, time.Second)
	d.Start(testContext(t))

	time.Sleep(4 * time.Second)
	d.Stop()

	if n := s.ticks.Load(); n < 2 {
		t.Errorf("ticks = %d, want at least 2", n)
	}
	if p := s.peak.Load(); p != 1 {
		t.Errorf("%d ticks ran at once", p)
	}
}
