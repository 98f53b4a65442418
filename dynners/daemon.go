package dynners

import (
	"context"
	"dynners/log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Ticker is what the daemon drives; *Engine implements it.
type Ticker interface {
	Tick(ctx context.Context) error
}

// Daemon runs ticks at a fixed rate. Ticks never overlap: one that is due
// while the previous is still running waits for it.
type Daemon struct {
	ticker Ticker
	rate   time.Duration

	cron   *cron.Cron
	cancel context.CancelFunc
	first  sync.WaitGroup
	done   chan struct{}
}

// NewDaemon drives t every rate. A zero rate runs a single tick.
func NewDaemon(t Ticker, rate time.Duration) *Daemon {
	return &Daemon{ticker: t, rate: rate, done: make(chan struct{})}
}

// Start runs the first tick right away and schedules the following ones.
// It does not block.
func (d *Daemon) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	ctx = log.Named(ctx, "daemon")

	logger := log.CronLogger(ctx)
	job := cron.NewChain(cron.Recover(logger), cron.DelayIfStillRunning(logger)).
		Then(cron.FuncJob(func() {
			if ctx.Err() != nil {
				return
			}
			if err := d.ticker.Tick(ctx); err != nil {
				log.S(ctx).Debugw("tick finished with errors", zap.Error(err))
			}
		}))

	if d.rate <= 0 {
		log.S(ctx).Infow("one-shot mode")
		go func() {
			defer close(d.done)
			job.Run()
		}()
		return
	}

	d.cron = cron.New(cron.WithLogger(logger))
	d.cron.Schedule(cron.Every(d.rate), job)
	d.cron.Start()

	d.first.Add(1)
	go func() {
		defer d.first.Done()
		job.Run()
	}()

	log.S(ctx).Infow("scheduled", "rate", d.rate)
}

// Done is closed once a one-shot run finished. It never closes for a
// periodic daemon.
func (d *Daemon) Done() <-chan struct{} {
	return d.done
}

// Stop cancels the running tick, if any, and waits for it to return.
func (d *Daemon) Stop() {
	if d.cancel == nil {
		return
	}
	d.cancel()

	if d.cron != nil {
		<-d.cron.Stop().Done()
		d.first.Wait()
		return
	}

	<-d.done
}
