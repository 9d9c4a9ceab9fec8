// Package scheduler keeps cached ending balances fresh by periodically
// recomputing every user's rollover chain.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// UserLister lists the users whose chains are refreshed.
type UserLister interface {
	ListActiveUserIDs(ctx context.Context) ([]string, error)
}

// ChainRecalculator recomputes the rollover chain of one user and returns
// the number of periods it updated.
type ChainRecalculator interface {
	RecalculateUser(ctx context.Context, userID string) (int, error)
}

// ErrAlreadyRunning is returned by RunNow while another run is in progress.
var ErrAlreadyRunning = errors.New("refresh already running")

// Report summarizes one refresh run.
type Report struct {
	Users    int           `json:"users"`
	Periods  int           `json:"periods"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// Refresher runs chain recalculations over all users with bounded
// concurrency, on a cron schedule or on demand.
type Refresher struct {
	users   UserLister
	chains  ChainRecalculator
	workers int
	log     *zap.SugaredLogger

	cron    *cron.Cron
	running atomic.Bool

	mu   sync.Mutex
	last *Report
}

// NewRefresher creates a Refresher running at most workers recalculations
// at a time.
func NewRefresher(users UserLister, chains ChainRecalculator, workers int, log *zap.SugaredLogger) *Refresher {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Refresher{
		users:   users,
		chains:  chains,
		workers: workers,
		log:     log,
		cron:    cron.New(cron.WithSeconds()),
	}
}

// Schedule registers a refresh on the six-field cron spec. Each scheduled
// run uses ctx; a cancelled ctx turns later runs into no-ops.
func (r *Refresher) Schedule(ctx context.Context, spec string) error {
	_, err := r.cron.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := r.RunNow(ctx); err != nil {
			r.log.Errorw("Scheduled refresh failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("register refresh %q: %w", spec, err)
	}
	return nil
}

// Start starts the cron scheduler.
func (r *Refresher) Start() {
	r.cron.Start()
	r.log.Infow("Refresher started", "workers", r.workers)
}

// Stop stops scheduling and waits for a running job to finish.
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
	r.log.Info("Refresher stopped")
}

// LastReport returns the report of the latest completed run, if any.
func (r *Refresher) LastReport() (Report, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return Report{}, false
	}
	return *r.last, true
}

// RunNow refreshes every active user once. A failing user is logged and
// counted without stopping the others. Only listing failures and context
// cancellation abort the run.
func (r *Refresher) RunNow(ctx context.Context) (Report, error) {
	if !r.running.CompareAndSwap(false, true) {
		return Report{}, ErrAlreadyRunning
	}
	defer r.running.Store(false)

	start := time.Now()
	ids, err := r.users.ListActiveUserIDs(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("listing users: %w", err)
	}

	var periods, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, id := range ids {
		id := id
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n, err := r.chains.RecalculateUser(gctx, id)
			if err != nil {
				failed.Add(1)
				r.log.Warnw("Chain refresh failed", "user_id", id, "error", err)
				return nil
			}
			periods.Add(int64(n))
			return nil
		})
	}
	waitErr := g.Wait()

	report := Report{
		Users:    len(ids),
		Periods:  int(periods.Load()),
		Failed:   int(failed.Load()),
		Duration: time.Since(start),
	}
	if waitErr == nil {
		waitErr = ctx.Err()
	}
	if waitErr != nil {
		return report, waitErr
	}

	r.mu.Lock()
	r.last = &report
	r.mu.Unlock()

	r.log.Infow("Chains refreshed",
		"users", report.Users,
		"periods", report.Periods,
		"failed", report.Failed,
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}
