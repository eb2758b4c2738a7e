package reconcile

import (
	"context"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ballot-network/ballotx/pkg/db/models"
)

// ElectionLister enumerates the elections a scheduled run covers.
type ElectionLister interface {
	ListElectionsByStatus(ctx context.Context, status models.ElectionStatus) ([]models.Election, error)
}

// ReportSink receives finished reports. Implementations cache them for
// the API and publish mismatches for operators.
type ReportSink interface {
	StoreReport(ctx context.Context, report *models.IntegrityReport) error
	PublishMismatch(ctx context.Context, report *models.IntegrityReport) error
}

// Runner reconciles every open election on a cron schedule, fanning the
// per-election runs out over a bounded worker pool.
type Runner struct {
	engine *Engine
	lister ElectionLister
	sink   ReportSink // may be nil
	logger *zap.Logger

	pool     pond.Pool
	cron     *cron.Cron
	cronSpec string
}

func NewRunner(engine *Engine, lister ElectionLister, sink ReportSink, workers int, cronSpec string, logger *zap.Logger) *Runner {
	if workers <= 0 {
		workers = 4
	}
	return &Runner{
		engine:   engine,
		lister:   lister,
		sink:     sink,
		logger:   logger,
		pool:     pond.NewPool(workers),
		cronSpec: cronSpec,
	}
}

// Start schedules the runs and returns. Stop with Stop.
func (r *Runner) Start(ctx context.Context) error {
	// Seconds field enabled, same spec format as the rest of the fleet.
	r.cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger)))

	_, err := r.cron.AddFunc(r.cronSpec, func() {
		// keep each sweep bounded
		rctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if err := r.RunAll(rctx); err != nil {
			r.logger.Error("Reconciliation sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	r.cron.Start()
	r.logger.Info("Reconciliation scheduler started", zap.String("cron_spec", r.cronSpec))
	return nil
}

// Stop halts the scheduler and waits for in-flight runs.
func (r *Runner) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
	r.pool.StopAndWait()
}

// RunAll reconciles every open election once.
func (r *Runner) RunAll(ctx context.Context) error {
	elections, err := r.lister.ListElectionsByStatus(ctx, models.StatusOpen)
	if err != nil {
		return err
	}

	group := r.pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for _, elec := range elections {
		electionID := elec.ID

		group.Submit(func() {
			if err := groupCtx.Err(); err != nil {
				return
			}

			report, rerr := r.engine.Reconcile(groupCtx, electionID)
			if rerr != nil {
				r.logger.Error("Reconciliation failed",
					zap.String("election_id", electionID),
					zap.Error(rerr))
				return
			}
			r.deliver(groupCtx, report)
		})
	}

	return group.Wait()
}

func (r *Runner) deliver(ctx context.Context, report *models.IntegrityReport) {
	if r.sink == nil {
		return
	}
	if err := r.sink.StoreReport(ctx, report); err != nil {
		r.logger.Error("Failed to cache integrity report",
			zap.String("election_id", report.ElectionID),
			zap.Error(err))
	}
	if report.HasMismatch {
		if err := r.sink.PublishMismatch(ctx, report); err != nil {
			r.logger.Error("Failed to publish integrity mismatch",
				zap.String("election_id", report.ElectionID),
				zap.Error(err))
		}
	}
}
