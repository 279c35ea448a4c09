package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CryptoFactors/internal/domain/models"
	domrepo "CryptoFactors/internal/domain/repository"
	applogger "CryptoFactors/pkg/logger"
)

// DefaultDate names the fallback date used when the queue is empty.
type DefaultDate string

const (
	DefaultToday     DefaultDate = "today"
	DefaultYesterday DefaultDate = "yesterday"
)

// DateProcessor drives one date through the full pass:
// daily factors -> reconcile -> weekly factor -> reconcile -> monthly factor
// -> reconcile. Exactly one pass runs at a time; the scheduler enforces
// that, not the processor.
type DateProcessor struct {
	daily      *DailyAggregator
	windows    *WindowAggregator
	reconciler *Reconciler
	queue      domrepo.DateQueue
	metrics    domrepo.Metrics
	log        *applogger.Logger
	fallback   DefaultDate
}

func NewDateProcessor(
	daily *DailyAggregator,
	windows *WindowAggregator,
	reconciler *Reconciler,
	queue domrepo.DateQueue,
	metrics domrepo.Metrics,
	log *applogger.Logger,
	fallback DefaultDate,
) *DateProcessor {
	if fallback != DefaultYesterday {
		fallback = DefaultToday
	}
	return &DateProcessor{
		daily:      daily,
		windows:    windows,
		reconciler: reconciler,
		queue:      queue,
		metrics:    metrics,
		log:        log,
		fallback:   fallback,
	}
}

// ProcessNext dequeues the earliest pending date and processes it. With an
// empty queue it falls back to the configured default date, which is not
// tracked by the queue. Queue bookkeeping: success completes the date,
// failure releases it back with its last successful stage.
func (p *DateProcessor) ProcessNext(ctx context.Context) (*models.ProcessingOutcome, error) {
	date, stage, err := p.queue.Dequeue(ctx)
	tracked := true
	if err != nil {
		if !errors.Is(err, models.ErrQueueEmpty) {
			p.metrics.RecordError("queue_dequeue")
			return nil, fmt.Errorf("dequeue: %w", err)
		}
		tracked = false
		stage = models.StagePending
		date = models.Today()
		if p.fallback == DefaultYesterday {
			date = date.AddDays(-1)
		}
	}

	if pending, perr := p.queue.Pending(ctx); perr == nil {
		p.metrics.SetQueueDepth(len(pending))
	}

	outcome, err := p.ProcessDate(ctx, date, stage)
	if !tracked {
		return outcome, err
	}
	if err != nil {
		if serr := p.queue.SaveStage(ctx, date, outcome.FinalStage); serr != nil {
			p.log.Error("save stage failed", applogger.String("date", date.String()), applogger.Error(serr))
		}
		if rerr := p.queue.Release(ctx, date); rerr != nil {
			p.log.Error("release failed", applogger.String("date", date.String()), applogger.Error(rerr))
		}
		return outcome, err
	}
	if cerr := p.queue.Complete(ctx, date); cerr != nil {
		p.metrics.RecordError("queue_complete")
		return outcome, fmt.Errorf("complete %s: %w", date, cerr)
	}
	return outcome, nil
}

// ProcessDate runs the pass for one date, resuming after the given last
// completed stage. A failing stage aborts the pass; the returned outcome's
// FinalStage records the last stage that still succeeded so the date can be
// retried from there.
func (p *DateProcessor) ProcessDate(ctx context.Context, date models.Date, from models.Stage) (*models.ProcessingOutcome, error) {
	start := time.Now()
	outcome := &models.ProcessingOutcome{Date: date, FinalStage: from}
	p.log.Info("processing pass started",
		applogger.String("date", date.String()),
		applogger.String("from_stage", string(from)),
	)

	type stageRun struct {
		stage models.Stage
		run   func(context.Context) (ReconcileStats, int, error)
	}
	stages := []stageRun{
		{models.StageDailyComputed, func(ctx context.Context) (ReconcileStats, int, error) {
			return p.runDaily(ctx, date)
		}},
		{models.StageWeeklyComputed, func(ctx context.Context) (ReconcileStats, int, error) {
			return p.runWindow(ctx, date, models.PeriodWeek)
		}},
		{models.StageMonthlyComputed, func(ctx context.Context) (ReconcileStats, int, error) {
			return p.runWindow(ctx, date, models.PeriodMonth)
		}},
	}

	for _, s := range stages {
		if stageReached(outcome.FinalStage, s.stage) {
			continue // already done in an earlier, partially failed pass
		}
		stats, symbolErrs, err := s.run(ctx)
		if err != nil {
			p.metrics.RecordPass(string(s.stage), "error")
			p.log.Error("stage failed",
				applogger.String("date", date.String()),
				applogger.String("stage", string(s.stage)),
				applogger.Error(err),
			)
			return outcome, fmt.Errorf("stage %s for %s: %w", s.stage, date, err)
		}
		outcome.Inserted += stats.Inserted
		outcome.Updated += stats.Updated
		outcome.SymbolErrors += symbolErrs
		outcome.FinalStage = s.stage
		p.metrics.RecordPass(string(s.stage), "ok")
	}

	outcome.FinalStage = models.StageProcessed
	p.metrics.RecordLatency("process_date", time.Since(start).Seconds())
	p.log.Info("processing pass finished",
		applogger.String("date", date.String()),
		applogger.Int("inserted", outcome.Inserted),
		applogger.Int("updated", outcome.Updated),
		applogger.Int("symbol_errors", outcome.SymbolErrors),
	)
	return outcome, nil
}

func (p *DateProcessor) runDaily(ctx context.Context, date models.Date) (ReconcileStats, int, error) {
	updates, symbolErrs, err := p.daily.ComputeDaily(ctx, date)
	if err != nil {
		return ReconcileStats{}, 0, err
	}
	stats, err := p.reconciler.Reconcile(ctx, updates)
	return stats, len(symbolErrs), err
}

func (p *DateProcessor) runWindow(ctx context.Context, date models.Date, period models.FactorPeriod) (ReconcileStats, int, error) {
	updates, symbolErrs, err := p.windows.ComputeWindowUpdates(ctx, date, period)
	if err != nil {
		return ReconcileStats{}, 0, err
	}
	stats, err := p.reconciler.Reconcile(ctx, updates)
	return stats, len(symbolErrs), err
}

// stageReached reports whether done already covers stage in the pass order.
func stageReached(done, stage models.Stage) bool {
	order := map[models.Stage]int{
		models.StagePending:         0,
		models.StageDailyComputed:   1,
		models.StageWeeklyComputed:  2,
		models.StageMonthlyComputed: 3,
		models.StageProcessed:       4,
	}
	return order[done] >= order[stage]
}
