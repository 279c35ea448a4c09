package scheduler

import (
	"context"
	"sync"
	"time"

	"CryptoFactors/internal/domain/models"
	domrepo "CryptoFactors/internal/domain/repository"
	"CryptoFactors/internal/usecase"
	applogger "CryptoFactors/pkg/logger"
)

// Scheduler runs one processing pass per tick. Passes never overlap: a tick
// arriving while a pass is still running is skipped.
type Scheduler struct {
	processor *usecase.DateProcessor
	queue     domrepo.DateQueue
	interval  time.Duration
	seeds     []models.Date
	log       *applogger.Logger

	running  sync.Mutex
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New creates a scheduler. seeds are dates enqueued once at startup, used to
// backfill historical data sets.
func New(processor *usecase.DateProcessor, queue domrepo.DateQueue, interval time.Duration, seeds []models.Date, log *applogger.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		processor: processor,
		queue:     queue,
		interval:  interval,
		seeds:     seeds,
		log:       log,
		stopCh:    make(chan struct{}),
	}
}

// Start seeds the queue and launches the tick loop.
func (s *Scheduler) Start(ctx context.Context) {
	if len(s.seeds) > 0 {
		if err := s.queue.Enqueue(ctx, s.seeds...); err != nil {
			s.log.Error("seed enqueue failed", applogger.Error(err))
		} else {
			s.log.Info("seeded processing queue", applogger.Int("dates", len(s.seeds)))
		}
	}

	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop halts the tick loop and waits for an in-flight pass to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// RunOnce triggers a single pass immediately, used by the backfill CLI.
func (s *Scheduler) RunOnce(ctx context.Context) (*models.ProcessingOutcome, error) {
	s.running.Lock()
	defer s.running.Unlock()
	return s.processor.ProcessNext(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// immediate first pass so a restart drains the queue without waiting a
	// full interval
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.running.TryLock() {
		s.log.Warn("previous pass still running, skipping tick")
		return
	}
	defer s.running.Unlock()

	outcome, err := s.processor.ProcessNext(ctx)
	if err != nil {
		s.log.Error("processing pass error", applogger.Error(err))
		return
	}
	s.log.Info("processing pass done",
		applogger.String("date", outcome.Date.String()),
		applogger.String("stage", string(outcome.FinalStage)),
	)
}
