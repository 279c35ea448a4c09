package usecase

import (
	"context"
	"fmt"
	"time"

	"CryptoFactors/internal/domain/models"
	domrepo "CryptoFactors/internal/domain/repository"
	applogger "CryptoFactors/pkg/logger"
)

const maxReconnectAttempts = 5

// TickCollector reads a live tick stream and flushes buffered ticks into the
// ingestor. Flushes happen on batch size or timeout, whichever comes first.
type TickCollector struct {
	stream   domrepo.TickStream
	ingestor *TickIngestor
	log      *applogger.Logger

	batchSize    int
	batchTimeout time.Duration

	cancel context.CancelFunc
}

func NewTickCollector(stream domrepo.TickStream, ingestor *TickIngestor, log *applogger.Logger, batchSize int, batchTimeout time.Duration) *TickCollector {
	if batchSize <= 0 {
		batchSize = 200
	}
	if batchTimeout <= 0 {
		batchTimeout = 2 * time.Second
	}
	return &TickCollector{
		stream:       stream,
		ingestor:     ingestor,
		log:          log,
		batchSize:    batchSize,
		batchTimeout: batchTimeout,
	}
}

// Start connects, subscribes, and pumps ticks until ctx is done or the
// stream fails.
func (c *TickCollector) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	if err := c.stream.Connect(ctx); err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return fmt.Errorf("stream subscribe: %w", err)
	}

	ticks, errs := c.stream.Read(ctx)
	buf := make([]models.PriceTick, 0, c.batchSize)
	timer := time.NewTimer(c.batchTimeout)
	defer timer.Stop()

	flush := func() {
		if len(buf) == 0 {
			return
		}
		if err := c.ingestor.IngestBatch(ctx, buf); err != nil {
			c.log.Error("flush failed", applogger.Int("ticks", len(buf)), applogger.Error(err))
		}
		buf = buf[:0]
	}

	// When the stream channels close the socket is gone; reconnect and
	// resume reading. Consecutive failures are capped so a dead endpoint
	// does not loop forever.
	reconnect := func() error {
		// the stream closes both channels together; drain buffered ticks
		// before tearing down
		for t := range ticks {
			buf = append(buf, t)
		}
		flush()
		var err error
		for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
			if err = c.stream.Reconnect(ctx); err == nil {
				ticks, errs = c.stream.Read(ctx)
				return nil
			}
			c.log.Error("stream reconnect failed",
				applogger.Int("attempt", attempt), applogger.Error(err))
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		return fmt.Errorf("stream reconnect: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				if rerr := reconnect(); rerr != nil {
					return rerr
				}
				continue
			}
			c.log.Error("stream error", applogger.Error(err))
		case t, ok := <-ticks:
			if !ok {
				if rerr := reconnect(); rerr != nil {
					return rerr
				}
				continue
			}
			buf = append(buf, t)
			if len(buf) >= c.batchSize {
				flush()
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(c.batchTimeout)
			}
		case <-timer.C:
			flush()
			timer.Reset(c.batchTimeout)
		}
	}
}

// Shutdown stops the pump and closes the stream.
func (c *TickCollector) Shutdown(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	return c.stream.Close()
}
