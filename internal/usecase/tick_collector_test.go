package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CryptoFactors/internal/domain/models"
	"CryptoFactors/internal/repository"
	applogger "CryptoFactors/pkg/logger"
)

// scriptedStream drops the connection after the first trade; subsequent
// reads keep the channels open until the context ends.
type scriptedStream struct {
	mu           sync.Mutex
	reads        int
	reconnects   int
	reconnectErr error
}

func (s *scriptedStream) Connect(context.Context) error   { return nil }
func (s *scriptedStream) Subscribe(context.Context) error { return nil }
func (s *scriptedStream) Close() error                    { return nil }

func (s *scriptedStream) Reconnect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnects++
	return s.reconnectErr
}

func (s *scriptedStream) Read(_ context.Context) (<-chan models.PriceTick, <-chan error) {
	s.mu.Lock()
	s.reads++
	n := s.reads
	s.mu.Unlock()

	ticks := make(chan models.PriceTick, 8)
	errs := make(chan error, 1)
	d := models.Date("2022-01-05")
	if n == 1 {
		ticks <- tickAt("BTC", "100", at(d, 9, 0))
		close(errs)
		close(ticks)
	} else {
		ticks <- tickAt("ETH", "3000", at(d, 10, 0))
	}
	return ticks, errs
}

func (s *scriptedStream) reconnectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnects
}

func TestTickCollectorReconnectsOnStreamClose(t *testing.T) {
	stream := &scriptedStream{}
	store := repository.NewMemoryTickStore()
	queue := repository.NewMemoryDateQueue()
	ing := NewTickIngestor(nil, store, queue, nopMetrics{}, applogger.Nop(), "memory")
	coll := NewTickCollector(stream, ing, applogger.Nop(), 1, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- coll.Start(ctx) }()

	d := models.Date("2022-01-05")
	require.Eventually(t, func() bool {
		stored, err := store.FetchTicks(context.Background(), d)
		return err == nil && len(stored) == 2
	}, 2*time.Second, 10*time.Millisecond, "expected ticks from before and after the reconnect")

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, stream.reconnectCount())
}

func TestTickCollectorGivesUpAfterFailedReconnects(t *testing.T) {
	stream := &scriptedStream{reconnectErr: assert.AnError}
	store := repository.NewMemoryTickStore()
	queue := repository.NewMemoryDateQueue()
	ing := NewTickIngestor(nil, store, queue, nopMetrics{}, applogger.Nop(), "memory")
	coll := NewTickCollector(stream, ing, applogger.Nop(), 1, 50*time.Millisecond)

	err := coll.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, maxReconnectAttempts, stream.reconnectCount())

	// the tick received before the drop is still flushed
	stored, err := store.FetchTicks(context.Background(), models.Date("2022-01-05"))
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}
