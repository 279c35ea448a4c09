package repository

import (
	"context"
	"sort"
	"sync"

	"CryptoFactors/internal/domain/models"
	domrepo "CryptoFactors/internal/domain/repository"
)

// MemoryTickStore implements TickStore in process memory. Used by the memory
// storage backend and by tests.
type MemoryTickStore struct {
	mu    sync.RWMutex
	ticks []models.PriceTick
}

// NewMemoryTickStore creates an empty in-memory tick store.
func NewMemoryTickStore() *MemoryTickStore {
	return &MemoryTickStore{}
}

var _ domrepo.TickStore = (*MemoryTickStore)(nil)

func (s *MemoryTickStore) SaveBatch(_ context.Context, ticks []models.PriceTick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks = append(s.ticks, ticks...)
	return nil
}

func (s *MemoryTickStore) FetchTicks(_ context.Context, date models.Date) ([]models.PriceTick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.PriceTick
	for _, t := range s.ticks {
		if date.Contains(t.Timestamp) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (s *MemoryTickStore) Health(context.Context) error { return nil }

func (s *MemoryTickStore) Close() error { return nil }

// MemoryAggregateStore implements AggregateStore in process memory. Rows are
// cloned on the way in and out so callers never share memory with the store.
type MemoryAggregateStore struct {
	mu   sync.RWMutex
	rows map[models.AggregateKey]*models.DailyAggregate
}

// NewMemoryAggregateStore creates an empty in-memory aggregate store.
func NewMemoryAggregateStore() *MemoryAggregateStore {
	return &MemoryAggregateStore{rows: make(map[models.AggregateKey]*models.DailyAggregate)}
}

var _ domrepo.AggregateStore = (*MemoryAggregateStore)(nil)

func (s *MemoryAggregateStore) Get(_ context.Context, key models.AggregateKey) (*models.DailyAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[key]
	if !ok {
		return nil, models.ErrNotFound
	}
	return row.Clone(), nil
}

func (s *MemoryAggregateStore) GetMany(_ context.Context, keys []models.AggregateKey) (map[models.AggregateKey]*models.DailyAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[models.AggregateKey]*models.DailyAggregate, len(keys))
	for _, key := range keys {
		if row, ok := s.rows[key]; ok {
			out[key] = row.Clone()
		}
	}
	return out, nil
}

func (s *MemoryAggregateStore) Insert(_ context.Context, rows []*models.DailyAggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range rows {
		s.rows[row.Key] = row.Clone()
	}
	return nil
}

func (s *MemoryAggregateStore) Update(_ context.Context, upd models.AggregateUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[upd.Key]
	if !ok {
		return models.ErrNotFound
	}
	upd.ApplyTo(row)
	return nil
}

func (s *MemoryAggregateStore) QueryByDate(_ context.Context, date models.Date) ([]*models.DailyAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.DailyAggregate
	for key, row := range s.rows {
		if key.ReferenceDate == date {
			out = append(out, row.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Symbol < out[j].Key.Symbol })
	return out, nil
}

func (s *MemoryAggregateStore) QueryRange(_ context.Context, symbol string, from, to models.Date) ([]*models.DailyAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.DailyAggregate
	for key, row := range s.rows {
		if key.Symbol == symbol && !key.ReferenceDate.Before(from) && !key.ReferenceDate.After(to) {
			out = append(out, row.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key.ReferenceDate.Before(out[j].Key.ReferenceDate)
	})
	return out, nil
}

func (s *MemoryAggregateStore) QueryAllRange(_ context.Context, from, to models.Date) ([]*models.DailyAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.DailyAggregate
	for key, row := range s.rows {
		if !key.ReferenceDate.Before(from) && !key.ReferenceDate.After(to) {
			out = append(out, row.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Symbol != out[j].Key.Symbol {
			return out[i].Key.Symbol < out[j].Key.Symbol
		}
		return out[i].Key.ReferenceDate.Before(out[j].Key.ReferenceDate)
	})
	return out, nil
}

func (s *MemoryAggregateStore) Close() error { return nil }

// MemoryDateQueue implements DateQueue in process memory, mirroring the
// Redis layout: a pending list, an in-progress set, and a stage map.
type MemoryDateQueue struct {
	mu         sync.Mutex
	pending    []models.Date
	inProgress map[models.Date]bool
	stages     map[models.Date]models.Stage
}

// NewMemoryDateQueue creates an empty in-memory date queue.
func NewMemoryDateQueue() *MemoryDateQueue {
	return &MemoryDateQueue{
		inProgress: make(map[models.Date]bool),
		stages:     make(map[models.Date]models.Stage),
	}
}

var _ domrepo.DateQueue = (*MemoryDateQueue)(nil)

func (q *MemoryDateQueue) Enqueue(_ context.Context, dates ...models.Date) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, d := range dates {
		if q.queued(d) {
			continue
		}
		q.pending = append(q.pending, d)
		if _, ok := q.stages[d]; !ok {
			q.stages[d] = models.StagePending
		}
	}
	return nil
}

func (q *MemoryDateQueue) queued(d models.Date) bool {
	if q.inProgress[d] {
		return true
	}
	for _, p := range q.pending {
		if p == d {
			return true
		}
	}
	return false
}

func (q *MemoryDateQueue) Dequeue(context.Context) (models.Date, models.Stage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return "", "", models.ErrQueueEmpty
	}
	d := q.pending[0]
	q.pending = q.pending[1:]
	q.inProgress[d] = true

	stage, ok := q.stages[d]
	if !ok {
		stage = models.StagePending
	}
	return d, stage, nil
}

func (q *MemoryDateQueue) SaveStage(_ context.Context, date models.Date, stage models.Stage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stages[date] = stage
	return nil
}

func (q *MemoryDateQueue) Complete(_ context.Context, date models.Date) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inProgress, date)
	delete(q.stages, date)
	return nil
}

func (q *MemoryDateQueue) Release(_ context.Context, date models.Date) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.inProgress[date] {
		return nil
	}
	delete(q.inProgress, date)
	q.pending = append([]models.Date{date}, q.pending...)
	return nil
}

func (q *MemoryDateQueue) Pending(context.Context) ([]models.Date, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]models.Date, len(q.pending))
	copy(out, q.pending)
	return out, nil
}

func (q *MemoryDateQueue) Close() error { return nil }
