package mutations

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Sequencer пропускает не больше одной мутации на курс; остальные ждут своей
// очереди или отмены контекста. Один Sequencer можно разделить между диспетчерами.
type Sequencer struct {
	mu   sync.Mutex
	sems map[int]*semaphore.Weighted
}

func NewSequencer() *Sequencer {
	return &Sequencer{sems: make(map[int]*semaphore.Weighted)}
}

// acquire на nil-очереди ничего не ждёт.
func (s *Sequencer) acquire(ctx context.Context, courseID int) (func(), error) {
	if s == nil {
		return func() {}, nil
	}

	s.mu.Lock()
	sem, ok := s.sems[courseID]
	if !ok {
		sem = semaphore.NewWeighted(1)
		s.sems[courseID] = sem
	}
	s.mu.Unlock()

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { sem.Release(1) }, nil
}
