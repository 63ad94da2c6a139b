package utils

import (
	"container/list"
	"context"
	"sync"
)

// Deque is a mutex-guarded FIFO. Producers Put from any goroutine; the
// consumer either blocks in Get or takes everything at once with Drain.
type Deque[T any] struct {
	sync.Mutex
	notEmptyNotify chan struct{}
	container      *list.List
}

func NewDeque[T any]() *Deque[T] {
	return &Deque[T]{container: list.New(), notEmptyNotify: make(chan struct{}, 1)}
}

func (s *Deque[T]) Put(item T) {
	s.Lock()
	s.container.PushFront(item)
	s.Unlock()
	select {
	case s.notEmptyNotify <- struct{}{}:
	default:
	}
}

// Get removes the oldest item, waiting until one is available or ctx ends.
func (s *Deque[T]) Get(ctx context.Context) (T, error) {
	for {
		s.Lock()
		if last := s.container.Back(); last != nil {
			item := s.container.Remove(last).(T)
			s.Unlock()
			return item, nil
		}
		s.Unlock()
		select {
		case <-s.notEmptyNotify:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Drain removes and returns every queued item, oldest first.
func (s *Deque[T]) Drain() []T {
	s.Lock()
	defer s.Unlock()
	items := make([]T, 0, s.container.Len())
	for e := s.container.Back(); e != nil; e = e.Prev() {
		items = append(items, e.Value.(T))
	}
	s.container.Init()
	return items
}

func (s *Deque[T]) Len() int {
	s.Lock()
	defer s.Unlock()
	return s.container.Len()
}
