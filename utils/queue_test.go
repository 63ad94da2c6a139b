package utils

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDequeDrainOrder(t *testing.T) {
	q := NewDeque[int]()
	for i := 1; i <= 3; i++ {
		q.Put(i)
	}
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, []int{1, 2, 3}, q.Drain())
	assert.Equal(t, 0, q.Len())
	assert.Empty(t, q.Drain())
}

func TestDequeGetWaitsForPut(t *testing.T) {
	q := NewDeque[string]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Put("alarm")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	item, err := q.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alarm", item)
}

func TestDequeGetHonoursContext(t *testing.T) {
	q := NewDeque[string]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := q.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDequeConcurrentPut(t *testing.T) {
	q := NewDeque[int]()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Put(n)
			}
		}(i)
	}
	wg.Wait()
	assert.Len(t, q.Drain(), 800)
}
