package ds

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 10; i++ {
		require.True(t, q.Push(i))
	}
	q.Close()

	var got []int
	for v := range q.Chan() {
		got = append(got, v)
	}
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestQueue_Close_DeliversBuffered(t *testing.T) {
	q := NewQueue[string]()
	q.Push("a")
	q.Push("b")
	q.Close()

	require.False(t, q.Push("late"))

	var got []string
	for v := range q.Chan() {
		got = append(got, v)
	}
	require.Equal(t, []string{"a", "b"}, got)
}

func TestQueue_Drop_DiscardsBuffered(t *testing.T) {
	q := NewQueue[int]()
	q.Push(1)
	q.Push(2)
	q.Drop()

	// channel closes without anyone reading the buffered items
	select {
	case _, ok := <-q.Chan():
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("queue did not close after Drop")
	}
}

func TestQueue_Drop_UnblocksPendingSend(t *testing.T) {
	q := NewQueue[int]()
	q.Push(1) // pump blocks handing this to a reader that never comes

	time.Sleep(10 * time.Millisecond)
	q.Drop()

	select {
	case _, ok := <-q.Chan():
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("pending send not released")
	}
}

func TestQueue_SlowConsumer_NeverBlocksProducer(t *testing.T) {
	q := NewQueue[int]()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			q.Push(i)
		}
		q.Close()
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("producer blocked")
	}

	n := 0
	for range q.Chan() {
		n++
	}
	require.Equal(t, 1000, n)
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := NewQueue[int]()

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Push(i)
			}
		}()
	}

	go func() {
		wg.Wait()
		q.Close()
	}()

	n := 0
	for range q.Chan() {
		n++
	}
	require.Equal(t, 400, n)
}
