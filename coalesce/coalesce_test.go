package coalesce

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDoRequestCoalescesConcurrentCallers(t *testing.T) {
	c := New()
	var calls int32

	var wg sync.WaitGroup
	results := make([]any, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, err := c.DoRequest("shared-key", func() (any, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(30 * time.Millisecond)
				return "computed", nil
			})
			assert.NoError(t, err)
			results[idx] = v
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "concurrent callers of the same key should coalesce to one execution")
	for _, r := range results {
		assert.Equal(t, "computed", r)
	}
}

func TestDoRequestDifferentKeysRunIndependently(t *testing.T) {
	c := New()
	var calls int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, _ = c.DoRequest(string(rune('a'+idx)), func() (any, error) {
				atomic.AddInt32(&calls, 1)
				return idx, nil
			})
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
}

func TestTrySpawnRefreshDedupes(t *testing.T) {
	c := New()
	var started int32
	done := make(chan struct{}, 10)

	for i := 0; i < 5; i++ {
		c.TrySpawnRefresh("k", func() {
			atomic.AddInt32(&started, 1)
			time.Sleep(50 * time.Millisecond)
			done <- struct{}{}
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresh never completed")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&started))
}

func TestTrySpawnRefreshAllowsNewRunAfterCompletion(t *testing.T) {
	c := New()
	done1 := make(chan struct{})
	started := c.TrySpawnRefresh("k", func() { close(done1) })
	assert.True(t, started)
	<-done1

	time.Sleep(10 * time.Millisecond) // let the refreshing-set cleanup run

	done2 := make(chan struct{})
	started = c.TrySpawnRefresh("k", func() { close(done2) })
	assert.True(t, started)
	<-done2
}
