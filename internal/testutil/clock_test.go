package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicClock_StartsAtStart(t *testing.T) {
	clock := NewDeterministicClock()
	assert.Equal(t, DefaultClockStart, clock.Current())
}

func TestDeterministicClock_NowAdvancesBySteps(t *testing.T) {
	clock := NewDeterministicClock()

	assert.Equal(t, DefaultClockStart.Add(time.Second), clock.Now())
	assert.Equal(t, DefaultClockStart.Add(time.Second), clock.Current())
	assert.Equal(t, DefaultClockStart.Add(2*time.Second), clock.Now())
	assert.Equal(t, DefaultClockStart.Add(3*time.Second), clock.Now())
}

func TestDeterministicClock_CustomStep(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	clock := NewDeterministicClockAt(start, time.Minute)

	got := clock.Now()
	assert.Equal(t, time.UTC, got.Location())
	assert.True(t, got.Equal(start.Add(time.Minute)))
}

func TestDeterministicClock_Reset(t *testing.T) {
	clock := NewDeterministicClock()
	clock.Now()
	clock.Now()
	clock.Reset()
	assert.Equal(t, DefaultClockStart, clock.Current())
	assert.Equal(t, DefaultClockStart.Add(time.Second), clock.Now())
}

func TestDeterministicClock_ThreadSafe(t *testing.T) {
	clock := NewDeterministicClock()
	const numGoroutines = 50
	const callsPerGoroutine = 100

	var mu sync.Mutex
	seen := make(map[time.Time]bool)
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				now := clock.Now()
				mu.Lock()
				seen[now] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	total := numGoroutines * callsPerGoroutine
	require.Len(t, seen, total, "every read is a distinct time")
	assert.Equal(t, DefaultClockStart.Add(time.Duration(total)*time.Second), clock.Current())
}

func TestDeterministicClock_Deterministic(t *testing.T) {
	clock1 := NewDeterministicClock()
	clock2 := NewDeterministicClock()
	for i := 0; i < 100; i++ {
		assert.Equal(t, clock1.Now(), clock2.Now())
	}
}
