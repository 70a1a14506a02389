package internal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/sctid-kit/clog"
	"github.com/ceyewan/sctid-kit/problem"
	"github.com/ceyewan/sctid-kit/sctid"
)

// fakeSource 按顺序发放标识符，记录每次请求的数量
type fakeSource struct {
	mu        sync.Mutex
	next      int64
	requests  []int
	err       error
	delay     time.Duration
	extra     int
	empty     bool
	started   chan struct{}
	release   chan struct{}
	startOnce sync.Once
}

func newFakeSource() *fakeSource {
	return &fakeSource{next: 1}
}

// blocking 让 ReserveIDs 阻塞直到 release 被关闭
func (s *fakeSource) blocking() *fakeSource {
	s.started = make(chan struct{})
	s.release = make(chan struct{})
	return s
}

func (s *fakeSource) ReserveIDs(ctx context.Context, namespace int, partition sctid.Partition, quantity int) ([]int64, error) {
	if s.release != nil {
		s.startOnce.Do(func() { close(s.started) })
		<-s.release
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, quantity)
	if s.err != nil {
		return nil, s.err
	}
	if s.empty {
		return []int64{}, nil
	}
	ids := make([]int64, 0, quantity+s.extra)
	for i := 0; i < quantity+s.extra; i++ {
		ids = append(ids, s.next)
		s.next++
	}
	return ids, nil
}

func (s *fakeSource) Requests() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.requests...)
}

var testKey = Key{Namespace: 1000168, Partition: sctid.PartitionExtensionConcept}

func newTestPool(capacity int, threshold float64, trigger Trigger, source Source) *Pool {
	return NewPool(testKey, capacity, threshold, trigger, source, clog.Nop())
}

func TestRefillPoint(t *testing.T) {
	assert.InDelta(t, 10.0, RefillPoint(50, 0.2, TriggerFraction), 1e-9)
	assert.InDelta(t, 250.0, RefillPoint(50, 0.2, TriggerQuotient), 1e-9)
	assert.InDelta(t, 50.0, RefillPoint(50, 1, TriggerFraction), 1e-9)
	assert.True(t, TriggerFraction.Valid())
	assert.True(t, TriggerQuotient.Valid())
	assert.False(t, Trigger("ratio").Valid())
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "1000168:10", testKey.String())
}

func TestWarmUpFromEmpty(t *testing.T) {
	source := newFakeSource()
	pool := newTestPool(50, 0.2, TriggerFraction, source)

	id, err := pool.GetIdentifier(context.Background())
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Equal(t, []int{50}, source.Requests())
	assert.Equal(t, 49, pool.Size())
}

func TestFractionTrigger(t *testing.T) {
	ctx := context.Background()
	source := newFakeSource()
	pool := newTestPool(50, 0.2, TriggerFraction, source)
	require.NoError(t, pool.TopUp(ctx))
	require.Equal(t, 50, pool.Size())

	for i := 0; i < 40; i++ {
		_, err := pool.GetIdentifier(ctx)
		require.NoError(t, err)
	}
	// 大小 10，未低于触发点
	require.NoError(t, pool.TopUp(ctx))
	assert.Equal(t, []int{50}, source.Requests())

	_, err := pool.GetIdentifier(ctx)
	require.NoError(t, err)
	require.NoError(t, pool.TopUp(ctx))
	assert.Equal(t, []int{50, 41}, source.Requests())
	assert.Equal(t, 50, pool.Size())
}

func TestQuotientTrigger(t *testing.T) {
	ctx := context.Background()
	source := newFakeSource()
	pool := newTestPool(50, 0.2, TriggerQuotient, source)
	require.NoError(t, pool.TopUp(ctx))

	// 满池不补充
	require.NoError(t, pool.TopUp(ctx))
	assert.Equal(t, []int{50}, source.Requests())

	_, err := pool.GetIdentifier(ctx)
	require.NoError(t, err)
	require.NoError(t, pool.TopUp(ctx))
	assert.Equal(t, []int{50, 1}, source.Requests())
}

func TestRefillNeverExceedsCapacity(t *testing.T) {
	ctx := context.Background()
	source := newFakeSource()
	source.extra = 7
	pool := newTestPool(20, 0.5, TriggerFraction, source)

	require.NoError(t, pool.TopUp(ctx))
	assert.Equal(t, 20, pool.Size())

	for i := 0; i < 15; i++ {
		_, err := pool.GetIdentifier(ctx)
		require.NoError(t, err)
	}
	require.NoError(t, pool.TopUp(ctx))
	assert.Equal(t, 20, pool.Size())
	assert.Equal(t, []int{20, 15}, source.Requests())
}

func TestUniqueUnderConcurrency(t *testing.T) {
	source := newFakeSource()
	pool := newTestPool(10, 0.2, TriggerFraction, source)

	const workers, perWorker = 8, 100
	results := make(chan int64, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for got := 0; got < perWorker; {
				id, err := pool.GetIdentifier(context.Background())
				if !assert.NoError(t, err) {
					return
				}
				results <- id
				got++
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int64]struct{})
	for id := range results {
		_, dup := seen[id]
		require.False(t, dup, "identifier %d handed out twice", id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, workers*perWorker)
	for _, n := range source.Requests() {
		assert.LessOrEqual(t, n, 10)
	}
}

func TestConcurrentRefillIsSingleFlight(t *testing.T) {
	source := newFakeSource().blocking()
	pool := newTestPool(50, 0.2, TriggerFraction, source)

	const callers = 10
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pool.GetIdentifier(context.Background())
			assert.NoError(t, err)
		}()
	}

	<-source.started
	time.Sleep(20 * time.Millisecond)
	close(source.release)
	wg.Wait()

	assert.Equal(t, []int{50}, source.Requests())
	assert.Equal(t, 50-callers, pool.Size())
}

func TestWaitersOutnumberingCapacityAreAllServed(t *testing.T) {
	source := newFakeSource()
	source.delay = 20 * time.Millisecond
	pool := newTestPool(2, 0.2, TriggerFraction, source)

	const callers = 32
	var wg sync.WaitGroup
	results := make(chan int64, callers)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			id, err := pool.GetIdentifier(context.Background())
			if assert.NoError(t, err) {
				results <- id
			}
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	seen := make(map[int64]struct{})
	for id := range results {
		_, dup := seen[id]
		require.False(t, dup, "identifier %d handed out twice", id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, callers)
	for _, n := range source.Requests() {
		assert.LessOrEqual(t, n, 2)
	}
}

func TestTopUpCallerGivesUp(t *testing.T) {
	source := newFakeSource().blocking()
	pool := newTestPool(5, 0.2, TriggerFraction, source)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.TopUp(ctx) }()

	<-source.started
	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, problem.Is(err, problem.CodeClientIntegration))

	// 远程请求继续完成
	close(source.release)
	assert.Eventually(t, func() bool { return pool.Size() == 5 }, time.Second, 5*time.Millisecond)
}

func TestExhausted(t *testing.T) {
	source := newFakeSource()
	source.empty = true
	pool := newTestPool(5, 0.2, TriggerFraction, source)

	_, err := pool.GetIdentifier(context.Background())
	require.Error(t, err)
	assert.True(t, problem.Is(err, problem.CodePoolExhausted))
}

func TestSourceErrorPropagatesUnchanged(t *testing.T) {
	source := newFakeSource()
	source.err = problem.ClientIntegration("reserve", errors.New("connection refused"))
	pool := newTestPool(5, 0.2, TriggerFraction, source)

	_, err := pool.GetIdentifier(context.Background())
	require.Error(t, err)
	assert.Same(t, source.err, err)
	assert.Equal(t, 0, pool.Size())

	// 之后的成功补充让缓冲池恢复
	source.mu.Lock()
	source.err = nil
	source.mu.Unlock()
	_, err = pool.GetIdentifier(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, pool.Size())
}
