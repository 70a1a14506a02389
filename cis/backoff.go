package cis

import (
	"sync"
	"time"
)

// failureBackoff 连续预留失败后的退避阶梯
// 第 k 次连续失败后等待 levels[min(k-1, len(levels)-1)]，成功后归零
type failureBackoff struct {
	mu          sync.Mutex
	levels      []time.Duration
	failures    int
	lastFailure time.Time
	now         func() time.Time
}

func newFailureBackoff(levels []int, now func() time.Time) *failureBackoff {
	b := &failureBackoff{now: now}
	for _, level := range levels {
		b.levels = append(b.levels, time.Duration(level)*time.Second)
	}
	return b
}

// current 当前退避时长，调用方需持有锁
func (b *failureBackoff) current() time.Duration {
	if b.failures == 0 || len(b.levels) == 0 {
		return 0
	}
	idx := b.failures - 1
	if idx >= len(b.levels) {
		idx = len(b.levels) - 1
	}
	return b.levels[idx]
}

// active 返回是否处于退避期及退避结束时间
func (b *failureBackoff) active() (bool, time.Duration, time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wait := b.current()
	if wait == 0 {
		return false, 0, time.Time{}
	}
	until := b.lastFailure.Add(wait)
	return b.now().Before(until), wait, until
}

// fail 记录一次失败并返回新的退避时长
func (b *failureBackoff) fail() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.now()
	if b.failures < len(b.levels) {
		b.failures++
	}
	return b.current()
}

// reset 成功后清除失败记录
func (b *failureBackoff) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.lastFailure = time.Time{}
}
