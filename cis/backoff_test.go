package cis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFailureBackoffLadder(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	b := newFailureBackoff([]int{30, 60, 180}, func() time.Time { return now })

	active, _, _ := b.active()
	assert.False(t, active)

	assert.Equal(t, 30*time.Second, b.fail())
	assert.Equal(t, 60*time.Second, b.fail())
	assert.Equal(t, 180*time.Second, b.fail())
	// 超出阶梯后停留在最后一档
	assert.Equal(t, 180*time.Second, b.fail())

	active, wait, until := b.active()
	assert.True(t, active)
	assert.Equal(t, 180*time.Second, wait)
	assert.Equal(t, now.Add(180*time.Second), until)

	now = now.Add(180 * time.Second)
	active, _, _ = b.active()
	assert.False(t, active)

	b.reset()
	assert.Equal(t, 30*time.Second, b.fail())
}

func TestFailureBackoffDisabled(t *testing.T) {
	b := newFailureBackoff(nil, time.Now)

	assert.Equal(t, time.Duration(0), b.fail())
	active, _, _ := b.active()
	assert.False(t, active)
}
