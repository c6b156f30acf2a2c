package looper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLooper_RunsPostedCallbacksInOrder(t *testing.T) {
	l := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		require.True(t, l.Post(func() { got = append(got, i) }))
	}
	require.NoError(t, l.Call(ctx, func() {}))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.False(t, l.Post(func() {}))
}

func TestLooper_PostDelayedCancel(t *testing.T) {
	l := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	fired := make(chan struct{}, 2)
	stop := l.PostDelayed(func() { fired <- struct{}{} }, 10*time.Millisecond)
	stop()
	stop()

	l.PostDelayed(func() { fired <- struct{}{} }, 20*time.Millisecond)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("delayed callback never ran")
	}
	select {
	case <-fired:
		t.Fatal("cancelled callback ran")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLooper_RecoversFromPanic(t *testing.T) {
	l := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	l.Post(func() { panic("boom") })
	ran := false
	require.NoError(t, l.Call(ctx, func() { ran = true }))
	assert.True(t, ran)
}

func TestManual_AdvanceFiresInDeadlineOrder(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewManual(start)

	var got []string
	m.PostDelayed(func() { got = append(got, "b") }, 2*time.Second)
	m.PostDelayed(func() { got = append(got, "a") }, time.Second)
	stop := m.PostDelayed(func() { got = append(got, "never") }, time.Second)
	stop()

	assert.Equal(t, 2, m.Pending())
	m.Advance(1500 * time.Millisecond)
	assert.Equal(t, []string{"a"}, got)
	assert.Equal(t, start.Add(1500*time.Millisecond), m.Now())

	m.Advance(time.Second)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Zero(t, m.Pending())
}

func TestManual_NestedScheduleFiresWhenDue(t *testing.T) {
	m := NewManual(time.Unix(0, 0))
	var got []string
	m.PostDelayed(func() {
		got = append(got, "outer")
		m.PostDelayed(func() { got = append(got, "inner") }, time.Second)
	}, time.Second)

	m.Advance(3 * time.Second)
	assert.Equal(t, []string{"outer", "inner"}, got)
}
