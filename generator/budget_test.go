package generator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteBudgetWithinLimit(t *testing.T) {
	b := NewWriteBudget(100, 10)
	require.NoError(t, b.Sent(context.Background(), 60))
	require.NoError(t, b.Sent(context.Background(), 40))
	assert.Equal(t, int64(100), b.Pending())
}

func TestWriteBudgetBlocksUntilWritten(t *testing.T) {
	b := NewWriteBudget(100, 10)
	require.NoError(t, b.Sent(context.Background(), 100))

	done := make(chan error, 1)
	go func() { done <- b.Sent(context.Background(), 25) }()

	select {
	case <-done:
		t.Fatal("超出预算时应阻塞")
	case <-time.After(50 * time.Millisecond):
	}

	// 一次写出 30 字节释放 3 个写缓冲区
	b.Written(30)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("写出后应解除阻塞")
	}
	assert.LessOrEqual(t, b.Pending(), int64(100))
}

func TestWriteBudgetContextCanceled(t *testing.T) {
	b := NewWriteBudget(10, 10)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, b.Sent(ctx, 50), context.DeadlineExceeded)
}

func TestWriteBudgetPartialBuffer(t *testing.T) {
	b := NewWriteBudget(10, 10)
	require.NoError(t, b.Sent(context.Background(), 10))

	done := make(chan error, 1)
	go func() { done <- b.Sent(context.Background(), 5) }()

	// 不足一个写缓冲区时不释放
	b.Written(6)
	select {
	case <-done:
		t.Fatal("不足一个写缓冲区时不应释放")
	case <-time.After(50 * time.Millisecond):
	}
	b.Written(4)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("累计满一个写缓冲区后应释放")
	}
}
