package generator

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// 信号量初始即全部占用，计数从 0 开始
const budgetTokens = int64(1) << 62

// WriteBudget 限制已提交渲染但尚未写出的字节数。
// 合并循环在超出 maxBytesSentToWrite 时阻塞，写入端每写出 writeBufferSize 字节释放一次。
type WriteBudget struct {
	sem             *semaphore.Weighted
	maxBytesSent    int64
	writeBufferSize int64

	// 只由合并循环访问
	bytesSent int64

	// 只由写入 goroutine 访问
	mu           sync.Mutex
	bytesWritten int64
}

// NewWriteBudget writeBufferSize 不应大于 maxBytesSent，否则合并循环可能永远等不到释放
func NewWriteBudget(maxBytesSent, writeBufferSize int64) *WriteBudget {
	if writeBufferSize <= 0 {
		writeBufferSize = 1
	}
	sem := semaphore.NewWeighted(budgetTokens)
	sem.TryAcquire(budgetTokens)
	return &WriteBudget{sem: sem, maxBytesSent: maxBytesSent, writeBufferSize: writeBufferSize}
}

// Sent 记录一批已提交写出的字节，超出预算时阻塞直到写入端追上
func (b *WriteBudget) Sent(ctx context.Context, n int64) error {
	for b.bytesSent += n; b.bytesSent > b.maxBytesSent; b.bytesSent -= b.writeBufferSize {
		if err := b.sem.Acquire(ctx, 1); err != nil {
			return err
		}
	}
	return nil
}

// Written 写入端每写出一个完整 PNG 数据块调用一次
func (b *WriteBudget) Written(n int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bytesWritten += n
	for b.bytesWritten >= b.writeBufferSize {
		b.bytesWritten -= b.writeBufferSize
		b.sem.Release(1)
	}
}

// Pending 合并循环视角下尚未写出的字节数
func (b *WriteBudget) Pending() int64 { return b.bytesSent }
