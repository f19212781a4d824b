package generator

import (
	"context"
	"errors"
	"sync"
)

// ErrAborted 任一工作 goroutine 失败导致整个运行中止
var ErrAborted = errors.New("地图瓦片生成已中止")

// AbortedError 汇总所有工作 goroutine 的错误，errors.Is(err, ErrAborted) 成立
type AbortedError struct {
	Err error
}

func (e *AbortedError) Error() string {
	if e.Err == nil {
		return ErrAborted.Error()
	}
	return ErrAborted.Error() + ": " + e.Err.Error()
}

func (e *AbortedError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrAborted}
	}
	return []error{ErrAborted, e.Err}
}

// abortState 记录各 goroutine 的失败；中止是整体的，没有单瓦片级的取消
type abortState struct {
	mu   sync.Mutex
	errs []error
}

// record 由 errgroup 取消引起的 context 错误不计入
func (a *abortState) record(err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	a.mu.Lock()
	a.errs = append(a.errs, err)
	a.mu.Unlock()
}

func (a *abortState) aborted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.errs) > 0
}

// result 汇总为单个 AbortedError；外部 ctx 被取消时同样视为中止
func (a *abortState) result(parent context.Context, waitErr error) error {
	a.mu.Lock()
	errs := append([]error(nil), a.errs...)
	a.mu.Unlock()
	if len(errs) == 0 {
		if perr := parent.Err(); perr != nil {
			return &AbortedError{Err: perr}
		}
		if waitErr != nil {
			return &AbortedError{Err: waitErr}
		}
		return nil
	}
	return &AbortedError{Err: errors.Join(errs...)}
}
