package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAbortedErrorUnwrap(t *testing.T) {
	cause := errors.New("磁盘已满")
	err := &AbortedError{Err: cause}
	assert.ErrorIs(t, err, ErrAborted)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "磁盘已满")

	assert.ErrorIs(t, &AbortedError{}, ErrAborted)
}

func TestAbortStateResult(t *testing.T) {
	var a abortState
	assert.NoError(t, a.result(context.Background(), nil))
	assert.False(t, a.aborted())

	// errgroup 取消引起的错误不计入
	a.record(context.Canceled)
	a.record(nil)
	assert.False(t, a.aborted())

	first, second := errors.New("渲染失败"), errors.New("写入失败")
	a.record(first)
	a.record(second)
	assert.True(t, a.aborted())
	err := a.result(context.Background(), first)
	assert.ErrorIs(t, err, ErrAborted)
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)

	var aborted *AbortedError
	assert.True(t, errors.As(err, &aborted))
}

func TestAbortStateParentCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var a abortState
	a.record(ctx.Err())
	err := a.result(ctx, ctx.Err())
	assert.ErrorIs(t, err, ErrAborted)
	assert.ErrorIs(t, err, context.Canceled)
}
