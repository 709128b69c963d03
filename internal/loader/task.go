package loader

import (
	"context"
	"sync"
)

// Task 是一次异步加载的句柄。
type Task struct {
	done   chan struct{}
	cancel context.CancelFunc

	// publishMu 串行化 Cancel 与发布：Cancel 返回后不会再有发布。
	publishMu sync.Mutex

	mu        sync.Mutex
	result    Result
	err       error
	published bool
}

func newTask(cancel context.CancelFunc) *Task {
	return &Task{
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

// Done 在加载结束（发布或取消）后关闭。
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Cancel 取消加载；Cancel 返回后结果不会再被发布。
// 若发布正在进行，Cancel 等待其结束，因此不能在 Sink.Publish 内调用。
func (t *Task) Cancel() {
	t.publishMu.Lock()
	defer t.publishMu.Unlock()
	t.cancel()
}

// Wait 阻塞直到加载结束。被取消时返回 ctx 错误且 Result 为零值。
func (t *Task) Wait() (Result, error) {
	<-t.done
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}

// Published 表示结果是否已交给 Sink。
func (t *Task) Published() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.published
}

// publish 在 ctx 仍有效时把结果交给 sink，检查与发布在同一把锁内完成。
func (t *Task) publish(ctx context.Context, sink Sink, result Result) error {
	t.publishMu.Lock()
	defer t.publishMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if sink != nil {
		sink.Publish(result)
	}
	return nil
}

func (t *Task) finish(result Result, err error, published bool) {
	t.mu.Lock()
	t.result = result
	t.err = err
	t.published = published
	t.mu.Unlock()
	close(t.done)
}
