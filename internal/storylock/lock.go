// Package storylock 按故事串行化计数、状态与正文的修改。
package storylock

import (
	"context"
	"errors"
	"sync"
)

var ErrLockTimeout = errors.New("storylock: acquire timeout")

// Locker 按 key 互斥；返回的 unlock 必须调用且只调用一次
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type entry struct {
	ch   chan struct{}
	refs int
}

// Local 进程内按 key 的互斥锁，无人持有时回收条目
type Local struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewLocal() *Local { return &Local{entries: make(map[string]*entry)} }

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, errors.Join(ErrLockTimeout, ctx.Err())
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}, nil
}

func (l *Local) release(key string, e *entry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
	l.mu.Unlock()
}

// Len 当前持有或等待中的 key 数
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// StoryKey 正文/计数/状态修改
func StoryKey(storyID string) string { return "story:" + storyID }

// ReplyKey 同一故事同时只运行一个回复任务
func ReplyKey(storyID string) string { return "reply:" + storyID }

// EvidenceKey 同一故事的证据任务串行执行
func EvidenceKey(storyID string) string { return "evidence:" + storyID }
