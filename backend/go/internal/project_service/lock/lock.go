// Package lock 串行化同一项目上的文件对账，避免两次同步交错写入。
package lock

import (
	"context"
	"errors"
	"sync"
)

// ErrLockTimeout 表示在等待时间内没能拿到锁。
var ErrLockTimeout = errors.New("lock: timed out waiting for lock")

// Locker 按键加互斥锁。返回的 unlock 必须且只能调用一次。
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// LocalLocker 是进程内的按键互斥锁，空闲的键会被回收。
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{} // 容量为 1，持有锁即占用这个位置
	refs int
}

// NewLocalLocker 创建一个新的 LocalLocker 实例。
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

// Lock 阻塞直到拿到 key 对应的锁或 ctx 结束。
func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, s)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrLockTimeout
		}
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.release(key, s)
		})
	}, nil
}

func (l *LocalLocker) release(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}
