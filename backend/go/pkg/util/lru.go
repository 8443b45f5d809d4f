package util

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// CacheConfig 用于配置LRU缓存的行为。
type CacheConfig[K comparable, V any] struct {
	// Capacity 是缓存的最大元素数量，必须大于 0。
	Capacity int
	// IdleTTL 是元素的空闲过期时间，每次 Get 命中都会重新计时。为 0 时永不过期。
	IdleTTL time.Duration
	// OnEvict 在元素因容量或过期被移除时调用，调用时不持有缓存锁。
	OnEvict func(key K, value V)
	// Now 是时钟，为 nil 时使用 time.Now。
	Now func() time.Time
}

type entry[K comparable, V any] struct {
	key      K
	value    V
	lastUsed time.Time
}

// LRUCache 是一个支持泛型、线程安全、按空闲时间过期的LRU缓存。
type LRUCache[K comparable, V any] struct {
	config CacheConfig[K, V]
	ll     *list.List
	cache  map[K]*list.Element
	lock   sync.Mutex
}

// NewWithConfig 使用指定的配置创建一个LRU缓存实例。
func NewWithConfig[K comparable, V any](config CacheConfig[K, V]) (*LRUCache[K, V], error) {
	if config.Capacity <= 0 {
		return nil, fmt.Errorf("Capacity 必须大于 0")
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &LRUCache[K, V]{
		config: config,
		ll:     list.New(),
		cache:  make(map[K]*list.Element),
	}, nil
}

// Get 根据键获取一个值，命中时标记为最近使用并刷新空闲计时。
func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.lock.Lock()
	element, ok := c.cache[key]
	if !ok {
		c.lock.Unlock()
		var zero V
		return zero, false
	}

	e := element.Value.(*entry[K, V])
	now := c.config.Now()
	if c.expired(e, now) {
		c.removeElement(element)
		c.lock.Unlock()
		c.evicted(e)
		var zero V
		return zero, false
	}

	e.lastUsed = now
	c.ll.MoveToFront(element)
	c.lock.Unlock()
	return e.value, true
}

// GetOrCreate 在键不存在时调用 create 创建值并放入缓存。
// create 在持有锁时执行，不能调用缓存自身的方法。
func (c *LRUCache[K, V]) GetOrCreate(key K, create func() V) V {
	if v, ok := c.Get(key); ok {
		return v
	}

	c.lock.Lock()
	if element, ok := c.cache[key]; ok {
		e := element.Value.(*entry[K, V])
		c.lock.Unlock()
		return e.value
	}
	v := create()
	evicted := c.insert(key, v)
	c.lock.Unlock()

	for _, e := range evicted {
		c.evicted(e)
	}
	return v
}

// Put 向缓存中添加或更新一个键值对。
func (c *LRUCache[K, V]) Put(key K, value V) {
	c.lock.Lock()
	var evicted []*entry[K, V]
	if element, ok := c.cache[key]; ok {
		e := element.Value.(*entry[K, V])
		e.value = value
		e.lastUsed = c.config.Now()
		c.ll.MoveToFront(element)
	} else {
		evicted = c.insert(key, value)
	}
	c.lock.Unlock()

	for _, e := range evicted {
		c.evicted(e)
	}
}

// Delete 移除一个键，不触发 OnEvict。
func (c *LRUCache[K, V]) Delete(key K) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if element, ok := c.cache[key]; ok {
		c.removeElement(element)
	}
}

// Sweep 主动移除所有已过期的元素，返回移除数量。
func (c *LRUCache[K, V]) Sweep() int {
	c.lock.Lock()
	now := c.config.Now()
	var expired []*entry[K, V]
	for element := c.ll.Back(); element != nil; {
		prev := element.Prev()
		e := element.Value.(*entry[K, V])
		if c.expired(e, now) {
			c.removeElement(element)
			expired = append(expired, e)
		}
		element = prev
	}
	c.lock.Unlock()

	for _, e := range expired {
		c.evicted(e)
	}
	return len(expired)
}

// Len 返回当前缓存中的条目数量。
func (c *LRUCache[K, V]) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.ll.Len()
}

// insert 假设已持有锁，返回因超出容量被淘汰的元素。
func (c *LRUCache[K, V]) insert(key K, value V) []*entry[K, V] {
	e := &entry[K, V]{key: key, value: value, lastUsed: c.config.Now()}
	c.cache[key] = c.ll.PushFront(e)

	var evicted []*entry[K, V]
	for c.ll.Len() > c.config.Capacity {
		back := c.ll.Back()
		c.removeElement(back)
		evicted = append(evicted, back.Value.(*entry[K, V]))
	}
	return evicted
}

func (c *LRUCache[K, V]) expired(e *entry[K, V], now time.Time) bool {
	return c.config.IdleTTL > 0 && now.Sub(e.lastUsed) > c.config.IdleTTL
}

// removeElement 假设已持有锁。
func (c *LRUCache[K, V]) removeElement(element *list.Element) {
	c.ll.Remove(element)
	delete(c.cache, element.Value.(*entry[K, V]).key)
}

func (c *LRUCache[K, V]) evicted(e *entry[K, V]) {
	if c.config.OnEvict != nil {
		c.config.OnEvict(e.key, e.value)
	}
}
