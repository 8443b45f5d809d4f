package service

import (
	"context"
	"time"

	"IntentCode/backend/go/internal/models"
	"IntentCode/backend/go/pkg/util"

	"golang.org/x/sync/singleflight"
)

// Registry 为每个已登录用户保留一个 Container，空闲超时或超出容量时淘汰。
type Registry struct {
	newContainer func() *Container
	cache        *util.LRUCache[string, *Container]
	group        singleflight.Group
}

// NewRegistry 创建一个新的 Registry 实例。newContainer 返回未登录状态的 Container。
func NewRegistry(capacity int, idleTTL time.Duration, newContainer func() *Container) (*Registry, error) {
	cache, err := util.NewWithConfig(util.CacheConfig[string, *Container]{
		Capacity: capacity,
		IdleTTL:  idleTTL,
		OnEvict: func(_ string, c *Container) {
			_ = c.SetIdentity(context.Background(), nil)
		},
	})
	if err != nil {
		return nil, err
	}
	return &Registry{newContainer: newContainer, cache: cache}, nil
}

// Get 返回用户的 Container。首次访问时设置身份并读取项目，
// 同一用户的并发首次访问只读取一次。
func (r *Registry) Get(ctx context.Context, ident models.Identity) (*Container, error) {
	if ident.ID == "" {
		return nil, ErrUnauthenticated
	}
	if c, ok := r.cached(ident); ok {
		return c, nil
	}

	v, err, _ := r.group.Do(ident.ID, func() (interface{}, error) {
		// 等待期间可能已有另一次读取完成。
		if c, ok := r.cached(ident); ok {
			return c, nil
		}
		c := r.newContainer()
		if err := c.SetIdentity(ctx, &ident); err != nil {
			return nil, err
		}
		r.cache.Put(ident.ID, c)
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Container), nil
}

func (r *Registry) cached(ident models.Identity) (*Container, bool) {
	c, ok := r.cache.Get(ident.ID)
	if !ok {
		return nil, false
	}
	if cur := c.Identity(); cur == nil || cur.Email != ident.Email {
		return nil, false
	}
	return c, true
}

// Drop 登出用户并丢弃其 Container。
func (r *Registry) Drop(userID string) {
	if c, ok := r.cache.Get(userID); ok {
		_ = c.SetIdentity(context.Background(), nil)
	}
	r.cache.Delete(userID)
}

// Reload 重新读取已缓存用户的项目，用户不在缓存中时什么也不做。
func (r *Registry) Reload(ctx context.Context, userID string) error {
	c, ok := r.cache.Get(userID)
	if !ok {
		return nil
	}
	return c.Refresh(ctx)
}

// Len 返回当前缓存的用户数。
func (r *Registry) Len() int {
	return r.cache.Len()
}

// Run 定期清理空闲的 Container，直到 ctx 结束。
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.cache.Sweep()
		}
	}
}
