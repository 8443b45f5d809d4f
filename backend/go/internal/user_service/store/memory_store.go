package store

import (
	"context"
	"sync"
	"time"

	"IntentCode/backend/go/internal/models"

	"gorm.io/datatypes"
)

// MemoryStore 是不依赖数据库的用户存储，用于本地开发和测试。
type MemoryStore struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*models.User
}

// NewMemoryStore 创建一个空的 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[uint]*models.User)}
}

func (m *MemoryStore) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email || existing.Username == u.Username ||
			(existing.Provider == u.Provider && existing.ProviderID == u.ProviderID) {
			return ErrUserExists
		}
	}
	m.nextID++
	u.ID = m.nextID
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Email == email })
}

func (m *MemoryStore) GetUserByID(_ context.Context, id uint) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.ID == id })
}

func (m *MemoryStore) GetUserByProviderID(_ context.Context, provider, providerID string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Provider == provider && u.ProviderID == providerID })
}

func (m *MemoryStore) TouchLogin(_ context.Context, id uint, at time.Time) error {
	return m.update(id, func(u *models.User) { u.LastLoginAt = &at })
}

func (m *MemoryStore) UpdateSettings(_ context.Context, id uint, settings datatypes.JSON) error {
	return m.update(id, func(u *models.User) { u.Settings = settings })
}

// SetStatus 修改账号状态。
func (m *MemoryStore) SetStatus(id uint, status models.UserStatus) error {
	return m.update(id, func(u *models.User) { u.Status = status })
}

func (m *MemoryStore) find(match func(*models.User) bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *MemoryStore) update(id uint, apply func(*models.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	apply(u)
	return nil
}
