package store

import (
	"context"
	"errors"
	"time"

	"IntentCode/backend/go/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound 表示用户不存在。
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists 表示邮箱、用户名或第三方 ID 已被占用。
	ErrUserExists = errors.New("user already exists")
)

// Store 封装了所有与用户服务相关的数据库操作。
type Store struct {
	DB *gorm.DB
}

// NewStore 创建一个新的 Store 实例。
func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// CreateUser 在数据库中创建一个新用户。
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	return translate(s.DB.WithContext(ctx).Create(user).Error)
}

// GetUserByEmail 通过邮箱地址查找用户。
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetUserByID 通过 ID 查找用户。
func (s *Store) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetUserByProviderID 通过第三方提供商和其提供的用户 ID 查找用户。
func (s *Store) GetUserByProviderID(ctx context.Context, provider, providerID string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).
		Where("provider = ? AND provider_id = ?", provider, providerID).
		First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// TouchLogin 记录最近一次登录时间。
func (s *Store) TouchLogin(ctx context.Context, id uint, at time.Time) error {
	res := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_login_at", at)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateSettings 覆盖用户的客户端设置。
func (s *Store) UpdateSettings(ctx context.Context, id uint, settings datatypes.JSON) error {
	res := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("settings", settings)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrUserNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrUserExists
	default:
		return err
	}
}
