package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"IntentCode/backend/go/internal/models"
	"IntentCode/backend/go/internal/user_service/store"
	"IntentCode/backend/go/pkg/logger"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
)

var (
	// ErrInvalidCredentials 对不存在的用户和错误密码返回同一个错误。
	ErrInvalidCredentials = errors.New("用户不存在或密码错误")
	// ErrEmailTaken 表示邮箱已被注册。
	ErrEmailTaken = errors.New("该邮箱已被注册")
	// ErrAccountDisabled 表示账号不是正常状态。
	ErrAccountDisabled = errors.New("账号已被停用")
	// ErrInvalidSettings 表示设置不是 JSON 对象。
	ErrInvalidSettings = errors.New("设置必须是 JSON 对象")
)

// UserStore 是服务所需的用户存储。
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	GetUserByProviderID(ctx context.Context, provider, providerID string) (*models.User, error)
	TouchLogin(ctx context.Context, id uint, at time.Time) error
	UpdateSettings(ctx context.Context, id uint, settings datatypes.JSON) error
}

// TokenIssuer 为用户签发令牌。
type TokenIssuer interface {
	Issue(userID uint, email string) (string, error)
}

// Service 封装了业务逻辑。
type Service struct {
	store  UserStore
	tokens TokenIssuer
	logger *logger.Logger
	now    func() time.Time
}

// NewService 创建一个新的 Service 实例。
func NewService(s UserStore, tokens TokenIssuer, log *logger.Logger) *Service {
	return &Service{store: s, tokens: tokens, logger: log, now: time.Now}
}

// --- User Registration & Login ---

// RegisterUserByEmail 处理新用户通过邮箱注册的逻辑。
func (s *Service) RegisterUserByEmail(ctx context.Context, email, password, username, fullName string) (*models.User, error) {
	email = normalizeEmail(email)
	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, store.ErrUserNotFound) {
		return nil, err
	}

	// 哈希密码
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("密码哈希失败: %w", err)
	}

	user := &models.User{
		Username:   username,
		FullName:   fullName,
		Email:      email,
		Provider:   "email",
		ProviderID: email,
		Status:     models.StatusActive,
		Password:   string(hashedPassword),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrUserExists) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.logger.WithUser(user.Identity().ID).Info("用户注册成功")
	return user, nil
}

// LoginUserByEmail 处理用户通过邮箱登录的逻辑，返回令牌。
func (s *Service) LoginUserByEmail(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if user.Password == "" {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	return s.login(ctx, user)
}

// HandleProviderLogin 处理第三方登录。用户首次登录时自动创建账号。
// 调用方负责事先校验第三方身份。
func (s *Service) HandleProviderLogin(ctx context.Context, provider, providerID, email, username, fullName, avatarURL string) (string, *models.User, error) {
	user, err := s.store.GetUserByProviderID(ctx, provider, providerID)
	switch {
	case err == nil:
		return s.login(ctx, user)
	case !errors.Is(err, store.ErrUserNotFound):
		return "", nil, err
	}

	user = &models.User{
		Username:   username,
		FullName:   fullName,
		Email:      normalizeEmail(email),
		AvatarURL:  avatarURL,
		Provider:   provider,
		ProviderID: providerID,
		Status:     models.StatusActive,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrUserExists) {
			return "", nil, ErrEmailTaken
		}
		return "", nil, err
	}
	return s.login(ctx, user)
}

// GetUser 返回用户资料。
func (s *Service) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.store.GetUserByID(ctx, id)
}

// UpdateSettings 覆盖用户的客户端设置，必须是 JSON 对象。
func (s *Service) UpdateSettings(ctx context.Context, id uint, raw json.RawMessage) error {
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return ErrInvalidSettings
	}
	return s.store.UpdateSettings(ctx, id, datatypes.JSON(raw))
}

// --- Helpers ---

func (s *Service) login(ctx context.Context, user *models.User) (string, *models.User, error) {
	if user.Status != models.StatusActive {
		return "", nil, ErrAccountDisabled
	}
	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return "", nil, fmt.Errorf("签发令牌失败: %w", err)
	}

	now := s.now().UTC()
	if err := s.store.TouchLogin(ctx, user.ID, now); err != nil {
		s.logger.WithUser(user.Identity().ID).WithErr(err).Warn("更新登录时间失败")
	} else {
		user.LastLoginAt = &now
	}
	return token, user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
