package models

import (
	"strconv"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserStatus 定义了用户账户的生命周期状态。
type UserStatus string

const (
	StatusActive      UserStatus = "active"      // 账号正常
	StatusSuspended   UserStatus = "suspended"   // 账号被暂停
	StatusDeactivated UserStatus = "deactivated" // 账号已停用
)

// User 代表系统中的一个用户账户。
type User struct {
	gorm.Model

	Username  string `gorm:"unique;not null;size:191"`
	FullName  string `gorm:"size:255"`
	Email     string `gorm:"uniqueIndex;not null;size:191"`
	Password  string `gorm:"size:255" json:"-"` // 存储哈希后的密码，json中忽略
	AvatarURL string

	Provider   string `gorm:"not null;size:32"`
	ProviderID string `gorm:"index:idx_provider_id,unique;not null;size:191"`

	Status      UserStatus `gorm:"type:varchar(20);default:'active';not null"`
	LastLoginAt *time.Time
	Settings    datatypes.JSON // 编辑器偏好等客户端设置
}

func (User) TableName() string {
	return "users"
}

// Identity 返回项目服务使用的身份。
func (u *User) Identity() Identity {
	return Identity{ID: strconv.FormatUint(uint64(u.ID), 10), Email: u.Email}
}
