// Package demo 判定演示账号和演示项目，并为演示账号生成固定的项目集合。
// 演示项目只存在于内存中，任何远端写入都会被跳过。
package demo

import (
	"fmt"
	"strings"

	"IntentCode/backend/go/internal/config"

	"github.com/gobwas/glob"
)

// Classifier 是演示判定的唯一入口，所有写操作都通过它决定是否跳过远端存储。
type Classifier struct {
	emails     []glob.Glob
	mockMarker string
	idPrefix   string
}

// NewClassifier 根据配置编译演示邮箱模式。
func NewClassifier(cfg config.DemoConfig) (*Classifier, error) {
	c := &Classifier{mockMarker: cfg.MockMarker, idPrefix: cfg.IDPrefix}
	for _, pattern := range cfg.Emails {
		g, err := glob.Compile(strings.ToLower(pattern))
		if err != nil {
			return nil, fmt.Errorf("无效的演示邮箱模式 %q: %w", pattern, err)
		}
		c.emails = append(c.emails, g)
	}
	return c, nil
}

// IsDemoIdentity 判断邮箱是否属于演示账号，大小写不敏感。
func (c *Classifier) IsDemoIdentity(email string) bool {
	if email == "" {
		return false
	}
	email = strings.ToLower(email)
	for _, g := range c.emails {
		if g.Match(email) {
			return true
		}
	}
	return false
}

// IsMock 判断项目是否为演示项目：ID 中含有演示标记，
// 或者 ID 带有演示前缀且当前用户是演示账号。
// 每次操作都重新判定，结果不缓存在项目上。
func (c *Classifier) IsMock(projectID, email string) bool {
	if c.mockMarker != "" && strings.Contains(projectID, c.mockMarker) {
		return true
	}
	return c.idPrefix != "" && strings.HasPrefix(projectID, c.idPrefix) && c.IsDemoIdentity(email)
}

// MockMarker 返回演示项目 ID 中使用的标记。
func (c *Classifier) MockMarker() string {
	return c.mockMarker
}
