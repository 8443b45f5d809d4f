// Package auth 负责签发和校验服务间共享的 JWT。
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"IntentCode/backend/go/internal/models"

	"github.com/golang-jwt/jwt"
)

const (
	issuer   = "intentcode_user_service"
	audience = "intentcode_clients"
)

var (
	// ErrInvalidToken 表示令牌无法解析、签名不符或已过期。
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidClaims 表示令牌中缺少用户标识。
	ErrInvalidClaims = errors.New("invalid token claims")
)

// Issuer 使用 HS256 签发令牌。
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer 创建一个签发器，ttl 为令牌有效期。
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue 为用户签发令牌，sub 为字符串形式的用户 ID。
func (i *Issuer) Issue(userID uint, email string) (string, error) {
	now := i.now()
	claims := jwt.MapClaims{
		"sub":   strconv.FormatUint(uint64(userID), 10),
		"email": email,
		"iss":   issuer,
		"aud":   audience,
		"exp":   now.Add(i.ttl).Unix(),
		"iat":   now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// Parse 校验令牌并取出身份。
func Parse(secret, tokenString string) (models.Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("非预期的签名方法: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return models.Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Identity{}, ErrInvalidClaims
	}

	var ident models.Identity
	switch sub := claims["sub"].(type) {
	case string:
		ident.ID = sub
	case float64:
		// 旧版本签发的令牌以数字保存 sub
		ident.ID = strconv.FormatUint(uint64(sub), 10)
	}
	if ident.ID == "" {
		return models.Identity{}, ErrInvalidClaims
	}
	ident.Email, _ = claims["email"].(string)
	return ident, nil
}
