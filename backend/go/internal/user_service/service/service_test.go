package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"IntentCode/backend/go/internal/auth"
	"IntentCode/backend/go/internal/models"
	"IntentCode/backend/go/internal/user_service/store"
	"IntentCode/backend/go/pkg/logger"
)

const secret = "user-service-secret"

func newTestService() (*Service, *store.MemoryStore) {
	users := store.NewMemoryStore()
	return NewService(users, auth.NewIssuer(secret, time.Hour), logger.NewDiscard()), users
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	user, err := svc.RegisterUserByEmail(ctx, " Dev@IntentCode.dev ", "correct horse", "dev", "Dev")
	if err != nil {
		t.Fatalf("RegisterUserByEmail() error = %v", err)
	}
	if user.Email != "dev@intentcode.dev" || user.Password == "correct horse" {
		t.Errorf("user = %+v", user)
	}

	if _, err := svc.RegisterUserByEmail(ctx, "dev@intentcode.dev", "x", "dev2", ""); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate register error = %v, want ErrEmailTaken", err)
	}

	token, logged, err := svc.LoginUserByEmail(ctx, "DEV@intentcode.dev", "correct horse")
	if err != nil {
		t.Fatalf("LoginUserByEmail() error = %v", err)
	}
	if logged.LastLoginAt == nil {
		t.Error("login should record LastLoginAt")
	}
	ident, err := auth.Parse(secret, token)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if ident.ID != "1" || ident.Email != "dev@intentcode.dev" {
		t.Errorf("token identity = %+v", ident)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.RegisterUserByEmail(ctx, "a@b.c", "password1", "a", ""); err != nil {
		t.Fatalf("RegisterUserByEmail() error = %v", err)
	}

	if _, _, err := svc.LoginUserByEmail(ctx, "a@b.c", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v", err)
	}
	if _, _, err := svc.LoginUserByEmail(ctx, "nobody@b.c", "password1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user error = %v", err)
	}
}

func TestLogin_SuspendedAccount(t *testing.T) {
	svc, users := newTestService()
	ctx := context.Background()
	user, _ := svc.RegisterUserByEmail(ctx, "s@b.c", "password1", "s", "")
	if err := users.SetStatus(user.ID, models.StatusSuspended); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}

	if _, _, err := svc.LoginUserByEmail(ctx, "s@b.c", "password1"); !errors.Is(err, ErrAccountDisabled) {
		t.Errorf("suspended login error = %v", err)
	}
}

func TestProviderLogin_CreatesOnce(t *testing.T) {
	svc, users := newTestService()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, _, err := svc.HandleProviderLogin(ctx, "google", "g-1", "g@b.c", "g", "G", ""); err != nil {
			t.Fatalf("HandleProviderLogin() #%d error = %v", i, err)
		}
	}
	if _, err := users.GetUserByID(ctx, 2); err == nil {
		t.Error("second provider login must not create another user")
	}
	// 第三方账号没有密码，不能用邮箱登录。
	if _, _, err := svc.LoginUserByEmail(ctx, "g@b.c", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("password login for provider account error = %v", err)
	}
}

func TestUpdateSettings(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	user, _ := svc.RegisterUserByEmail(ctx, "set@b.c", "password1", "set", "")

	if err := svc.UpdateSettings(ctx, user.ID, json.RawMessage(`[1,2]`)); !errors.Is(err, ErrInvalidSettings) {
		t.Errorf("array settings error = %v", err)
	}
	if err := svc.UpdateSettings(ctx, user.ID, json.RawMessage(`{"theme":"dark"}`)); err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}
	got, _ := svc.GetUser(ctx, user.ID)
	if string(got.Settings) != `{"theme":"dark"}` {
		t.Errorf("settings = %s", got.Settings)
	}
}
