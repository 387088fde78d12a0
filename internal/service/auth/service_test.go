package auth_test

import (
	"os"
	"testing"

	"rummy-service/internal/config"
	"rummy-service/internal/service/auth"
	pkgAuth "rummy-service/pkg/auth"
	"rummy-service/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InitTestLogger()
	os.Exit(m.Run())
}

func TestValidateUserToken(t *testing.T) {
	config.GlobalConfig = &config.Config{
		JWT: config.JWTConfig{Secret: "test-secret", Expire: 1},
	}
	svc := auth.NewService(nil, nil)

	token, err := pkgAuth.GenerateToken(11)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	if !svc.ValidateUserToken(11, token) {
		t.Fatalf("own token rejected")
	}
	if svc.ValidateUserToken(22, token) {
		t.Fatalf("token accepted for a different user")
	}
	if svc.ValidateUserToken(11, "not-a-token") {
		t.Fatalf("garbage token accepted")
	}

	adminToken, err := pkgAuth.GenerateAdminToken(11)
	if err != nil {
		t.Fatalf("GenerateAdminToken: %v", err)
	}
	if svc.ValidateUserToken(11, adminToken) {
		t.Fatalf("admin-scoped token accepted on the user surface")
	}
}
