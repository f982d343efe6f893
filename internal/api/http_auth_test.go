package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"tryon/internal/auth"
)

func TestRegisterRejectsShortPassword(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := &HTTPHandler{}
	// 前后空白会被剔除，剩余长度不足下限
	body := `{"email":"user@example.com","password":"   abc   "}`

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Register(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
	if !strings.Contains(w.Body.String(), "at least") {
		t.Fatalf("expected password length message, got %s", w.Body.String())
	}
}

func TestRegisterRequiresEmailAndPassword(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := &HTTPHandler{}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(`{"email":"  "}`))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Register(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestMinPasswordLengthAccepted(t *testing.T) {
	// 恰好达到下限的密码可以被哈希并通过校验
	password := strings.Repeat("p", auth.MinPasswordLength)
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := auth.VerifyPassword(hash, password); err != nil {
		t.Fatalf("verify: %v", err)
	}
}
