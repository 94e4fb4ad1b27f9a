package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pos_backend/utils"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CorrelationId(), AuthMiddleware())
	r.GET("/me", func(c *gin.Context) {
		claim := StaffClaim(c)
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"staff": claim.StaffID, "cid": cid})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	token, err := utils.JwtGenerate("5", "Rina", "kasir")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	cases := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{"no token", nil, http.StatusUnauthorized},
		{"garbage", map[string]string{"token": "nope"}, http.StatusUnauthorized},
		{"token header", map[string]string{"token": token}, http.StatusOK},
		{"bearer", map[string]string{"Authorization": "Bearer " + token}, http.StatusOK},
	}
	r := newRouter()
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		for k, v := range tc.header {
			req.Header.Set(k, v)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.name, w.Code, tc.want)
		}
	}
}

func TestCorrelationIdIsEchoed(t *testing.T) {
	token, _ := utils.JwtGenerate("5", "Rina", "kasir")
	r := newRouter()

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("token", token)
	req.Header.Set(CorrelationHeader, "cid-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(CorrelationHeader); got != "cid-123" {
		t.Fatalf("correlation header = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("token", token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get(CorrelationHeader) == "" {
		t.Fatalf("a correlation id should be generated")
	}
}

func TestAuthMiddlewareFillsContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	token, _ := utils.JwtGenerate("5", "Rina", "kasir")

	var gotToken, gotName, gotRole string
	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/ctx", func(c *gin.Context) {
		ctx := c.Request.Context()
		gotToken, _ = utils.GetTokenFromContext(ctx)
		gotName, _ = utils.GetStaffNameFromContext(ctx)
		gotRole, _ = utils.GetRoleFromContext(ctx)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ctx", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if gotToken != token || gotName != "Rina" || gotRole != "kasir" {
		t.Fatalf("context = (%q, %q, %q)", gotToken, gotName, gotRole)
	}
}

func TestAuthMiddlewareRejectsDevTokensInProduction(t *testing.T) {
	t.Setenv("GO_ENV", "")
	t.Setenv("API_SECRET", "")
	token, err := utils.JwtGenerate("1", "Pak Joko", "admin")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}

	t.Setenv("GO_ENV", "production")
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("token", token)
	w := httptest.NewRecorder()
	newRouter().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
