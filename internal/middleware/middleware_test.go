package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"storefront-orders/internal/apperr"
	"storefront-orders/internal/dto"
	"storefront-orders/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type validatorStub map[string]error

func (v validatorStub) ValidateToken(_ context.Context, token string) (model.Actor, error) {
	if err, ok := v[token]; ok {
		return model.Actor{}, err
	}
	role := model.RoleCustomer
	if token == "admin" {
		role = model.RoleAdmin
	} else if token == "seller" {
		role = model.RoleSeller
	}
	return model.Actor{ID: token + "-id", Role: role}, nil
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, dto.Response{Success: true, Data: ActorFrom(c)})
	})
	r.GET("/", handlers...)
	return r
}

func do(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	v := validatorStub{
		"expired": apperr.Unauthorized("invalid or expired token"),
		"locked":  apperr.Locked("account is locked"),
		"down":    errors.New("dial tcp: connection refused"),
	}
	r := newEngine(Auth(v))

	cases := []struct {
		token string
		code  int
	}{
		{"", http.StatusUnauthorized},
		{"expired", http.StatusUnauthorized},
		{"locked", http.StatusLocked},
		{"down", http.StatusUnauthorized},
		{"buyer", http.StatusOK},
	}
	for _, tc := range cases {
		w := do(r, tc.token)
		if w.Code != tc.code {
			t.Fatalf("token %q: expected %d, got %d", tc.token, tc.code, w.Code)
		}
		var body dto.Response
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("token %q: invalid body: %v", tc.token, err)
		}
		if body.Success != (tc.code == http.StatusOK) {
			t.Fatalf("token %q: unexpected envelope %+v", tc.token, body)
		}
	}

	w := do(r, "buyer")
	if !strings.Contains(w.Body.String(), `"buyer-id"`) {
		t.Fatalf("actor not stored: %s", w.Body.String())
	}
	if strings.Contains(do(r, "down").Body.String(), "connection refused") {
		t.Fatal("internal auth errors must not leak")
	}
}

func TestRequireRole(t *testing.T) {
	v := validatorStub{}
	sellers := newEngine(Auth(v), RequireRole(model.RoleSeller))
	admins := newEngine(Auth(v), AdminOnly())

	if w := do(sellers, "seller"); w.Code != http.StatusOK {
		t.Fatalf("seller: expected 200, got %d", w.Code)
	}
	if w := do(sellers, "admin"); w.Code != http.StatusOK {
		t.Fatalf("admin: expected 200, got %d", w.Code)
	}
	if w := do(sellers, "buyer"); w.Code != http.StatusForbidden {
		t.Fatalf("buyer: expected 403, got %d", w.Code)
	}
	if w := do(admins, "seller"); w.Code != http.StatusForbidden {
		t.Fatalf("seller on admin route: expected 403, got %d", w.Code)
	}
}

func TestRequestIDAndLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	r := newEngine(RequestID(), RequestLogger(logger))

	w := do(r, "")
	id := w.Header().Get(RequestIDHeader)
	if id == "" {
		t.Fatal("expected generated request id")
	}
	if !strings.Contains(buf.String(), id) || !strings.Contains(buf.String(), `"status":200`) {
		t.Fatalf("unexpected log line %s", buf.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Fatalf("expected propagated id, got %q", got)
	}
}
