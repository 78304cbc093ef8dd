package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront-orders/internal/apperr"
	"storefront-orders/internal/model"
)

// AuthService validates bearer tokens against the external auth service.
type AuthService struct {
	authURL string
	client  *http.Client
}

type AuthUser struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	Login       string   `json:"login"`
	Enabled     bool     `json:"enabled"`
}

func NewAuthService(authURL string, client *http.Client) *AuthService {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &AuthService{authURL: strings.TrimRight(authURL, "/"), client: client}
}

// Role derives the storefront role from the user's permissions.
func (u *AuthUser) Role() model.Role {
	role := model.RoleCustomer
	for _, perm := range u.Permissions {
		switch perm {
		case "admin":
			return model.RoleAdmin
		case "seller":
			role = model.RoleSeller
		}
	}
	return role
}

// ValidateToken resolves token through GET /users/current.
func (a *AuthService) ValidateToken(ctx context.Context, token string) (model.Actor, error) {
	if token == "" {
		return model.Actor{}, apperr.Unauthorized("missing bearer token")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/users/current", a.authURL), nil)
	if err != nil {
		return model.Actor{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.client.Do(req)
	if err != nil {
		return model.Actor{}, fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusLocked:
		return model.Actor{}, apperr.Locked("account is locked")
	default:
		return model.Actor{}, apperr.Unauthorized("invalid or expired token")
	}

	var user AuthUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return model.Actor{}, fmt.Errorf("decode auth user: %w", err)
	}
	if !user.Enabled {
		return model.Actor{}, apperr.Unauthorized("user disabled")
	}

	return model.Actor{ID: user.ID, Name: user.Name, Role: user.Role()}, nil
}
