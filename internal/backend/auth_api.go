package backend

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/eddy-mb/sistema-ventas-frontend-sub000/internal/auth"
)

// AuthAPI wraps the /auth endpoints. Login, register and the password flows
// are unauthenticated; refresh, me and logout carry an explicit bearer.
type AuthAPI struct {
	c *Client
	// ttl is the fallback token lifetime when the upstream token is opaque.
	ttl time.Duration
	now func() time.Time
}

// NewAuthAPI returns the auth endpoints of c.
func NewAuthAPI(c *Client, fallbackTTL time.Duration) *AuthAPI {
	return &AuthAPI{c: c, ttl: fallbackTTL, now: time.Now}
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Nombre   string `json:"nombre"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for claims.
func (a *AuthAPI) Login(ctx context.Context, email, password string) (auth.Claims, error) {
	var resp TokenResponse
	err := a.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   LoginRequest{Email: email, Password: password},
		out:    &resp,
	})
	if err != nil {
		return auth.Claims{}, err
	}
	return a.claims(resp), nil
}

// Refresh implements session.Refresher: it exchanges accessToken for a new one
// and re-reads the user's roles and permissions.
func (a *AuthAPI) Refresh(ctx context.Context, accessToken string) (auth.Claims, error) {
	var resp TokenResponse
	err := a.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/refresh",
		bearer: accessToken,
		out:    &resp,
	})
	if err != nil {
		return auth.Claims{}, err
	}
	if resp.AccessToken == "" {
		resp.AccessToken = accessToken
	}
	if resp.User.ID == "" {
		me, err := a.Me(ctx, resp.AccessToken)
		if err != nil {
			return auth.Claims{}, err
		}
		resp.User, resp.Roles, resp.Permissions = me.UserRef, me.Roles, me.Permissions
	}
	return a.claims(resp), nil
}

// Me returns the profile behind accessToken.
func (a *AuthAPI) Me(ctx context.Context, accessToken string) (*MeResponse, error) {
	var me MeResponse
	err := a.c.do(ctx, request{
		method: http.MethodGet,
		path:   "/auth/me",
		bearer: accessToken,
		out:    &me,
	})
	if err != nil {
		return nil, err
	}
	return &me, nil
}

// Logout revokes accessToken upstream.
func (a *AuthAPI) Logout(ctx context.Context, accessToken string) error {
	return a.c.do(ctx, request{method: http.MethodPost, path: "/auth/logout", bearer: accessToken})
}

// Register creates an account.
func (a *AuthAPI) Register(ctx context.Context, r RegisterRequest) error {
	return a.c.do(ctx, request{method: http.MethodPost, path: "/auth/register", body: r})
}

// ForgotPassword asks the server to email a reset link.
func (a *AuthAPI) ForgotPassword(ctx context.Context, email string) error {
	return a.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/forgot-password",
		body:   map[string]string{"email": email},
	})
}

// ResetPassword sets a new password using the emailed token.
func (a *AuthAPI) ResetPassword(ctx context.Context, token, password string) error {
	return a.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/reset-password",
		body:   map[string]string{"token": token, "password": password},
	})
}

func (a *AuthAPI) claims(resp TokenResponse) auth.Claims {
	perms, unknown := auth.ParsePermissions(resp.Permissions)
	if len(unknown) > 0 {
		slog.Warn("ignoring permissions outside the catalog", "user_id", string(resp.User.ID), "permissions", unknown)
	}
	roles := make([]auth.Role, 0, len(resp.Roles))
	for _, r := range resp.Roles {
		roles = append(roles, auth.Role(r))
	}

	fallback := a.now().Add(a.ttl)
	if resp.ExpiresIn > 0 {
		fallback = a.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return auth.Claims{
		SubjectID:   string(resp.User.ID),
		DisplayName: resp.User.Nombre,
		Email:       resp.User.Email,
		Roles:       roles,
		Permissions: perms,
		Token:       resp.AccessToken,
		Expiry:      auth.TokenExpiry(resp.AccessToken, fallback),
	}
}
