package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/storefront/internal/account"
	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/geocoder89/storefront/internal/http/handlers"
	"github.com/geocoder89/storefront/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type fakeAccounts struct {
	registerRes account.MailResult
	registerErr error
	activateErr error
	loginRes    account.LoginResult
	loginErr    error
	forgotRes   account.MailResult
	forgotErr   error
	resetErr    error

	lastRegister account.RegisterInput
}

func (f *fakeAccounts) Register(ctx context.Context, in account.RegisterInput) (account.MailResult, error) {
	f.lastRegister = in
	return f.registerRes, f.registerErr
}

func (f *fakeAccounts) Activate(ctx context.Context, token string) (user.User, error) {
	return user.User{}, f.activateErr
}

func (f *fakeAccounts) Login(ctx context.Context, email, password string) (account.LoginResult, error) {
	return f.loginRes, f.loginErr
}

func (f *fakeAccounts) ForgotPassword(ctx context.Context, email string) (account.MailResult, error) {
	return f.forgotRes, f.forgotErr
}

func (f *fakeAccounts) ResetPassword(ctx context.Context, token, newPassword string) error {
	return f.resetErr
}

func newAuthRouter(f *fakeAccounts) *gin.Engine {
	gin.SetMode(gin.TestMode)

	h := handlers.NewAuthHandler(f, true)

	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/activate", h.Activate)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", h.Logout)
	r.POST("/auth/forgot-password", h.ForgotPassword)
	r.POST("/auth/reset-password", h.ResetPassword)
	return r
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("bad json body: %v body=%s", err, w.Body.String())
	}
	return out
}

const registerBody = `{"firstName":"Ada","lastName":"Lovelace","userName":"ada","email":"ada@example.com","password":"correct horse battery"}`

func TestRegister_ReturnsTokenAndDelivery(t *testing.T) {
	f := &fakeAccounts{registerRes: account.MailResult{Token: "tok", EmailDelivery: account.DeliveryQueued}}
	r := newAuthRouter(f)

	w := postJSON(r, "/auth/register", registerBody)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	body := decode(t, w)
	if body["token"] != "tok" || body["emailDelivery"] != "queued" {
		t.Fatalf("unexpected body: %v", body)
	}
	if f.lastRegister.UserName != "ada" {
		t.Fatalf("input not passed through: %+v", f.lastRegister)
	}
}

func TestRegister_ConflictIs409(t *testing.T) {
	f := &fakeAccounts{registerErr: fmt.Errorf("%w: email", account.ErrConflict)}
	r := newAuthRouter(f)

	w := postJSON(r, "/auth/register", registerBody)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if decode(t, w)["code"] != "conflict" {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestRegister_WeakPasswordIs400(t *testing.T) {
	f := &fakeAccounts{registerErr: &account.ValidationError{Field: "password", Rule: "strength", Message: "password is too weak"}}
	r := newAuthRouter(f)

	w := postJSON(r, "/auth/register", registerBody)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestActivate_StatusPerError(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"ok", nil, http.StatusCreated, "", "User registration successful"},
		{"missing", account.ErrMissingToken, http.StatusBadRequest, "missing_token", ""},
		{"expired", account.ErrExpiredToken, http.StatusUnauthorized, "expired_token", "expired token"},
		{"invalid", account.ErrInvalidToken, http.StatusUnauthorized, "invalid_token", "Invalid token"},
		{"duplicate", account.ErrConflict, http.StatusConflict, "conflict", ""},
		{"boom", fmt.Errorf("db down"), http.StatusInternalServerError, "internal_error", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newAuthRouter(&fakeAccounts{activateErr: tc.err})

			w := postJSON(r, "/auth/activate", `{"token":"x"}`)
			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d", w.Code, tc.status)
			}

			body := decode(t, w)
			if tc.code != "" && body["code"] != tc.code {
				t.Fatalf("code = %v, want %s", body["code"], tc.code)
			}
			if tc.message != "" && body["message"] != tc.message {
				t.Fatalf("message = %v, want %s", body["message"], tc.message)
			}
		})
	}
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	f := &fakeAccounts{loginRes: account.LoginResult{
		User:         user.User{ID: "u1", UserName: "ada", PasswordHash: "secret-hash"},
		AccessToken:  "access",
		SessionToken: "session",
		SessionTTL:   15 * time.Minute,
	}}
	r := newAuthRouter(f)

	w := postJSON(r, "/auth/login", `{"email":"ada@example.com","password":"pw"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}

	res := w.Result()
	var cookie *http.Cookie
	for _, c := range res.Cookies() {
		if c.Name == middlewares.SessionCookie {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatalf("session cookie not set")
	}
	if cookie.Value != "session" || cookie.MaxAge != 900 {
		t.Fatalf("unexpected cookie: %+v", cookie)
	}
	if !cookie.HttpOnly || !cookie.Secure || cookie.SameSite != http.SameSiteNoneMode {
		t.Fatalf("cookie flags wrong: %+v", cookie)
	}

	if bytes.Contains(w.Body.Bytes(), []byte("secret-hash")) {
		t.Fatalf("password hash leaked: %s", w.Body.String())
	}
	if decode(t, w)["accessToken"] != "access" {
		t.Fatalf("missing access token: %s", w.Body.String())
	}
}

func TestLogin_Errors(t *testing.T) {
	cases := map[error]int{
		account.ErrNotFound:     http.StatusNotFound,
		account.ErrUnauthorized: http.StatusUnauthorized,
		account.ErrForbidden:    http.StatusForbidden,
	}

	for err, status := range cases {
		r := newAuthRouter(&fakeAccounts{loginErr: err})

		w := postJSON(r, "/auth/login", `{"email":"ada@example.com","password":"pw"}`)
		if w.Code != status {
			t.Fatalf("%v: status = %d, want %d", err, w.Code, status)
		}
		if len(w.Result().Cookies()) != 0 {
			t.Fatalf("%v: cookie set on failure", err)
		}
	}
}

func TestLogout_ClearsCookie(t *testing.T) {
	r := newAuthRouter(&fakeAccounts{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != middlewares.SessionCookie || cookies[0].MaxAge >= 0 {
		t.Fatalf("cookie not cleared: %+v", cookies)
	}
}

func TestForgotAndResetPassword(t *testing.T) {
	f := &fakeAccounts{forgotRes: account.MailResult{Token: "reset", EmailDelivery: account.DeliverySent}}
	r := newAuthRouter(f)

	w := postJSON(r, "/auth/forgot-password", `{"email":"ada@example.com"}`)
	if w.Code != http.StatusOK || decode(t, w)["token"] != "reset" {
		t.Fatalf("forgot: status = %d body=%s", w.Code, w.Body.String())
	}

	w = postJSON(r, "/auth/reset-password", `{"token":"reset","password":"new password 123"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("reset: status = %d body=%s", w.Code, w.Body.String())
	}

	f.resetErr = account.ErrUnauthorized
	w = postJSON(r, "/auth/reset-password", `{"token":"reset","password":"new password 123"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("reset with bad token: status = %d", w.Code)
	}
}
