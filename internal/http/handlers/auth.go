package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/storefront/internal/account"
	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/geocoder89/storefront/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

// AccountFlows is the part of account.Service the auth routes drive.
type AccountFlows interface {
	Register(ctx context.Context, in account.RegisterInput) (account.MailResult, error)
	Activate(ctx context.Context, token string) (user.User, error)
	Login(ctx context.Context, email, password string) (account.LoginResult, error)
	ForgotPassword(ctx context.Context, email string) (account.MailResult, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

type AuthHandler struct {
	accounts AccountFlows
	// secure is false only for plain-http local development
	secure bool
}

func NewAuthHandler(accounts AccountFlows, secureCookies bool) *AuthHandler {
	return &AuthHandler{accounts: accounts, secure: secureCookies}
}

type RegisterRequest struct {
	FirstName string `json:"firstName" binding:"required,min=2,max=50"`
	LastName  string `json:"lastName" binding:"required,min=2,max=50"`
	UserName  string `json:"userName" binding:"required,min=3,max=30,alphanum"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8,max=72"`
}

type TokenRequest struct {
	Token string `json:"token"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	res, err := h.accounts.Register(ctx.Request.Context(), account.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		UserName:  req.UserName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		RespondAccountError(ctx, err, map[error]string{
			account.ErrConflict: "User with this email or user name already exists",
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message":       mailMessage(res.EmailDelivery, "Check your email to activate your account"),
		"token":         res.Token,
		"emailDelivery": res.EmailDelivery,
	})
}

func (h *AuthHandler) Activate(ctx *gin.Context) {
	var req TokenRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if _, err := h.accounts.Activate(ctx.Request.Context(), req.Token); err != nil {
		RespondAccountError(ctx, err, map[error]string{
			account.ErrConflict: "User is already registered",
		})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"message": "User registration successful"})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	res, err := h.accounts.Login(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondAccountError(ctx, err, map[error]string{
			account.ErrNotFound:     "User not found with this email",
			account.ErrUnauthorized: "Password does not match",
			account.ErrForbidden:    "User is banned, please contact support",
		})
		return
	}

	h.setSessionCookie(ctx, res.SessionToken, res.SessionTTL)

	ctx.JSON(http.StatusOK, gin.H{
		"message":     "User is logged in",
		"payload":     res.User,
		"accessToken": res.AccessToken,
	})
}

// Logout always succeeds; there is no server-side session to revoke.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	h.clearSessionCookie(ctx)
	ctx.JSON(http.StatusOK, gin.H{"message": "User is logged out"})
}

func (h *AuthHandler) ForgotPassword(ctx *gin.Context) {
	var req ForgotPasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	res, err := h.accounts.ForgotPassword(ctx.Request.Context(), req.Email)
	if err != nil {
		RespondAccountError(ctx, err, map[error]string{
			account.ErrNotFound: "User not found with this email",
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message":       mailMessage(res.EmailDelivery, "Check your email to reset your password"),
		"token":         res.Token,
		"emailDelivery": res.EmailDelivery,
	})
}

func (h *AuthHandler) ResetPassword(ctx *gin.Context) {
	var req ResetPasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if err := h.accounts.ResetPassword(ctx.Request.Context(), req.Token, req.Password); err != nil {
		RespondAccountError(ctx, err, map[error]string{
			account.ErrUnauthorized: "Invalid or expired reset token",
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "The password has been reset successfully"})
}

func mailMessage(d account.Delivery, sent string) string {
	switch d {
	case account.DeliveryQueued:
		return "Email delivery is pending, it will arrive shortly"
	case account.DeliveryFailed:
		return "Email could not be sent, please try again later"
	default:
		return sent
	}
}

func (h *AuthHandler) setSessionCookie(ctx *gin.Context, raw string, ttl time.Duration) {
	ctx.SetSameSite(h.sameSite())
	ctx.SetCookie(
		middlewares.SessionCookie,
		raw,
		int(ttl.Seconds()),
		"/",
		"",
		h.secure,
		true, // HttpOnly.
	)
}

func (h *AuthHandler) clearSessionCookie(ctx *gin.Context) {
	ctx.SetSameSite(h.sameSite())
	ctx.SetCookie(middlewares.SessionCookie, "", -1, "/", "", h.secure, true)
}

// browsers drop SameSite=None cookies that are not Secure
func (h *AuthHandler) sameSite() http.SameSite {
	if h.secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}
