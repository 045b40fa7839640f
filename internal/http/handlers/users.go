package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/geocoder89/storefront/internal/account"
	"github.com/geocoder89/storefront/internal/domain/user"
	"github.com/geocoder89/storefront/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

// UserAdmin is the part of account.Service the users routes drive.
type UserAdmin interface {
	List(ctx context.Context, in account.ListInput) (account.ListResult, error)
	Get(ctx context.Context, userName string) (user.User, error)
	Update(ctx context.Context, actor account.Actor, userName string, upd user.ProfileUpdate) (user.User, error)
	Delete(ctx context.Context, userName string) error
	ToggleBan(ctx context.Context, userName string) (user.User, error)
}

type UsersHandler struct {
	users UserAdmin
}

func NewUsersHandler(users UserAdmin) *UsersHandler {
	return &UsersHandler{users: users}
}

type UpdateUserRequest struct {
	FirstName *string `json:"firstName" binding:"omitempty,min=2,max=50"`
	LastName  *string `json:"lastName" binding:"omitempty,min=2,max=50"`
	Image     *string `json:"image" binding:"omitempty,max=512"`
}

var userNotFound = map[error]string{account.ErrNotFound: "User not found"}

func (h *UsersHandler) List(ctx *gin.Context) {
	// unparsable values fall back to the defaults
	page, _ := strconv.Atoi(ctx.Query("page"))
	limit, _ := strconv.Atoi(ctx.Query("limit"))

	res, err := h.users.List(ctx.Request.Context(), account.ListInput{
		Page:   page,
		Limit:  limit,
		Search: ctx.Query("search"),
	})
	if err != nil {
		RespondAccountError(ctx, err, nil)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"message": "return all users",
		"payload": res,
	})
}

func (h *UsersHandler) Get(ctx *gin.Context) {
	userName := ctx.Param("userName")

	u, err := h.users.Get(ctx.Request.Context(), userName)
	if err != nil {
		RespondAccountError(ctx, err, userNotFound)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"message": "get single user with user name " + userName,
		"payload": u,
	})
}

func (h *UsersHandler) Update(ctx *gin.Context) {
	var req UpdateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	userName := ctx.Param("userName")
	actorID, _ := middlewares.UserIDFromContext(ctx)

	u, err := h.users.Update(ctx.Request.Context(),
		account.Actor{UserID: actorID, IsAdmin: middlewares.IsAdminFromContext(ctx)},
		userName,
		user.ProfileUpdate{FirstName: req.FirstName, LastName: req.LastName, Image: req.Image},
	)
	if err != nil {
		RespondAccountError(ctx, err, map[error]string{
			account.ErrNotFound:  "User not found",
			account.ErrForbidden: "You can only update your own profile",
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "update user with user name " + userName,
		"payload": u,
	})
}

func (h *UsersHandler) Delete(ctx *gin.Context) {
	userName := ctx.Param("userName")

	if err := h.users.Delete(ctx.Request.Context(), userName); err != nil {
		RespondAccountError(ctx, err, userNotFound)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "delete user with user name " + userName})
}

func (h *UsersHandler) ToggleBan(ctx *gin.Context) {
	u, err := h.users.ToggleBan(ctx.Request.Context(), ctx.Param("userName"))
	if err != nil {
		RespondAccountError(ctx, err, userNotFound)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message":  "User status is updated",
		"isBanned": u.IsBanned,
	})
}
