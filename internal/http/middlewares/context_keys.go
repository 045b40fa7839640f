package middlewares

const (
	CtxRequestID = "request_id"

	ctxUserIDKey  = "auth.userID"
	ctxIsAdminKey = "auth.isAdmin"

	// SessionCookie carries the session token set at login.
	SessionCookie = "access_token"
)
