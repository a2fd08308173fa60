package middleware

import (
	"context"
	"strings"

	"github.com/Payphone-Digital/account-security/internal/constants"
	apperrors "github.com/Payphone-Digital/account-security/internal/errors"
	"github.com/Payphone-Digital/account-security/internal/model"
	ctxutil "github.com/Payphone-Digital/account-security/pkg/context"
	"github.com/Payphone-Digital/account-security/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Authenticator resolves a bearer token to an active account.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

type AuthMiddleware struct {
	auth Authenticator
}

func NewAuthMiddleware(auth Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// Protect rejects requests without a valid bearer token for an active
// account and attaches the account to the request otherwise.
func (m *AuthMiddleware) Protect() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := ctxutil.WithFunction(c.Request.Context(), "middleware", "Protect")

		token, ok := bearerToken(c)
		if !ok {
			logger.WarnWithContext(ctx, "Missing bearer token").
				Path(c.Request.URL.Path).
				Log()
			abortWithError(c, apperrors.ErrUnauthorized)
			return
		}

		user, err := m.auth.Authenticate(ctx, token)
		if err != nil {
			logger.WarnWithContext(ctx, "Request authentication failed").
				Path(c.Request.URL.Path).
				String("code", apperrors.GetErrorCode(err)).
				Err(err).
				Log()
			abortWithError(c, err)
			return
		}

		setCurrentUser(c, user)
		c.Next()
	}
}

// Authorize must run after Protect. It rejects accounts whose role is not
// in roles.
func (m *AuthMiddleware) Authorize(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abortWithError(c, apperrors.ErrUnauthorized)
			return
		}

		if !user.HasRole(roles...) {
			logger.WarnWithContext(c.Request.Context(), "Role not permitted for route").
				String("role", user.Role).
				Path(c.Request.URL.Path).
				Log()
			abortWithError(c, apperrors.ErrForbidden)
			return
		}

		c.Next()
	}
}

// OptionalAuth attaches the account when a valid token is presented and
// otherwise lets the request through anonymously.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		ctx := ctxutil.WithFunction(c.Request.Context(), "middleware", "OptionalAuth")
		user, err := m.auth.Authenticate(ctx, token)
		if err != nil {
			logger.DebugWithContext(ctx, "Optional authentication ignored").
				String("code", apperrors.GetErrorCode(err)).
				Log()
			c.Next()
			return
		}

		setCurrentUser(c, user)
		c.Next()
	}
}

// CurrentUser returns the account attached by Protect or OptionalAuth.
func CurrentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(constants.GinKeyCurrentUser)
	if !ok {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok && user != nil
}

func setCurrentUser(c *gin.Context, user *model.User) {
	c.Set(constants.GinKeyCurrentUser, user)
	ctx := ctxutil.WithUserID(c.Request.Context(), user.ID)
	ctx = ctxutil.WithValue(ctx, ctxutil.CurrentUserKey, user)
	c.Request = c.Request.WithContext(ctx)
}

func bearerToken(c *gin.Context) (string, bool) {
	token, ok := strings.CutPrefix(c.GetHeader(constants.HeaderAuthorization), constants.BearerPrefix)
	if !ok {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperrors.ToHTTPStatus(err),
		constants.BuildCodedErrorResponse(apperrors.GetErrorCode(err), apperrors.GetErrorMessage(err)))
}
