package handler

import (
	"context"
	"net/http"

	"github.com/Payphone-Digital/account-security/internal/constants"
	"github.com/Payphone-Digital/account-security/internal/dto"
	apperrors "github.com/Payphone-Digital/account-security/internal/errors"
	"github.com/Payphone-Digital/account-security/internal/middleware"
	ctxutil "github.com/Payphone-Digital/account-security/pkg/context"
	"github.com/Payphone-Digital/account-security/pkg/logger"
	"github.com/gin-gonic/gin"
)

// AuthService is the account security surface the handlers drive.
// *service.AuthService implements it.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*dto.TokenResponse, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) (*dto.TokenResponse, error)
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, userID uint) error
	ChangePassword(ctx context.Context, userID uint, currentPassword, newPassword string) (*dto.TokenResponse, error)
	Profile(ctx context.Context, userID uint) (*dto.UserResponse, error)
}

type AuthHandler struct {
	auth AuthService
}

func NewAuthHandler(auth AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login handles user authentication
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "Login")

	req, ok := middleware.Body[dto.UserLoginRequest](c)
	if !ok {
		respondError(c, ctx, apperrors.ErrValidation)
		return
	}

	response, err := h.auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		respondError(c, ctx, err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildDataResponse(response))
}

// ForgotPassword issues a reset token for the submitted email.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "ForgotPassword")

	req, ok := middleware.Body[dto.ForgotPasswordRequest](c)
	if !ok {
		respondError(c, ctx, apperrors.ErrValidation)
		return
	}

	if err := h.auth.RequestPasswordReset(ctx, req.Email); err != nil {
		respondError(c, ctx, err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgResetEmailSent))
}

// ResetPassword redeems the reset token in the path.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "ResetPassword")

	req, ok := middleware.Body[dto.ResetPasswordRequest](c)
	if !ok {
		respondError(c, ctx, apperrors.ErrValidation)
		return
	}

	token := c.Param("token")
	if token == "" {
		respondError(c, ctx, apperrors.ErrInvalidOrExpiredToken)
		return
	}

	response, err := h.auth.ResetPassword(ctx, token, req.Password)
	if err != nil {
		respondError(c, ctx, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		constants.ResponseFieldSuccess: true,
		constants.ResponseFieldMessage: constants.MsgPasswordReset,
		constants.ResponseFieldData:    response,
	})
}

func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "VerifyEmail")

	if err := h.auth.VerifyEmail(ctx, c.Param("token")); err != nil {
		respondError(c, ctx, err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgEmailVerified))
}

func (h *AuthHandler) ResendVerification(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "ResendVerification")

	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, ctx, apperrors.ErrUnauthorized)
		return
	}

	if err := h.auth.ResendVerification(ctx, user.ID); err != nil {
		respondError(c, ctx, err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgVerificationSent))
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "Me")

	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, ctx, apperrors.ErrUnauthorized)
		return
	}

	profile, err := h.auth.Profile(ctx, user.ID)
	if err != nil {
		respondError(c, ctx, err)
		return
	}

	c.JSON(http.StatusOK, constants.BuildDataResponse(profile))
}

// Verify confirms the presented token is still good. Protect has already
// done the work.
func (h *AuthHandler) Verify(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, c.Request.Context(), apperrors.ErrUnauthorized)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		constants.ResponseFieldSuccess: true,
		constants.ResponseFieldMessage: constants.MsgTokenValid,
		constants.ResponseFieldData:    dto.ToUserResponse(user),
	})
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "ChangePassword")

	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, ctx, apperrors.ErrUnauthorized)
		return
	}

	req, ok := middleware.Body[dto.UpdatePasswordRequest](c)
	if !ok {
		respondError(c, ctx, apperrors.ErrValidation)
		return
	}

	response, err := h.auth.ChangePassword(ctx, user.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		respondError(c, ctx, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		constants.ResponseFieldSuccess: true,
		constants.ResponseFieldMessage: constants.MsgPasswordChanged,
		constants.ResponseFieldData:    response,
	})
}

// Logout is an acknowledgement only. Session tokens are stateless and stay
// valid until they expire; clients discard theirs.
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := ctxutil.NewContextWithRequest(c.Request.Context(), c.Request, "handler", "Logout")

	if user, ok := middleware.CurrentUser(c); ok {
		logger.InfoWithContext(ctx, "User logged out").
			Uint("target_user_id", user.ID).
			Log()
	}

	c.JSON(http.StatusOK, constants.BuildSuccessResponse(constants.MsgLoggedOut))
}

func (h *AuthHandler) AdminPing(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	role := ""
	if user != nil {
		role = user.Role
	}
	c.JSON(http.StatusOK, gin.H{
		constants.ResponseFieldSuccess: true,
		constants.ResponseFieldMessage: "pong",
		"role":                         role,
	})
}

// WhoAmI answers for both anonymous and authenticated callers.
func (h *AuthHandler) WhoAmI(c *gin.Context) {
	res := dto.WhoAmIResponse{}
	if user, ok := middleware.CurrentUser(c); ok {
		u := dto.ToUserResponse(user)
		res.Authenticated = true
		res.User = &u
	}
	c.JSON(http.StatusOK, constants.BuildDataResponse(res))
}

func respondError(c *gin.Context, ctx context.Context, err error) {
	status := apperrors.ToHTTPStatus(err)

	b := logger.WarnWithContext(ctx, "Request failed")
	if status >= http.StatusInternalServerError {
		b = logger.ErrorWithContext(ctx, "Request failed")
	}
	b.String("code", apperrors.GetErrorCode(err)).
		StatusCode(status).
		Err(err).
		Log()

	c.JSON(status, constants.BuildCodedErrorResponse(apperrors.GetErrorCode(err), apperrors.GetErrorMessage(err)))
}
