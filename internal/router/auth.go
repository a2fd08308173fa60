package router

import (
	"github.com/Payphone-Digital/account-security/internal/constants"
	"github.com/Payphone-Digital/account-security/internal/dto"
	"github.com/Payphone-Digital/account-security/internal/middleware"
	"github.com/gin-gonic/gin"
)

func (r *Router) authRoutes(rg *gin.RouterGroup) {
	auth := rg.Group("/auth")
	{
		auth.POST("/login",
			r.rateLimit(constants.RateLimitPurposeLogin),
			middleware.ValidateJSON[dto.UserLoginRequest](r.validator),
			r.authHandler.Login)
		auth.POST("/forgot-password",
			r.rateLimit(constants.RateLimitPurposeReset),
			middleware.ValidateJSON[dto.ForgotPasswordRequest](r.validator),
			r.authHandler.ForgotPassword)
		auth.PUT("/reset-password/:token",
			middleware.ValidateJSON[dto.ResetPasswordRequest](r.validator),
			r.authHandler.ResetPassword)
		auth.GET("/verify-email/:token", r.authHandler.VerifyEmail)

		protected := auth.Group("")
		protected.Use(r.authMw.Protect())
		{
			protected.POST("/resend-verification", r.authHandler.ResendVerification)
			protected.GET("/me", r.authHandler.Me)
			protected.GET("/verify", r.authHandler.Verify)
			protected.PUT("/password",
				middleware.ValidateJSON[dto.UpdatePasswordRequest](r.validator),
				r.authHandler.ChangePassword)
			protected.POST("/logout", r.authHandler.Logout)
		}
	}
}

func (r *Router) adminRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("/admin")
	admin.Use(r.authMw.Protect(), r.authMw.Authorize(constants.RoleAdmin))
	{
		admin.GET("/ping", r.authHandler.AdminPing)
	}
}

func (r *Router) publicRoutes(rg *gin.RouterGroup) {
	public := rg.Group("/public")
	public.Use(r.authMw.OptionalAuth())
	{
		public.GET("/whoami", r.authHandler.WhoAmI)
	}
}
