package constants

// HTTP Header Names
const (
	HeaderContentType    = "Content-Type"
	HeaderAuthorization  = "Authorization"
	HeaderUserAgent      = "User-Agent"
	HeaderXRequestID     = "X-Request-ID"
	HeaderXTraceID       = "X-Trace-ID"
	HeaderXCorrelationID = "X-Correlation-ID"
	HeaderXForwardedFor  = "X-Forwarded-For"
	HeaderXRealIP        = "X-Real-IP"
	HeaderRetryAfter     = "Retry-After"

	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

const BearerPrefix = "Bearer "

// HTTP Content Types
const (
	ContentTypeJSON = "application/json"
)

// Common HTTP Messages
const (
	MsgBadRequest        = "Invalid request"
	MsgInternalError     = "Internal server error"
	MsgSuccess           = "Operation completed successfully"
	MsgLoggedOut         = "Logged out successfully"
	MsgResetEmailSent    = "If an account exists for that email, a password reset link has been sent"
	MsgPasswordReset     = "Password reset successful"
	MsgEmailVerified     = "Email verified successfully"
	MsgVerificationSent  = "Verification email sent"
	MsgPasswordChanged   = "Password updated successfully"
	MsgTokenValid        = "Token is valid"
	MsgAccountDeactivate = "Account is deactivated"
)
