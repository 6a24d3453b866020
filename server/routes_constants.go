package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes - Session lifecycle
	RouteRegister      = "/api/auth/register"
	RouteLogin         = "/api/auth/login"
	RouteRefreshTokens = "/api/auth/refresh-tokens"
	RouteLogout        = "/api/auth/logout"

	// Auth Routes - Password Management
	RouteForgotPassword = "/api/auth/forgot-password"
	RouteResetPassword  = "/api/auth/reset-password"

	// Auth Routes - Email Verification
	RouteSendVerificationEmail = "/api/auth/send-verification-email"
	RouteVerifyEmail           = "/api/auth/verify-email"

	// User Routes
	RouteUsersMe = "/api/users/me"

	// Well-known Routes
	RouteWellKnownJWKS = "/.well-known/jwks.json"

	RouteFavicon = "/favicon.ico"
)
