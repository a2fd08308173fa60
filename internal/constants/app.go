package constants

import "time"

// Application Information
const (
	AppName    = "Account Security Service"
	AppVersion = "1.0.0"
)

// Environment Types
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Default Application Settings
const (
	DefaultPort        = "8080"
	DefaultEnvironment = EnvDevelopment
)

// Account roles
const (
	RoleAdmin   = "admin"
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

// Rate limit purposes, used as part of the counter key
const (
	RateLimitPurposeLogin = "login"
	RateLimitPurposeReset = "reset"
	RateLimitUnknownID    = "unknown"
)

// Upper bound on how long a request handler waits for infrastructure calls
// that are outside the request's own deadline (health probes, shutdown).
const (
	HealthCheckTimeout = 2 * time.Second
	ShutdownTimeout    = 10 * time.Second
)

// Log Levels
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
	LogLevelFatal = "fatal"
)
