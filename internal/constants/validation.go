package constants

// Field Length Limits
const (
	MinPasswordLength = 6
	MaxPasswordLength = 72 // bcrypt ignores input past 72 bytes
	MaxEmailLength    = 255
)
