// Package constants defines system-wide constants for credkit.
// This package provides type-safe constant definitions used across all modules.
package constants

import "time"

// ================================================================================
// JWT Header Constants
// ================================================================================

const (
	// JWTType is the value of the "typ" header of every identity token
	JWTType = "JWT"

	// JWTContentType marks a token as a Virgil-flavored JWT ("cty" header)
	JWTContentType = "virgil-jwt;v=1"
)

// ================================================================================
// JWT Claim Prefixes
// ================================================================================

const (
	// IssuerPrefix is prepended to the application ID in the "iss" claim
	IssuerPrefix = "virgil-"

	// SubjectPrefix is prepended to the user identity in the "sub" claim
	SubjectPrefix = "identity-"
)

// ================================================================================
// Token Lifetime Constants
// ================================================================================

const (
	// TokenExpirationMargin is the default lookahead used when deciding whether a
	// cached token is still fresh enough to be attached to a request (5 seconds)
	TokenExpirationMargin = 5 * time.Second
)

// ================================================================================
// Storage Constants
// ================================================================================

// StorageBackend names a StorageAdapter implementation selectable from configuration
type StorageBackend string

const (
	// StorageBackendFilesystem stores one file per entry under a directory (default)
	StorageBackendFilesystem StorageBackend = "filesystem"

	// StorageBackendMemory keeps entries in process memory
	StorageBackendMemory StorageBackend = "memory"

	// StorageBackendBolt stores entries in an embedded bbolt database file
	StorageBackendBolt StorageBackend = "bolt"

	// StorageBackendRedis stores entries in Redis
	StorageBackendRedis StorageBackend = "redis"

	// StorageBackendVault stores entries in a HashiCorp Vault KV v2 mount
	StorageBackendVault StorageBackend = "vault"

	// StorageBackendSQL stores entries in a SQL table through gorm
	StorageBackendSQL StorageBackend = "sql"
)

const (
	// DefaultStorageName is the logical store name used when none is configured
	DefaultStorageName = "VirgilKeys"

	// DefaultStorageDirectory is the directory used by the filesystem backend when none is configured
	DefaultStorageDirectory = ".virgil_key_entries"

	// StorageFilePermissions is the mode of entry files written by the filesystem backend
	StorageFilePermissions = 0o600

	// StorageDirPermissions is the mode of directories created by the filesystem backend
	StorageDirPermissions = 0o700
)

// ================================================================================
// Logging Constants
// ================================================================================

// LogLevel represents the severity level of log messages
type LogLevel string

const (
	// LogLevelDebug is the most verbose logging level
	LogLevelDebug LogLevel = "debug"

	// LogLevelInfo is the standard informational logging level
	LogLevelInfo LogLevel = "info"

	// LogLevelWarn indicates potential issues
	LogLevelWarn LogLevel = "warn"

	// LogLevelError indicates errors that need attention
	LogLevelError LogLevel = "error"
)

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey represents keys used in context.Context
type ContextKey string

const (
	// ContextKeyRequestID is the key for request ID in context
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyTraceID is the key for distributed trace ID in context
	ContextKeyTraceID ContextKey = "trace_id"

	// ContextKeyLogger is the key for a request-scoped logger in context
	ContextKeyLogger ContextKey = "logger"
)
