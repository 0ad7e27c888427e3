package types

type RunMode string

const (
	// ModeLocal runs the API server with local defaults
	ModeLocal RunMode = "local"
	// ModeAPI runs just the API server
	ModeAPI RunMode = "api"
	// ModeAWSLambdaAPI runs the API server behind AWS Lambda
	ModeAWSLambdaAPI RunMode = "aws_lambda_api"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// StoreProvider selects the backend used by the repositories
type StoreProvider string

const (
	StoreProviderPostgres StoreProvider = "postgres"
	StoreProviderSupabase StoreProvider = "supabase"
)

// CacheProvider selects the cache implementation
type CacheProvider string

const (
	CacheProviderMemory CacheProvider = "memory"
	CacheProviderRedis  CacheProvider = "redis"
)
