package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rumahku/billing/internal/types"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Store      StoreConfig      `validate:"required"`
	Postgres   PostgresConfig
	Supabase   SupabaseConfig
	Cache      CacheConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Billing    BillingConfig `validate:"required"`
	Catalog    CatalogConfig
	Payment    PaymentConfig
	Svix       SvixConfig
	Sentry     SentryConfig
	Pyroscope  PyroscopeConfig
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	HTTPClient HTTPClientConfig `mapstructure:"http_client"`
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address        string   `validate:"required"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type StoreConfig struct {
	Provider types.StoreProvider `validate:"required,oneof=postgres supabase"`
}

type PostgresConfig struct {
	Host                   string
	Port                   int
	User                   string
	Password               string
	DBName                 string `mapstructure:"dbname"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
	AutoMigrate            bool   `mapstructure:"auto_migrate"`
}

type SupabaseConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	ServiceKey string `mapstructure:"service_key"`
	// JWTSecret verifies access tokens issued to app users
	JWTSecret string `mapstructure:"jwt_secret"`
}

type CacheConfig struct {
	Enabled  bool
	Provider types.CacheProvider
	TTL      time.Duration
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type AuthConfig struct {
	// AdminAPIKeyHash is a bcrypt hash of the admin api key
	AdminAPIKeyHash string `mapstructure:"admin_api_key_hash"`
	// Disabled skips token verification, only meant for local development
	Disabled bool
}

type BillingConfig struct {
	Currency      string        `validate:"required"`
	TrialDays     int           `mapstructure:"trial_days" validate:"min=0"`
	TrialTier     string        `mapstructure:"trial_tier"`
	PaymentExpiry time.Duration `mapstructure:"payment_expiry"`
	// StoreTimeout bounds each call to the promo store, pricing fails closed past it
	StoreTimeout    time.Duration `mapstructure:"store_timeout"`
	CheckoutLockTTL time.Duration `mapstructure:"checkout_lock_ttl"`
	TrialWarnDays   int           `mapstructure:"trial_warn_days"`
}

type CatalogConfig struct {
	// SeedOnStart upserts Tiers into the store when the server starts
	SeedOnStart bool         `mapstructure:"seed_on_start"`
	Tiers       []TierConfig `validate:"dive"`
}

// TierConfig mirrors the loosely typed tier rows of the catalog.
// Features stay untyped here and are validated when the catalog is loaded.
type TierConfig struct {
	ID           string `mapstructure:"id" validate:"required"`
	Name         string `mapstructure:"name"`
	Description  string `mapstructure:"description"`
	MonthlyPrice int64  `mapstructure:"monthly_price" validate:"min=0"`
	YearlyPrice  int64  `mapstructure:"yearly_price" validate:"min=0"`
	MaxMembers   int    `mapstructure:"max_members"`
	SortOrder    int    `mapstructure:"sort_order"`
	Features     []any  `mapstructure:"features"`
}

type PaymentConfig struct {
	DefaultProvider types.PaymentProvider `mapstructure:"default_provider"`
	SuccessURL      string                `mapstructure:"success_url"`
	FailureURL      string                `mapstructure:"failure_url"`
	Midtrans        MidtransConfig
	Xendit          XenditConfig
	Stripe          StripeConfig
}

type MidtransConfig struct {
	Enabled      bool
	ServerKey    string `mapstructure:"server_key"`
	ClientKey    string `mapstructure:"client_key"`
	IsProduction bool   `mapstructure:"is_production"`
}

type XenditConfig struct {
	Enabled       bool
	SecretKey     string `mapstructure:"secret_key"`
	CallbackToken string `mapstructure:"callback_token"`
	BaseURL       string `mapstructure:"base_url"`
}

type StripeConfig struct {
	Enabled       bool
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type SvixConfig struct {
	Enabled   bool
	AuthToken string `mapstructure:"auth_token"`
	BaseURL   string `mapstructure:"base_url"`
}

type SentryConfig struct {
	Enabled     bool
	DSN         string
	Environment string
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type PyroscopeConfig struct {
	Enabled         bool
	ServerAddress   string `mapstructure:"server_address"`
	ApplicationName string `mapstructure:"application_name"`
	BasicAuthUser   string `mapstructure:"basic_auth_user"`
	BasicAuthPass   string `mapstructure:"basic_auth_password"`
	// ProfileTypes defaults to cpu, memory and goroutine profiles
	ProfileTypes []string `mapstructure:"profile_types"`
}

type RateLimitConfig struct {
	Enabled bool
	// PromoValidationRPS is the sustained per client rate for promo checks
	PromoValidationRPS   float64 `mapstructure:"promo_validation_rps"`
	PromoValidationBurst int     `mapstructure:"promo_validation_burst"`
}

type HTTPClientConfig struct {
	Timeout      time.Duration
	RetryMax     int           `mapstructure:"retry_max"`
	RetryWaitMin time.Duration `mapstructure:"retry_wait_min"`
	RetryWaitMax time.Duration `mapstructure:"retry_wait_max"`
}

func NewConfig() (*Configuration, error) {
	// .env is optional, real environments inject variables directly
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/rumahku")

	v.SetEnvPrefix("RUMAHKU")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Error reading config file: %v\n", err)
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

func (c *Configuration) applyDefaults() {
	if c.Billing.Currency == "" {
		c.Billing.Currency = types.DefaultCurrency
	}
	if c.Billing.PaymentExpiry == 0 {
		c.Billing.PaymentExpiry = 24 * time.Hour
	}
	if c.Billing.StoreTimeout == 0 {
		c.Billing.StoreTimeout = 5 * time.Second
	}
	if c.Billing.CheckoutLockTTL == 0 {
		c.Billing.CheckoutLockTTL = 30 * time.Second
	}
	if c.Billing.TrialWarnDays == 0 {
		c.Billing.TrialWarnDays = 3
	}
	if c.Cache.Provider == "" {
		c.Cache.Provider = types.CacheProviderMemory
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 30 * time.Minute
	}
	if c.HTTPClient.Timeout == 0 {
		c.HTTPClient.Timeout = 30 * time.Second
	}
	if len(c.Catalog.Tiers) == 0 {
		c.Catalog.Tiers = DefaultTiers()
	}
}

// DefaultTiers is the catalog the app ships with, prices in IDR
func DefaultTiers() []TierConfig {
	return []TierConfig{
		{
			ID:           "free",
			Name:         "Free",
			Description:  "Basic household organisation",
			MonthlyPrice: 0,
			YearlyPrice:  0,
			MaxMembers:   2,
			SortOrder:    0,
			Features:     []any{"tasks", "shopping_lists"},
		},
		{
			ID:           "family",
			Name:         "Family",
			Description:  "Everything a family needs",
			MonthlyPrice: 20000,
			YearlyPrice:  200000,
			MaxMembers:   6,
			SortOrder:    1,
			Features:     []any{"tasks", "shopping_lists", "recipes", "shared_calendar"},
		},
		{
			ID:           "premium",
			Name:         "Premium",
			Description:  "Unlimited members and priority support",
			MonthlyPrice: 100000,
			YearlyPrice:  1000000,
			MaxMembers:   0,
			SortOrder:    2,
			Features:     []any{"tasks", "shopping_lists", "recipes", "shared_calendar", "budgeting", "priority_support"},
		},
	}
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running scripts and tests
func GetDefaultConfig() *Configuration {
	cfg := &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Store:      StoreConfig{Provider: types.StoreProviderPostgres},
		Cache:      CacheConfig{Enabled: true},
		Billing: BillingConfig{
			TrialDays: 14,
			TrialTier: "premium",
		},
		Payment: PaymentConfig{DefaultProvider: types.PaymentProviderMidtrans},
	}
	cfg.applyDefaults()
	return cfg
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}
