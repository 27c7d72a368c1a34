// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bytebill/internal/domain/model"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev        bool
	ConfigPath string
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // postgres | memory
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"` // empty = in-process locks and limits
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // plan cache ttl
}

type AuthConfig struct {
	JWTSecret       string        `yaml:"jwt_secret"`
	TokenTTL        time.Duration `yaml:"token_ttl"`
	ControllerToken string        `yaml:"controller_token"` // network-control collaborator
}

type MPesaConfig struct {
	Environment       string  `yaml:"environment"` // sandbox | production
	BaseURL           string  `yaml:"base_url"`
	ConsumerKey       string  `yaml:"consumer_key"`
	ConsumerSecret    string  `yaml:"consumer_secret"`
	ShortCode         string  `yaml:"short_code"`
	PassKey           string  `yaml:"pass_key"`
	CallbackURL       string  `yaml:"callback_url"`
	CallbackToken     string  `yaml:"callback_token"` // appended as ?token= and required on the callback route
	TransactionType   string  `yaml:"transaction_type"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

type PaymentConfig struct {
	Provider        string        `yaml:"provider"` // mpesa | noop
	Currency        string        `yaml:"currency"`
	PendingTimeout  time.Duration `yaml:"pending_timeout"`
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	ReclaimInterval time.Duration `yaml:"reclaim_interval"`
	MPesa           MPesaConfig   `yaml:"mpesa"`
}

type VoucherConfig struct {
	MaxBatch       int           `yaml:"max_batch"`
	MaxExpiryDays  int           `yaml:"max_expiry_days"`
	PageSize       int           `yaml:"page_size"`
	RedeemAttempts int           `yaml:"redeem_attempts"`
	RedeemWindow   time.Duration `yaml:"redeem_window"`
}

type QuotaConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval"`
	PageSize      int           `yaml:"page_size"`
}

type LockConfig struct {
	TTL  time.Duration `yaml:"ttl"`
	Wait time.Duration `yaml:"wait"`
}

type TelegramConfig struct {
	Token          string        `yaml:"token"` // empty = notifications disabled
	AdminChatIDs   []int64       `yaml:"admin_chat_ids"`
	DigestInterval time.Duration `yaml:"digest_interval"` // 0 = no periodic digest
}

// DashboardConfig holds the thresholds behind the admin alerts.
type DashboardConfig struct {
	LowVoucherStock int64 `yaml:"low_voucher_stock"` // alert below this many unused vouchers
	BusySessions    int64 `yaml:"busy_sessions"`     // alert above this many active sessions
}

type SettingsConfig struct {
	Path     string         `yaml:"path"` // sqlite file
	Defaults model.Settings `yaml:"defaults"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Payment   PaymentConfig   `yaml:"payment"`
	Voucher   VoucherConfig   `yaml:"voucher"`
	Quota     QuotaConfig     `yaml:"quota"`
	Lock      LockConfig      `yaml:"lock"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Settings  SettingsConfig  `yaml:"settings"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Workers   int             `yaml:"workers"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, overlays secrets from the environment
// (and a .env file next to the config, if present), then applies defaults.
func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}

	envFile := filepath.Join(filepath.Dir(path), ".env")
	env, err := godotenv.Read(envFile)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", envFile, err)
	}
	applyEnv(cfg, func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return env[key]
	})

	cfg.Runtime.Dev = dev
	cfg.Runtime.ConfigPath = path
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML and applies defaults without validating.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 15 * time.Second
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 12 * time.Hour
	}

	if cfg.Payment.Provider == "" {
		cfg.Payment.Provider = "mpesa"
	}
	if cfg.Payment.Currency == "" {
		cfg.Payment.Currency = model.DefaultCurrency
	}
	if cfg.Payment.PendingTimeout <= 0 {
		cfg.Payment.PendingTimeout = 5 * time.Minute
	}
	if cfg.Payment.ProviderTimeout <= 0 {
		cfg.Payment.ProviderTimeout = 15 * time.Second
	}
	if cfg.Payment.ReclaimInterval <= 0 {
		cfg.Payment.ReclaimInterval = time.Minute
	}
	if cfg.Payment.MPesa.Environment == "" {
		cfg.Payment.MPesa.Environment = "sandbox"
	}
	if cfg.Payment.MPesa.BaseURL == "" {
		cfg.Payment.MPesa.BaseURL = "https://sandbox.safaricom.co.ke"
		if cfg.Payment.MPesa.Environment == "production" {
			cfg.Payment.MPesa.BaseURL = "https://api.safaricom.co.ke"
		}
	}
	if cfg.Payment.MPesa.TransactionType == "" {
		cfg.Payment.MPesa.TransactionType = "CustomerPayBillOnline"
	}
	if cfg.Payment.MPesa.RequestsPerSecond <= 0 {
		cfg.Payment.MPesa.RequestsPerSecond = 5
	}

	if cfg.Voucher.MaxBatch <= 0 {
		cfg.Voucher.MaxBatch = 500
	}
	if cfg.Voucher.MaxExpiryDays <= 0 {
		cfg.Voucher.MaxExpiryDays = 365
	}
	if cfg.Voucher.PageSize <= 0 {
		cfg.Voucher.PageSize = 100
	}
	if cfg.Voucher.RedeemAttempts <= 0 {
		cfg.Voucher.RedeemAttempts = 10
	}
	if cfg.Voucher.RedeemWindow <= 0 {
		cfg.Voucher.RedeemWindow = 10 * time.Minute
	}
	if cfg.Dashboard.LowVoucherStock <= 0 {
		cfg.Dashboard.LowVoucherStock = 10
	}
	if cfg.Dashboard.BusySessions <= 0 {
		cfg.Dashboard.BusySessions = 20
	}

	if cfg.Quota.SweepInterval <= 0 {
		cfg.Quota.SweepInterval = 15 * time.Second
	}
	if cfg.Quota.PageSize <= 0 {
		cfg.Quota.PageSize = 200
	}
	if cfg.Lock.TTL <= 0 {
		cfg.Lock.TTL = 10 * time.Second
	}
	if cfg.Lock.Wait <= 0 {
		cfg.Lock.Wait = 3 * time.Second
	}
	if cfg.Settings.Path == "" {
		cfg.Settings.Path = "bytebill-settings.db"
	}
	if cfg.Settings.Defaults.CompanyName == "" {
		cfg.Settings.Defaults = model.DefaultSettings()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
}

// Validate performs minimal validation.
func (cfg *Config) Validate() error {
	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.URL == "" {
			return errors.New("database.url is required")
		}
	case "memory":
		if !cfg.Runtime.Dev {
			return errors.New("database.driver=memory is only allowed with -dev")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", cfg.Database.Driver)
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if cfg.Auth.ControllerToken == "" {
		return errors.New("auth.controller_token is required")
	}
	switch cfg.Payment.Provider {
	case "mpesa":
		m := cfg.Payment.MPesa
		if m.ConsumerKey == "" || m.ConsumerSecret == "" || m.ShortCode == "" || m.PassKey == "" || m.CallbackURL == "" {
			return errors.New("payment.mpesa requires consumer_key, consumer_secret, short_code, pass_key and callback_url")
		}
	case "noop":
		if !cfg.Runtime.Dev {
			return errors.New("payment.provider=noop is only allowed with -dev")
		}
	default:
		return fmt.Errorf("unknown payment.provider %q", cfg.Payment.Provider)
	}
	// Reservation must outlive the provider call it guards.
	if cfg.Lock.TTL < cfg.Payment.ProviderTimeout {
		cfg.Lock.TTL = cfg.Payment.ProviderTimeout + time.Second
	}
	return nil
}

// applyEnv overlays secrets; env wins over YAML so secrets can stay out of the file.
func applyEnv(cfg *Config, get func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.Trim(get(key), "'\""); v != "" {
			*dst = v
		}
	}
	set(&cfg.Database.URL, "BYTEBILL_DATABASE_URL")
	set(&cfg.Redis.URL, "BYTEBILL_REDIS_URL")
	set(&cfg.Redis.Password, "BYTEBILL_REDIS_PASSWORD")
	set(&cfg.Auth.JWTSecret, "BYTEBILL_JWT_SECRET")
	set(&cfg.Auth.ControllerToken, "BYTEBILL_CONTROLLER_TOKEN")
	set(&cfg.Payment.MPesa.ConsumerKey, "BYTEBILL_MPESA_CONSUMER_KEY")
	set(&cfg.Payment.MPesa.ConsumerSecret, "BYTEBILL_MPESA_CONSUMER_SECRET")
	set(&cfg.Payment.MPesa.ShortCode, "BYTEBILL_MPESA_SHORT_CODE")
	set(&cfg.Payment.MPesa.PassKey, "BYTEBILL_MPESA_PASS_KEY")
	set(&cfg.Payment.MPesa.CallbackURL, "BYTEBILL_MPESA_CALLBACK_URL")
	set(&cfg.Payment.MPesa.CallbackToken, "BYTEBILL_MPESA_CALLBACK_TOKEN")
	set(&cfg.Telegram.Token, "BYTEBILL_TELEGRAM_TOKEN")
	if v := get("BYTEBILL_TELEGRAM_ADMIN_CHAT_IDS"); v != "" {
		var ids []int64
		for _, part := range strings.Split(v, ",") {
			if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 {
			cfg.Telegram.AdminChatIDs = ids
		}
	}
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
