package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EnvSandbox    = "sandbox"
	EnvProduction = "production"

	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"
)

// プロバイダごとの設定（ECOCASH_ / PAYNOW_ / ZB_ で始まる環境変数）
type ProviderConfig struct {
	BaseURL              string  // APIのベースURL
	MerchantID           string  // マーチャントID（Paynowでは integration id）
	MerchantKey          string  // マーチャントキー
	MerchantCode         string  // 表示用マーチャントコード（空なら DefaultMerchantCode）
	WebhookSecret        string  // webhook署名の共有シークレット
	WebhookAllowUnsigned bool    // シークレット未設定のときだけ未署名を受け付ける
	RatePerSec           float64 // 外向き呼び出しの上限（0なら無制限）
}

// 資格情報が揃っているか
func (p ProviderConfig) Configured() bool {
	return p.BaseURL != "" && p.MerchantID != "" && p.MerchantKey != ""
}

// Configはアプリ全体の設定
type Config struct {
	Port     string // サーバーポート（8080）
	AppEnv   string // sandbox / production
	LogLevel string // debug / info / warn / error

	StoreDriver string // postgres / mongo / memory
	DatabaseURL string // 空なら POSTGRES_* から組み立てる

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     int
	PostgresSSLMode  string

	MongoURI string
	MongoDB  string

	RedisAddr     string // 空ならレート制限はプロセス内
	RedisPassword string
	RedisDB       int

	JWTSecret string // 管理APIのJWT検証用
	APIToken  string // 空なら認可なし（open）

	RateLimitPayments int           // 決済開始の上限（window内）
	RateLimitAI       int           // 文章生成の上限（window内）
	RateLimitWindow   time.Duration // 固定ウィンドウの長さ

	DeliveryFee         decimal.Decimal
	CallbackBaseURL     string // webhookの戻り先
	DefaultMerchantCode string
	ProviderTimeout     time.Duration
	StrictFulfillment   bool // trueなら配送ステータスは前進のみ

	TextGenURL    string
	TextGenAPIKey string

	CORSOrigins []string

	EcoCash ProviderConfig
	Paynow  ProviderConfig
	ZB      ProviderConfig
}

func (c Config) IsSandbox() bool {
	return c.AppEnv == EnvSandbox
}

// Loadは環境変数
func Load() (Config, error) {
	pgPort, err := atoiDefault("POSTGRES_PORT", 5432)
	if err != nil {
		return Config{}, err
	}
	redisDB, err := atoiDefault("REDIS_DB", 0)
	if err != nil {
		return Config{}, err
	}
	rlPayments, err := atoiDefault("RATE_LIMIT_PAYMENTS", 10)
	if err != nil {
		return Config{}, err
	}
	rlAI, err := atoiDefault("RATE_LIMIT_AI", 20)
	if err != nil {
		return Config{}, err
	}
	rlWindow, err := durationDefault("RATE_LIMIT_WINDOW", time.Minute)
	if err != nil {
		return Config{}, err
	}
	timeout, err := durationDefault("PROVIDER_TIMEOUT", 15*time.Second)
	if err != nil {
		return Config{}, err
	}
	fee, err := decimalDefault("DELIVERY_FEE", decimal.NewFromInt(5))
	if err != nil {
		return Config{}, err
	}
	strict, err := boolDefault("STRICT_FULFILLMENT", false)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:     getenv("PORT", "8080"),
		AppEnv:   getenv("APP_ENV", EnvSandbox),
		LogLevel: getenv("LOG_LEVEL", "info"),

		StoreDriver: getenv("STORE_DRIVER", StoreDriverPostgres),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getenv("POSTGRES_DB", "storefront"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresPort:     pgPort,
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		MongoURI: getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  getenv("MONGO_DB", "storefront"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		JWTSecret: os.Getenv("JWT_SECRET"),
		APIToken:  os.Getenv("API_TOKEN"),

		RateLimitPayments: rlPayments,
		RateLimitAI:       rlAI,
		RateLimitWindow:   rlWindow,

		DeliveryFee:         fee,
		CallbackBaseURL:     strings.TrimRight(os.Getenv("CALLBACK_BASE_URL"), "/"),
		DefaultMerchantCode: os.Getenv("DEFAULT_MERCHANT_CODE"),
		ProviderTimeout:     timeout,
		StrictFulfillment:   strict,

		TextGenURL:    os.Getenv("TEXTGEN_URL"),
		TextGenAPIKey: os.Getenv("TEXTGEN_API_KEY"),

		CORSOrigins: splitList(os.Getenv("CORS_ORIGINS")),
	}

	if cfg.EcoCash, err = loadProvider("ECOCASH"); err != nil {
		return Config{}, err
	}
	if cfg.Paynow, err = loadProvider("PAYNOW"); err != nil {
		return Config{}, err
	}
	if cfg.ZB, err = loadProvider("ZB"); err != nil {
		return Config{}, err
	}

	//必須チェック
	if cfg.AppEnv != EnvSandbox && cfg.AppEnv != EnvProduction {
		return Config{}, fmt.Errorf("APP_ENV must be %q or %q", EnvSandbox, EnvProduction)
	}
	switch cfg.StoreDriver {
	case StoreDriverPostgres, StoreDriverMongo, StoreDriverMemory:
	default:
		return Config{}, fmt.Errorf("STORE_DRIVER must be postgres, mongo or memory")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.RateLimitPayments <= 0 || cfg.RateLimitAI <= 0 {
		return Config{}, fmt.Errorf("RATE_LIMIT_PAYMENTS and RATE_LIMIT_AI must be positive")
	}
	if cfg.RateLimitWindow <= 0 {
		return Config{}, fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	if cfg.DeliveryFee.IsNegative() {
		return Config{}, fmt.Errorf("DELIVERY_FEE must not be negative")
	}
	if cfg.AppEnv == EnvProduction && cfg.CallbackBaseURL == "" {
		return Config{}, fmt.Errorf("CALLBACK_BASE_URL is required in production")
	}

	return cfg, nil
}

func loadProvider(prefix string) (ProviderConfig, error) {
	allowUnsigned, err := boolDefault(prefix+"_WEBHOOK_ALLOW_UNSIGNED", false)
	if err != nil {
		return ProviderConfig{}, err
	}
	rps, err := floatDefault(prefix+"_RATE_PER_SEC", 0)
	if err != nil {
		return ProviderConfig{}, err
	}
	return ProviderConfig{
		BaseURL:              strings.TrimRight(os.Getenv(prefix+"_BASE_URL"), "/"),
		MerchantID:           os.Getenv(prefix + "_MERCHANT_ID"),
		MerchantKey:          os.Getenv(prefix + "_MERCHANT_KEY"),
		MerchantCode:         os.Getenv(prefix + "_MERCHANT_CODE"),
		WebhookSecret:        os.Getenv(prefix + "_WEBHOOK_SECRET"),
		WebhookAllowUnsigned: allowUnsigned,
		RatePerSec:           rps,
	}, nil
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func floatDefault(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return f, nil
}

func boolDefault(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be true/false: %w", key, err)
	}
	return b, nil
}

// 5m / 30s のような Go の duration 表記
func durationDefault(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration (e.g. 1m): %w", key, err)
	}
	return d, nil
}

func decimalDefault(key string, def decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be decimal: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
