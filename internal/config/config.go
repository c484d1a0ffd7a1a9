package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"spotscan/internal/money"
	"spotscan/pkg/crypto"
)

// Config содержит всю конфигурацию приложения.
type Config struct {
	Server      ServerConfig
	Exchange    ExchangeConfig
	Database    DatabaseConfig
	Security    SecurityConfig
	Logging     LoggingConfig
	Indicators  IndicatorConfig
	Trading     TradingConfig
	Selector    SelectorConfig
	Scanner     ScannerConfig
	RateLimit   RateLimitConfig
	Cache       CacheConfig
	Notify      NotifyConfig
	Flags       FeatureFlags
}

// ServerConfig - настройки HTTP сервера дашборда.
type ServerConfig struct {
	Addr      string
	JWTSecret string
}

// ExchangeConfig carries the Binance spot API credentials.
type ExchangeConfig struct {
	APIKey    string
	APISecret string
}

// DatabaseConfig - настройки подключения к БД.
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// DSN builds a lib/pq connection string from the split fields.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode)
}

// SecurityConfig - настройки безопасности.
type SecurityConfig struct {
	EncryptionKey        string // 32 bytes, AES-256-GCM for exchange API secrets
	OperatorPasswordHash string // bcrypt hash gating the dashboard's /control endpoints
}

// LoggingConfig - настройки логирования.
type LoggingConfig struct {
	Level  string
	Format string
}

// IndicatorConfig carries the scanner's indicator periods and thresholds.
type IndicatorConfig struct {
	MM1Period             int
	CenterPeriod          int
	RSIPeriod             int
	VolumeSMAPeriod       int
	RSIMin                float64
	RSIMax                float64
	MADistance2hPercent   float64
	MADistance4hPercent   float64
	VolumeSpikeThreshold  float64
	VolumeSpikeLookback   int
}

// TrailingStopLevel is a (trigger_pct -> stop_pct) pair.
type TrailingStopLevel struct {
	TriggerPct float64
	StopPct    float64
}

// TakeProfitLevel is a (level_pct, size_pct) pair.
type TakeProfitLevel struct {
	LevelPct float64
	SizePct  float64
}

// TradingConfig carries position sizing, risk, and signal thresholds.
type TradingConfig struct {
	MaxConcurrentTrades     int
	MaxPositionSizePercent  float64
	InitialStopLossPercent  float64
	MinOrderSizeUSDT        money.Decimal
	MinVolume24hUSDT        money.Decimal
	SignalThresholdBuy      float64
	SignalPersistThreshold  float64
	TrailingStopLevels      []TrailingStopLevel
	TakeProfitLevels        []TakeProfitLevel
	RiskLoopInterval        time.Duration
	TradingEnabled          bool
	PaperTrading            bool
	EmergencyStop           bool
}

// SelectorConfig carries the symbol-selector's admission thresholds and
// composite-score weights.
type SelectorConfig struct {
	MaxSpreadPercent     float64
	MinVolatility24h     float64
	MaxVolatility24h     float64
	MinLiquidityScore    float64
	VolatilityOptimalMin float64
	VolatilityOptimalMax float64
}

// ScannerConfig carries the continuous/full-scan cadence and batch size;
// the utilization-driven adaptive batching table is fixed in the scanner.
type ScannerConfig struct {
	ScanIntervalSeconds int
	FullScanEveryNCycles int
	ContinuousBatchSize int
	SelectorRefreshEvery time.Duration
}

// RateLimitConfig carries the safety factor applied on top of the
// per-category hard limits.
type RateLimitConfig struct {
	SafetyFactor float64
}

// CacheConfig carries the store's size bound.
type CacheConfig struct {
	MaxEntries int
}

// NotifyConfig carries optional Telegram operator-notification settings.
type NotifyConfig struct {
	TelegramBotToken string
	TelegramChatID   int64
}

// FeatureFlags are coarse on/off switches that don't fit elsewhere.
type FeatureFlags struct{}

// Load loads .env (if present) then the process environment, with
// environment variables always taking precedence over the file, and
// coded defaults as the final fallback.
func Load(dotenvPath string) (*Config, error) {
	if dotenvPath == "" {
		dotenvPath = getEnv("DOTENV_PATH", ".env")
	}
	_ = godotenv.Load(dotenvPath) // missing .env is not fatal; env/defaults still apply

	paperTrading := getEnvAsBool("PAPER_TRADING", true)
	policy := selectPolicy(paperTrading)

	cfg := &Config{
		Server: ServerConfig{
			Addr:      getEnv("DASHBOARD_ADDR", ":8080"),
			JWTSecret: getEnv("DASHBOARD_JWT_SECRET", "change-me-in-production"),
		},
		Exchange: ExchangeConfig{
			APIKey:    getEnv("BINANCE_API_KEY", ""),
			APISecret: getEnv("BINANCE_API_SECRET", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "spotscan"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			EncryptionKey:        getEnv("ENCRYPTION_KEY", ""),
			OperatorPasswordHash: getEnv("DASHBOARD_OPERATOR_PASSWORD_HASH", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Indicators: IndicatorConfig{
			MM1Period:            getEnvAsInt("MM1_PERIOD", 9),
			CenterPeriod:         getEnvAsInt("CENTER_PERIOD", 21),
			RSIPeriod:            getEnvAsInt("RSI_PERIOD", 14),
			VolumeSMAPeriod:      getEnvAsInt("VOLUME_SMA_PERIOD", 20),
			RSIMin:               getEnvAsFloat("RSI_MIN", 35),
			RSIMax:               getEnvAsFloat("RSI_MAX", 73),
			MADistance2hPercent:  getEnvAsFloat("MA_DISTANCE_2H_PERCENT", 0.02),
			MADistance4hPercent:  getEnvAsFloat("MA_DISTANCE_4H_PERCENT", 0.03),
			VolumeSpikeThreshold: getEnvAsFloat("VOLUME_SPIKE_THRESHOLD", 2.0),
			VolumeSpikeLookback:  getEnvAsInt("VOLUME_SPIKE_LOOKBACK", 20),
		},
		Trading: TradingConfig{
			MaxConcurrentTrades:    getEnvAsInt("MAX_CONCURRENT_TRADES", 5),
			MaxPositionSizePercent: getEnvAsFloat("MAX_POSITION_SIZE_PERCENT", 10),
			InitialStopLossPercent: getEnvAsFloat("INITIAL_STOP_LOSS_PERCENT", policy.InitialStopLossPercent()),
			MinOrderSizeUSDT:       getEnvAsDecimal("MIN_ORDER_SIZE_USDT", "10"),
			MinVolume24hUSDT:       getEnvAsDecimal("MIN_VOLUME_24H_USDT", "10000"),
			SignalThresholdBuy:     getEnvAsFloat("SIGNAL_THRESHOLD_BUY", policy.SignalThresholdBuy()),
			SignalPersistThreshold: getEnvAsFloat("SIGNAL_PERSIST_THRESHOLD", 0.3),
			TrailingStopLevels:     defaultTrailingStopLevels(),
			TakeProfitLevels:       defaultTakeProfitLevels(),
			RiskLoopInterval:       getEnvAsDuration("RISK_LOOP_INTERVAL", 30*time.Second),
			TradingEnabled:         getEnvAsBool("TRADING_ENABLED", true),
			PaperTrading:           paperTrading,
			EmergencyStop:          getEnvAsBool("EMERGENCY_STOP", false),
		},
		Selector: SelectorConfig{
			MaxSpreadPercent:     getEnvAsFloat("SELECTOR_MAX_SPREAD_PERCENT", 2.0),
			MinVolatility24h:     getEnvAsFloat("SELECTOR_MIN_VOLATILITY_24H", 0.1),
			MaxVolatility24h:     getEnvAsFloat("SELECTOR_MAX_VOLATILITY_24H", 50.0),
			MinLiquidityScore:    getEnvAsFloat("SELECTOR_MIN_LIQUIDITY_SCORE", 0.1),
			VolatilityOptimalMin: getEnvAsFloat("SELECTOR_VOLATILITY_OPTIMAL_MIN", 2.0),
			VolatilityOptimalMax: getEnvAsFloat("SELECTOR_VOLATILITY_OPTIMAL_MAX", 8.0),
		},
		Scanner: ScannerConfig{
			ScanIntervalSeconds:  getEnvAsInt("SCAN_INTERVAL_SECONDS", 2),
			FullScanEveryNCycles: getEnvAsInt("CRON_FULL_SCAN_EVERY", 10),
			ContinuousBatchSize:  getEnvAsInt("BATCH_CONTINUOUS_SIZE", 10),
			SelectorRefreshEvery: getEnvAsDuration("SELECTOR_REFRESH_EVERY", 60*time.Minute),
		},
		RateLimit: RateLimitConfig{
			SafetyFactor: getEnvAsFloat("RATE_LIMIT_SAFETY_FACTOR", 0.85),
		},
		Cache: CacheConfig{
			MaxEntries: getEnvAsInt("CACHE_MAX_ENTRIES", 10000),
		},
		Notify: NotifyConfig{
			TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			TelegramChatID:   int64(getEnvAsInt("TELEGRAM_CHAT_ID", 0)),
		},
	}

	if cfg.Security.EncryptionKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required for encrypting exchange API secrets")
	}
	if len(cfg.Security.EncryptionKey) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}
	if cfg.Security.OperatorPasswordHash == "" {
		return nil, fmt.Errorf("DASHBOARD_OPERATOR_PASSWORD_HASH is required to gate the dashboard's control endpoints")
	}
	if _, err := crypto.GetHashCost(cfg.Security.OperatorPasswordHash); err != nil {
		return nil, fmt.Errorf("DASHBOARD_OPERATOR_PASSWORD_HASH is not a valid bcrypt hash: %w", err)
	}
	if cfg.RateLimit.SafetyFactor < 0.80 || cfg.RateLimit.SafetyFactor > 0.95 {
		return nil, fmt.Errorf("RATE_LIMIT_SAFETY_FACTOR must be in [0.80, 0.95], got %f", cfg.RateLimit.SafetyFactor)
	}

	// BINANCE_API_SECRET is stored encrypted at rest (see
	// cmd/botctl's encrypt-secret helper); decrypt once here so every
	// downstream exchange.NewBinanceClient call gets the plaintext.
	if cfg.Exchange.APISecret != "" {
		plain, err := crypto.DecryptWithKeyString(cfg.Exchange.APISecret, cfg.Security.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("decrypt BINANCE_API_SECRET: %w", err)
		}
		cfg.Exchange.APISecret = plain
	}

	return cfg, nil
}

func defaultTrailingStopLevels() []TrailingStopLevel {
	return []TrailingStopLevel{
		{TriggerPct: 0.01, StopPct: 0.005},
		{TriggerPct: 0.02, StopPct: 0.01},
		{TriggerPct: 0.04, StopPct: 0.02},
	}
}

func defaultTakeProfitLevels() []TakeProfitLevel {
	return []TakeProfitLevel{
		{LevelPct: 0.03, SizePct: 0.25},
		{LevelPct: 0.06, SizePct: 0.50},
	}
}

// Policy supplies the signal/risk threshold defaults that differ
// between a live account and a paper-trading account generating
// synthetic test load. Selected once at startup from PAPER_TRADING;
// never toggled at runtime, and always overridable by an explicit env
// var.
type Policy interface {
	SignalThresholdBuy() float64
	InitialStopLossPercent() float64
}

type productionPolicy struct{}

func (productionPolicy) SignalThresholdBuy() float64     { return 0.4 }
func (productionPolicy) InitialStopLossPercent() float64 { return 0.02 }

type testPolicy struct{}

func (testPolicy) SignalThresholdBuy() float64     { return 0.1 }
func (testPolicy) InitialStopLossPercent() float64 { return 0.01 }

func selectPolicy(paperTrading bool) Policy {
	if paperTrading {
		return testPolicy{}
	}
	return productionPolicy{}
}

// Вспомогательные функции для чтения переменных окружения.

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(valueStr), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDecimal(key string, defaultValue string) money.Decimal {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}
	d, err := money.FromString(valueStr)
	if err != nil {
		d, _ = money.FromString(defaultValue)
	}
	return d
}
