package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Etherscan EtherscanConfig `mapstructure:"etherscan"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RPC       RPCConfig       `mapstructure:"rpc"`
	App       AppConfig       `mapstructure:"app"`
}

type TelegramConfig struct {
	BotToken           string  `mapstructure:"bot_token"`
	MessagesPerSecond  float64 `mapstructure:"messages_per_second"`
	UpdatesTimeoutSecs int     `mapstructure:"updates_timeout"`
}

type EtherscanConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	BaseURL           string  `mapstructure:"base_url"`
	ChainID           int64   `mapstructure:"chain_id"`
	RequestTimeout    int     `mapstructure:"request_timeout"` // seconds
	MaxRetries        int     `mapstructure:"max_retries"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// RPCConfig - optional JSON-RPC node used for the chain height instead of Etherscan
type RPCConfig struct {
	URL string `mapstructure:"url"`
}

type AppConfig struct {
	TxURLPrefix string `mapstructure:"tx_url_prefix"`
	LogDir      string `mapstructure:"log_dir"`
	LogLevel    string `mapstructure:"log_level"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// LoadConfig merges, lowest priority first:
// 1. defaults
// 2. config.yaml in the working directory
// 3. .env file
// 4. environment variables
// 5. command line flags registered with RegisterFlags
func LoadConfig(flags *pflag.FlagSet) (*Config, error) {
	godotenv.Load(".env")

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setupEnvAliases(v)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.App.TxURLPrefix = strings.TrimSpace(cfg.App.TxURLPrefix)
	cfg.Etherscan.BaseURL = strings.TrimRight(cfg.Etherscan.BaseURL, "/")

	return &cfg, nil
}

// setupEnvAliases keeps the short variable names used in deployments
// (TELEGRAM_TOKEN -> telegram.bot_token and so on).
func setupEnvAliases(v *viper.Viper) {
	v.BindEnv("telegram.bot_token", "TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN")
	v.BindEnv("telegram.messages_per_second", "TELEGRAM_MESSAGES_PER_SECOND")
	v.BindEnv("telegram.updates_timeout", "TELEGRAM_UPDATES_TIMEOUT")

	v.BindEnv("etherscan.api_key", "ETHERSCAN_API_KEY")
	v.BindEnv("etherscan.base_url", "ETHERSCAN_BASE_URL")
	v.BindEnv("etherscan.chain_id", "ETHERSCAN_CHAIN_ID")
	v.BindEnv("etherscan.request_timeout", "ETHERSCAN_REQUEST_TIMEOUT")
	v.BindEnv("etherscan.max_retries", "ETHERSCAN_MAX_RETRIES")
	v.BindEnv("etherscan.requests_per_second", "ETHERSCAN_REQUESTS_PER_SECOND")

	v.BindEnv("redis.url", "REDIS_URL")
	v.BindEnv("rpc.url", "RPC_URL")

	v.BindEnv("app.tx_url_prefix", "TX_URL_PREFIX")
	v.BindEnv("app.log_dir", "LOG_DIR")
	v.BindEnv("app.log_level", "LOG_LEVEL")
	v.BindEnv("app.metrics_addr", "METRICS_ADDR")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.messages_per_second", 20.0) // Telegram allows ~30 msg/s per bot
	v.SetDefault("telegram.updates_timeout", 60)

	v.SetDefault("etherscan.api_key", "")
	v.SetDefault("etherscan.base_url", "https://api.etherscan.io/v2/api")
	v.SetDefault("etherscan.chain_id", 42161) // Arbitrum One
	v.SetDefault("etherscan.request_timeout", 30)
	v.SetDefault("etherscan.max_retries", 3)
	v.SetDefault("etherscan.requests_per_second", 4.0) // free tier is 5 req/s

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("rpc.url", "")

	v.SetDefault("app.tx_url_prefix", "https://arbiscan.io/tx/")
	v.SetDefault("app.log_dir", "logs")
	v.SetDefault("app.log_level", "debug")
	v.SetDefault("app.metrics_addr", "")
}

// RegisterFlags adds the config flags to a cobra/pflag flag set.
// Flag names match the viper keys so BindPFlags maps them directly.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("telegram.bot_token", "", "Telegram bot token (env: TELEGRAM_TOKEN)")
	fs.String("etherscan.api_key", "", "Etherscan API key (env: ETHERSCAN_API_KEY)")
	fs.String("etherscan.base_url", "https://api.etherscan.io/v2/api", "Etherscan API endpoint (env: ETHERSCAN_BASE_URL)")
	fs.Int64("etherscan.chain_id", 42161, "Chain id passed to the Etherscan v2 API (env: ETHERSCAN_CHAIN_ID)")
	fs.String("redis.url", "redis://localhost:6379/0", "Redis connection string (env: REDIS_URL)")
	fs.String("rpc.url", "", "Optional JSON-RPC endpoint for the chain height (env: RPC_URL)")
	fs.String("app.tx_url_prefix", "https://arbiscan.io/tx/", "Transaction link prefix used in notifications (env: TX_URL_PREFIX)")
	fs.String("app.log_dir", "logs", "Directory for app.log (env: LOG_DIR)")
	fs.String("app.log_level", "debug", "File log level (env: LOG_LEVEL)")
	fs.String("app.metrics_addr", "", "Listen address for /metrics and /healthz, empty disables (env: METRICS_ADDR)")
}

// ValidateBot checks the settings the bot and scan commands cannot run without.
func (c *Config) ValidateBot() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required (env: TELEGRAM_TOKEN)")
	}
	if err := c.ValidateExplorer(); err != nil {
		return err
	}
	return c.ValidateStore()
}

func (c *Config) ValidateExplorer() error {
	if c.Etherscan.APIKey == "" {
		return fmt.Errorf("etherscan.api_key is required (env: ETHERSCAN_API_KEY)")
	}
	if c.Etherscan.BaseURL == "" {
		return fmt.Errorf("etherscan.base_url must not be empty")
	}
	if !strings.HasPrefix(c.App.TxURLPrefix, "http") {
		return fmt.Errorf("app.tx_url_prefix must be an http(s) URL, got %q", c.App.TxURLPrefix)
	}
	return nil
}

func (c *Config) ValidateStore() error {
	if c.Redis.URL == "" {
		return fmt.Errorf("redis.url is required (env: REDIS_URL)")
	}
	return nil
}
