package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Wallet     WalletConfig     `mapstructure:"wallet"`
	Chain      ChainConfig      `mapstructure:"chain"`
	Polymarket PolymarketConfig `mapstructure:"polymarket"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Agent      AgentConfig      `mapstructure:"agent"`
	Chat       ChatConfig       `mapstructure:"chat"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port            string  `mapstructure:"port"`
	RateLimitQPS    float64 `mapstructure:"rate_limit_qps"`
	RateLimitBurst  int     `mapstructure:"rate_limit_burst"`
	ShutdownTimeout int     `mapstructure:"shutdown_timeout_seconds"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AuthConfig struct {
	AdminKey string `mapstructure:"admin_key"`
}

type WalletConfig struct {
	// Raw secret key, validated by keyguard before use. Never log this.
	PrivateKey string `mapstructure:"private_key"`
}

type ChainConfig struct {
	RPCURL         string `mapstructure:"rpc_url"`
	ChainID        int64  `mapstructure:"chain_id"`
	TimeoutMs      int    `mapstructure:"timeout_ms"`
	Retries        int    `mapstructure:"retries"`
	USDCAddress    string `mapstructure:"usdc_address"`
	ExchangeNonceS int    `mapstructure:"exchange_nonce_cache_seconds"`
}

type PolymarketConfig struct {
	// L2 API credentials handed to the trading tools
	ApiKey        string `mapstructure:"api_key"`
	ApiSecret     string `mapstructure:"api_secret"`
	ApiPassphrase string `mapstructure:"api_passphrase"`

	GammaURL     string `mapstructure:"gamma_url"`
	MarketWSURL  string `mapstructure:"market_ws_url"`
	LiveBook     bool   `mapstructure:"live_book"`
	HTTPTimeoutS int    `mapstructure:"http_timeout_seconds"`
}

type LLMConfig struct {
	APIKey       string  `mapstructure:"api_key"`
	BaseURL      string  `mapstructure:"base_url"`
	Model        string  `mapstructure:"model"`
	Temperature  float32 `mapstructure:"temperature"`
	SystemPrompt string  `mapstructure:"system_prompt"`
}

type AgentConfig struct {
	// MaxSteps bounds sequential model/tool rounds per request.
	MaxSteps int `mapstructure:"max_steps"`
	// ToolTimeoutMs bounds a single tool invocation.
	ToolTimeoutMs int `mapstructure:"tool_timeout_ms"`
}

type ChatConfig struct {
	// ClassifyBadRequest answers malformed bodies with 400 instead of the generic 500.
	ClassifyBadRequest bool   `mapstructure:"classify_bad_request"`
	StreamFormat       string `mapstructure:"stream_format"` // data | sse
	MaxMessages        int    `mapstructure:"max_messages"`
}

type RiskConfig struct {
	MaxSlippage         float64  `mapstructure:"max_slippage"`          // e.g. 0.05 (5%)
	MaxOrderValue       float64  `mapstructure:"max_order_value"`       // e.g. 100 USDC
	MaxDailyValue       float64  `mapstructure:"max_daily_value"`       // e.g. 500 USDC
	MaxDailyOrders      int      `mapstructure:"max_daily_orders"`      // e.g. 50 orders
	BlacklistedTokenIDs []string `mapstructure:"blacklisted_token_ids"` // e.g. ["123", "456"]
	StaleBookSeconds    int      `mapstructure:"stale_book_seconds"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AuditConfig struct {
	Dir           string `mapstructure:"dir"`
	BufferSize    int    `mapstructure:"buffer_size"`
	RetentionDays int    `mapstructure:"retention_days"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// envAliases keeps the bare variable names the service has always been deployed with.
var envAliases = map[string]string{
	"wallet.private_key":        "WALLET_PRIVATE_KEY",
	"chain.rpc_url":             "RPC_PROVIDER_URL",
	"polymarket.api_key":        "POLYMARKET_API_KEY",
	"polymarket.api_secret":     "POLYMARKET_SECRET",
	"polymarket.api_passphrase": "POLYMARKET_PASSPHRASE",
	"llm.api_key":               "OPENAI_API_KEY",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// Environment variables support
	// e.g. POLYCHAT_AGENT_MAX_STEPS
	v.SetEnvPrefix("polychat")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		if err := v.BindEnv(key, "POLYCHAT_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, err
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.rate_limit_qps", 2.0)
	v.SetDefault("server.rate_limit_burst", 5)
	v.SetDefault("server.shutdown_timeout_seconds", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("auth.admin_key", "")
	v.SetDefault("chain.rpc_url", "https://polygon-rpc.com")
	v.SetDefault("chain.chain_id", 137)
	v.SetDefault("chain.timeout_ms", 5000)
	v.SetDefault("chain.retries", 1)
	v.SetDefault("chain.usdc_address", "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")
	v.SetDefault("chain.exchange_nonce_cache_seconds", 60)
	v.SetDefault("polymarket.gamma_url", "https://gamma-api.polymarket.com")
	v.SetDefault("polymarket.market_ws_url", "wss://ws-subscriptions-clob.polymarket.com/ws/market")
	v.SetDefault("polymarket.live_book", true)
	v.SetDefault("polymarket.http_timeout_seconds", 10)
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.system_prompt", "")
	v.SetDefault("agent.max_steps", 5)
	v.SetDefault("agent.tool_timeout_ms", 15000)
	v.SetDefault("chat.classify_bad_request", false)
	v.SetDefault("chat.stream_format", "data")
	v.SetDefault("chat.max_messages", 200)
	v.SetDefault("risk.max_slippage", 0.05)
	v.SetDefault("risk.max_order_value", 100.0)
	v.SetDefault("risk.max_daily_value", 500.0)
	v.SetDefault("risk.max_daily_orders", 50)
	v.SetDefault("risk.stale_book_seconds", 10)
	v.SetDefault("audit.dir", "./logs")
	v.SetDefault("audit.buffer_size", 1000)
	v.SetDefault("audit.retention_days", 30)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks settings that would otherwise fail deep inside a request.
// The wallet key is checked separately by keyguard.
func (c *Config) Validate() error {
	if c.Agent.MaxSteps < 1 {
		return fmt.Errorf("agent.max_steps must be >= 1, got %d", c.Agent.MaxSteps)
	}
	switch c.Chat.StreamFormat {
	case "data", "sse":
	default:
		return fmt.Errorf("chat.stream_format must be data or sse, got %q", c.Chat.StreamFormat)
	}
	if c.Chain.ChainID <= 0 {
		return fmt.Errorf("chain.chain_id must be positive")
	}
	return nil
}
