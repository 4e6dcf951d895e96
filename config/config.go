package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration loaded from environment
// variables with sensible defaults. It is loaded once at process start
// and never re-read.
type Config struct {
	// Broker connection
	BrokerWSURL          string
	SubscribeSymbols     string
	WSReconnectBaseDelay float64 // seconds
	WSReconnectMaxDelay  float64 // seconds
	WSHeartbeatInterval  int     // seconds

	// Candle / timeframe
	CandleIntervalSeconds float64
	AvailableTimeframes   string // comma-separated seconds, e.g. "300,900,1800,3600"
	DefaultTimeframe      int
	MaxCandlesBuffer      int

	// Risk / trade defaults
	RRDefault        float64
	MaxTradeDuration int // minutes

	// Signal engine
	SignalMinConfirmations     int
	SignalRRRatio              float64
	SignalMinRR                float64
	SignalRSIOversold          float64
	SignalRSIOverbought        float64
	SignalMinSLPct             float64
	SignalCooldownCandles      int
	SignalSRTolerancePct       float64
	SignalSRMaxLevels          int
	SignalBreakoutCandleMult   float64
	SignalConsolidationCandles int
	SignalConsolidationATRMult float64

	// Indicator periods
	EMAFastPeriod int
	EMASlowPeriod int
	RSIPeriod     int

	// Event bus
	EventBusMaxQueueSize int

	// Infrastructure
	RedisAddr      string
	RedisPassword  string
	SQLitePath     string
	MetricsAddr    string
	PersistBackend string // "redis", "sqlite", or "none"

	// Notifications
	NotifierBackend  string // "log", "webhook", or "telegram"
	WebhookURL       string
	TelegramBotToken string
	TelegramChatID   string
}

// Load reads configuration from environment variables with the defaults
// from the specification's configuration table.
func Load() *Config {
	return &Config{
		BrokerWSURL:          getEnv("BROKER_WS_URL", "wss://broker.example.com/feed"),
		SubscribeSymbols:     getEnv("SUBSCRIBE_SYMBOLS", "R_100"),
		WSReconnectBaseDelay: getEnvFloat("WS_RECONNECT_BASE_DELAY", 1.0),
		WSReconnectMaxDelay:  getEnvFloat("WS_RECONNECT_MAX_DELAY", 60.0),
		WSHeartbeatInterval:  getEnvInt("WS_HEARTBEAT_INTERVAL", 30),

		CandleIntervalSeconds: getEnvFloat("CANDLE_INTERVAL_SECONDS", 5),
		AvailableTimeframes:   getEnv("AVAILABLE_TIMEFRAMES", "300,900,1800,3600"),
		DefaultTimeframe:      getEnvInt("DEFAULT_TIMEFRAME", 300),
		MaxCandlesBuffer:      getEnvInt("MAX_CANDLES_BUFFER", 200),

		RRDefault:        getEnvFloat("RR_DEFAULT", 2.0),
		MaxTradeDuration: getEnvInt("MAX_TRADE_DURATION", 30),

		SignalMinConfirmations:     getEnvInt("SIGNAL_MIN_CONFIRMATIONS", 2),
		SignalRRRatio:              getEnvFloat("SIGNAL_RR_RATIO", 2.0),
		SignalMinRR:                getEnvFloat("SIGNAL_MIN_RR", 1.0),
		SignalRSIOversold:          getEnvFloat("SIGNAL_RSI_OVERSOLD", 35),
		SignalRSIOverbought:        getEnvFloat("SIGNAL_RSI_OVERBOUGHT", 65),
		SignalMinSLPct:             getEnvFloat("SIGNAL_MIN_SL_PCT", 0.0002),
		SignalCooldownCandles:      getEnvInt("SIGNAL_COOLDOWN_CANDLES", 3),
		SignalSRTolerancePct:       getEnvFloat("SIGNAL_SR_TOLERANCE_PCT", 0.0015),
		SignalSRMaxLevels:          getEnvInt("SIGNAL_SR_MAX_LEVELS", 10),
		SignalBreakoutCandleMult:   getEnvFloat("SIGNAL_BREAKOUT_CANDLE_MULT", 1.2),
		SignalConsolidationCandles: getEnvInt("SIGNAL_CONSOLIDATION_CANDLES", 10),
		SignalConsolidationATRMult: getEnvFloat("SIGNAL_CONSOLIDATION_ATR_MULT", 2.0),

		EMAFastPeriod: getEnvInt("EMA_FAST_PERIOD", 9),
		EMASlowPeriod: getEnvInt("EMA_SLOW_PERIOD", 21),
		RSIPeriod:     getEnvInt("RSI_PERIOD", 14),

		EventBusMaxQueueSize: getEnvInt("EVENT_BUS_MAX_QUEUE_SIZE", 10000),

		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		SQLitePath:     getEnv("SQLITE_PATH", "data/engine.db"),
		MetricsAddr:    getEnv("METRICS_ADDR", ":9090"),
		PersistBackend: getEnv("PERSIST_BACKEND", "none"),

		NotifierBackend:  getEnv("NOTIFIER_BACKEND", "log"),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
	}
}

// ParseTimeframes parses AvailableTimeframes into a slice of timeframe
// durations in seconds, in the order given, skipping invalid entries.
func (c *Config) ParseTimeframes() []int {
	parts := strings.Split(c.AvailableTimeframes, ",")
	tfs := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			log.Printf("[config] skipping invalid timeframe value: %q", p)
			continue
		}
		tfs = append(tfs, n)
	}
	return tfs
}

// ParseSymbols splits SubscribeSymbols into individual symbol names.
func (c *Config) ParseSymbols() []string {
	parts := strings.Split(c.SubscribeSymbols, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s: %q, using default", key, v)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid float for %s: %q, using default", key, v)
		return fallback
	}
	return n
}
