package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	brokerSSIDENV     = "BROKER_SSID"
	databaseDSN       = "DATABASE_DSN"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
)

// Config ...
type Config struct {
	Broker struct {
		URL  string `yaml:"url"`
		SSID string `yaml:"ssid"`
	} `yaml:"broker"`
	DB       string `yaml:"db_dsn"`
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
	Jaeger struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"jaeger"`
	LogLevel string `yaml:"log_level"`

	// Protocol timeouts/retries
	AuthTimeout        time.Duration `yaml:"auth_timeout"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	HeartbeatInterval  time.Duration `yaml:"heartbeat_interval"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectAttempts  int           `yaml:"reconnect_attempts"`

	// Subscriptions
	SubscribeRetryDelay    time.Duration `yaml:"subscribe_retry_delay"`
	SubscribeRetryAttempts int           `yaml:"subscribe_retry_attempts"`
	ResubscribeDelay       time.Duration `yaml:"resubscribe_delay"`

	// Caches
	CandleHistoryCap int           `yaml:"candle_history_cap"`
	InstrumentSweep  time.Duration `yaml:"instrument_sweep"`
	IngestBatchSize  int           `yaml:"ingest_batch_size"`

	// Engine
	TickInterval    time.Duration `yaml:"tick_interval"`
	LookbackCandles int           `yaml:"lookback_candles"`
	BalanceID       int64         `yaml:"balance_id"`
}

func NewConfig() (*Config, error) {

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		log.Fatalf("Failed to open config file: %v", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := Config{
		LogLevel: getenvDefault("LOG_LEVEL", "info"),

		AuthTimeout:        durationFromEnv("AUTH_TIMEOUT", "10s"),
		RequestTimeout:     durationFromEnv("REQUEST_TIMEOUT", "15s"),
		HeartbeatInterval:  durationFromEnv("HEARTBEAT_INTERVAL", "20s"),
		ReconnectBaseDelay: durationFromEnv("RECONNECT_BASE_DELAY", "2s"),
		ReconnectAttempts:  intFromEnv("RECONNECT_ATTEMPTS", 5),

		SubscribeRetryDelay:    durationFromEnv("SUBSCRIBE_RETRY_DELAY", "3s"),
		SubscribeRetryAttempts: intFromEnv("SUBSCRIBE_RETRY_ATTEMPTS", 3),
		ResubscribeDelay:       durationFromEnv("RESUBSCRIBE_DELAY", "5s"),

		CandleHistoryCap: intFromEnv("CANDLE_HISTORY_CAP", 1000),
		InstrumentSweep:  durationFromEnv("INSTRUMENT_SWEEP", "30s"),
		IngestBatchSize:  intFromEnv("INGEST_BATCH_SIZE", 50),

		TickInterval:    durationFromEnv("TICK_INTERVAL", "1s"),
		LookbackCandles: intFromEnv("LOOKBACK_CANDLES", 100),
	}
	err = decoder.Decode(&config)
	if err != nil {
		log.Fatalf("Failed to decode config file: %v", err)
	}

	ssid := os.Getenv(brokerSSIDENV)
	if ssid != "" {
		config.Broker.SSID = ssid
	}

	dsn := os.Getenv(databaseDSN)
	if dsn != "" {
		config.DB = dsn
	}

	token := os.Getenv(tokenTelegramENV)
	if token != "" {
		config.Telegram.Token = token
	}

	return &config, nil
}

func getenvRequired(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("env %s is required", key))
	}
	return v
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
