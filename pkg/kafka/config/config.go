package kafka_config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries broker, producer and consumer tuning for the event pipeline.
type Config struct {
	Brokers []string

	ProducerMaxAttempts  int
	ProducerBatchTimeout time.Duration
	ProducerRequireAcks  int    // -1 all, 0 none, 1 leader
	ProducerCompression  string // none, gzip, snappy, lz4, zstd
	ProducerAsync        bool

	ConsumerStartOffset       int64 // -1 newest, -2 oldest
	ConsumerMinBytes          int
	ConsumerMaxBytes          int
	ConsumerMaxWait           time.Duration
	ConsumerCommitInterval    time.Duration
	ConsumerHeartbeatInterval time.Duration
	ConsumerSessionTimeout    time.Duration
	ConsumerRebalanceTimeout  time.Duration
	ConsumerMaxRetries        int
}

// Load reads the Kafka settings from the environment. The service cannot run
// against a broken broker config, so validation failures panic at startup.
func Load() *Config {
	brokers := strings.Split(getEnvStr(EnvKafkaBrokers, DefaultKafkaBrokers), ",")
	for i, broker := range brokers {
		brokers[i] = strings.TrimSpace(broker)
	}

	cfg := &Config{
		Brokers: brokers,

		ProducerMaxAttempts:  getEnvInt(EnvKafkaProducerMaxAttempts, DefaultProducerMaxAttempts),
		ProducerBatchTimeout: getEnvDuration(EnvKafkaProducerBatchTimeout, DefaultProducerBatchTimeout),
		ProducerRequireAcks:  getEnvInt(EnvKafkaProducerRequireAcks, DefaultProducerRequireAcks),
		ProducerCompression:  getEnvStr(EnvKafkaProducerCompression, DefaultProducerCompression),
		ProducerAsync:        getEnvBool(EnvKafkaProducerAsync, DefaultProducerAsync),

		ConsumerStartOffset:       getEnvInt64(EnvKafkaConsumerStartOffset, DefaultConsumerStartOffset),
		ConsumerMinBytes:          getEnvInt(EnvKafkaConsumerMinBytes, DefaultConsumerMinBytes),
		ConsumerMaxBytes:          getEnvInt(EnvKafkaConsumerMaxBytes, DefaultConsumerMaxBytes),
		ConsumerMaxWait:           getEnvDuration(EnvKafkaConsumerMaxWait, DefaultConsumerMaxWait),
		ConsumerCommitInterval:    getEnvDuration(EnvKafkaConsumerCommitInterval, DefaultConsumerCommitInterval),
		ConsumerHeartbeatInterval: getEnvDuration(EnvKafkaConsumerHeartbeatInterval, DefaultConsumerHeartbeatInterval),
		ConsumerSessionTimeout:    getEnvDuration(EnvKafkaConsumerSessionTimeout, DefaultConsumerSessionTimeout),
		ConsumerRebalanceTimeout:  getEnvDuration(EnvKafkaConsumerRebalanceTimeout, DefaultConsumerRebalanceTimeout),
		ConsumerMaxRetries:        getEnvInt(EnvKafkaConsumerMaxRetries, DefaultConsumerMaxRetries),
	}

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Kafka configuration validation failed: %v", err))
	}

	return cfg
}

func (cfg *Config) Validate() error {
	var problems []string
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(cfg.Brokers) == 0 {
		fail("at least one broker is required")
	}
	for i, broker := range cfg.Brokers {
		if broker == "" {
			fail("broker %d is empty", i)
		}
	}

	if cfg.ProducerMaxAttempts <= 0 {
		fail("producer max attempts must be positive, got %d", cfg.ProducerMaxAttempts)
	}
	switch cfg.ProducerCompression {
	case "none", "gzip", "snappy", "lz4", "zstd":
	default:
		fail("producer compression must be one of none, gzip, snappy, lz4 or zstd, got %q", cfg.ProducerCompression)
	}
	if cfg.ProducerRequireAcks < -1 || cfg.ProducerRequireAcks > 1 {
		fail("producer required acks must be -1, 0 or 1, got %d", cfg.ProducerRequireAcks)
	}

	if cfg.ConsumerStartOffset < -2 {
		fail("consumer start offset must be -1 (newest), -2 (oldest) or an absolute offset, got %d", cfg.ConsumerStartOffset)
	}
	if cfg.ConsumerMinBytes <= 0 {
		fail("consumer min bytes must be positive, got %d", cfg.ConsumerMinBytes)
	}
	if cfg.ConsumerMaxBytes < cfg.ConsumerMinBytes {
		fail("consumer max bytes must be at least min bytes, got %d", cfg.ConsumerMaxBytes)
	}
	if cfg.ConsumerMaxRetries < 0 {
		fail("consumer max retries cannot be negative, got %d", cfg.ConsumerMaxRetries)
	}

	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"producer batch timeout", cfg.ProducerBatchTimeout},
		{"consumer max wait", cfg.ConsumerMaxWait},
		{"consumer commit interval", cfg.ConsumerCommitInterval},
		{"consumer heartbeat interval", cfg.ConsumerHeartbeatInterval},
		{"consumer session timeout", cfg.ConsumerSessionTimeout},
		{"consumer rebalance timeout", cfg.ConsumerRebalanceTimeout},
	} {
		if d.value <= 0 {
			fail("%s must be positive, got %s", d.name, d.value)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid kafka configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnvStr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if int64Value, err := strconv.ParseInt(value, 10, 64); err == nil {
			return int64Value
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
