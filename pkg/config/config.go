// 文件: pkg/config/config.go
// 服务配置
//
// 优先级: 环境变量 (PRICER_*) > 配置文件 > 默认值
// 启动时先尝试加载当前目录的 .env，不存在不报错
//
// 例: PRICER_KAFKA_BROKERS=10.0.0.1:9092,10.0.0.2:9092
//     PRICER_IV_TOLERANCE=1e-8

package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 报价来源
const (
	SourceNats  = "nats"
	SourceKafka = "kafka"
	SourceNone  = "none" // 只开 HTTP
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	HTTPAddr    string
	QuoteSource string
	NodeID      int64 // 雪花节点 0-1023

	NatsURL      string
	KafkaBrokers []string
	KafkaGroup   string
	MySQLDSN     string // 为空时不落库
	RedisAddr    string // 为空时不缓存

	IVTolerance     float64
	IVMaxIterations int

	BatchSize     int
	FlushInterval time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("quote.source", SourceNats)
	v.SetDefault("node.id", 1)

	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("kafka.brokers", "127.0.0.1:9092")
	v.SetDefault("kafka.group", "option-pricer")
	v.SetDefault("mysql.dsn", "")
	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("iv.tolerance", 1e-6)
	v.SetDefault("iv.max_iterations", 100)

	v.SetDefault("writer.batch_size", 100)
	v.SetDefault("writer.flush_interval", "500ms")
}

// Load 加载配置，path 为空时只读环境变量
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("PRICER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		HTTPAddr:        v.GetString("http.addr"),
		QuoteSource:     strings.ToLower(v.GetString("quote.source")),
		NodeID:          v.GetInt64("node.id"),
		NatsURL:         v.GetString("nats.url"),
		KafkaBrokers:    splitList(v.GetString("kafka.brokers")),
		KafkaGroup:      v.GetString("kafka.group"),
		MySQLDSN:        v.GetString("mysql.dsn"),
		RedisAddr:       v.GetString("redis.addr"),
		IVTolerance:     v.GetFloat64("iv.tolerance"),
		IVMaxIterations: v.GetInt("iv.max_iterations"),
		BatchSize:       v.GetInt("writer.batch_size"),
		FlushInterval:   v.GetDuration("writer.flush_interval"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查配置
func (c *Config) Validate() error {
	switch c.QuoteSource {
	case SourceNats, SourceKafka, SourceNone:
	default:
		return fmt.Errorf("%w: quote source %q", ErrInvalidConfig, c.QuoteSource)
	}
	if c.NodeID < 0 || c.NodeID > 1023 {
		return fmt.Errorf("%w: node id %d out of range", ErrInvalidConfig, c.NodeID)
	}
	if c.QuoteSource == SourceKafka && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("%w: kafka brokers required", ErrInvalidConfig)
	}
	if !(c.IVTolerance > 0) || math.IsInf(c.IVTolerance, 0) || c.IVMaxIterations <= 0 {
		return fmt.Errorf("%w: iv tolerance=%v max_iterations=%d", ErrInvalidConfig, c.IVTolerance, c.IVMaxIterations)
	}
	if c.BatchSize <= 0 || c.FlushInterval <= 0 {
		return fmt.Errorf("%w: batch_size=%d flush_interval=%v", ErrInvalidConfig, c.BatchSize, c.FlushInterval)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
