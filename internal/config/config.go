package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// 事件输出方式
const (
	EventsSinkNone  = "none"
	EventsSinkRedis = "redis"
	EventsSinkMQTT  = "mqtt"
)

// Config wms-budget 配置
type Config struct {
	HTTP struct {
		Addr string
	}
	DBEnabled bool
	DBMigrate bool
	Database  DatabaseConfig
	Redis     struct {
		Addr     string
		Password string
		DB       int
	}
	Log struct {
		Level  string
		Format string
	}
	EQList       UpstreamConfig
	Partnumber   UpstreamConfig
	ExchangeRate struct {
		UpstreamConfig
		CacheTTL time.Duration
	}
	// UnrestrictedRoles 不受跨 function 检查限制的角色
	UnrestrictedRoles []string
	Events            EventsConfig
}

// UpstreamConfig 上游 HTTP 服务
type UpstreamConfig struct {
	HttpAddress string
}

// EventsConfig 预算事件输出配置
type EventsConfig struct {
	Sink   string // none / redis / mqtt
	Stream string // Redis stream key
	MQTT   MQTTConfig
}

// MQTTConfig MQTT 配置
type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	// DB 不可用时回退到内存存储
	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.DBMigrate = getEnv("DB_MIGRATE", "false") == "true"
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "wms")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "20"), 20)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)
	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	cfg.EQList.HttpAddress = getEnv("EQLIST_HTTP_ADDRESS", "http://localhost:8081")
	cfg.Partnumber.HttpAddress = getEnv("PARTNUMBER_HTTP_ADDRESS", "http://localhost:8082")
	cfg.ExchangeRate.HttpAddress = getEnv("EXCHANGE_RATE_HTTP_ADDRESS", "http://localhost:8083")
	cfg.ExchangeRate.CacheTTL = parseDuration(getEnv("EXCHANGE_RATE_CACHE_TTL", "1h"), time.Hour)

	cfg.UnrestrictedRoles = splitList(getEnv("UNRESTRICTED_ROLES", "LL"))

	cfg.Events.Sink = strings.ToLower(getEnv("EVENTS_SINK", EventsSinkRedis))
	cfg.Events.Stream = getEnv("EVENTS_STREAM", "wms:budget:events")
	cfg.Events.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.Events.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "wms-budget")
	cfg.Events.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.Events.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.Events.MQTT.TopicPrefix = getEnv("MQTT_TOPIC_PREFIX", "wms/budget")
	cfg.Events.MQTT.QoS = byte(parseInt(getEnv("MQTT_QOS", "1"), 1))

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
