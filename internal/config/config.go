package config

import (
	"time"

	pkgconfig "github.com/weiawesome/wes-io-live/liveroom/pkg/config"
	"github.com/weiawesome/wes-io-live/liveroom/pkg/pubsub"
)

type Config struct {
	Server      ServerConfig
	WebSocket   WebSocketConfig
	Auth        AuthConfig
	Room        RoomConfig
	PubSub      pubsub.Config
	Kafka       KafkaConfig
	Profile     ProfileConfig
	Coordinator CoordinatorConfig
	Log         LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

type AuthConfig struct {
	PublicKeyPath string `mapstructure:"public_key_path"`
	Issuer        string
}

type RoomConfig struct {
	HTTPAddress string `mapstructure:"http_address"`
	Timeout     time.Duration
}

// KafkaConfig configures the session event stream. Disabled means events are
// not recorded.
type KafkaConfig struct {
	Enabled    bool
	Brokers    string
	Topic      string
	Partitions int
}

// ProfileConfig points at the Redis holding user mute preferences.
type ProfileConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string `mapstructure:"key_prefix"`
}

type CoordinatorConfig struct {
	PKResultDelay time.Duration `mapstructure:"pk_result_delay"`
	SeatNo        int           `mapstructure:"seat_no"`
	InboxSize     int           `mapstructure:"inbox_size"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// Load reads ./config/config.yaml with environment overrides.
func Load() (*Config, error) {
	return LoadFrom("./config")
}

// LoadFrom reads config.yaml from dir with environment overrides.
func LoadFrom(dir string) (*Config, error) {
	v, err := pkgconfig.Load(dir, "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 65536)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("auth.public_key_path", "./keys/public.pem")
	v.SetDefault("auth.issuer", "wes-io-live")
	v.SetDefault("room.http_address", "http://localhost:8083")
	v.SetDefault("room.timeout", "5s")
	v.SetDefault("pubsub.driver", "redis")
	v.SetDefault("pubsub.redis.address", "localhost:6379")
	v.SetDefault("pubsub.redis.password", "")
	v.SetDefault("pubsub.redis.db", 0)
	v.SetDefault("pubsub.redis.pool_size", 10)
	v.SetDefault("pubsub.kafka.brokers", "localhost:9092")
	v.SetDefault("pubsub.kafka.group_id", "liveroom-service")
	v.SetDefault("pubsub.kafka.partitions", 4)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "liveroom-session-events")
	v.SetDefault("kafka.partitions", 4)
	v.SetDefault("profile.address", "localhost:6379")
	v.SetDefault("profile.password", "")
	v.SetDefault("profile.db", 0)
	v.SetDefault("profile.key_prefix", "liveroom:profile:")
	v.SetDefault("coordinator.pk_result_delay", "2000ms")
	v.SetDefault("coordinator.seat_no", 1)
	v.SetDefault("coordinator.inbox_size", 64)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("auth.public_key_path", "JWT_PUBLIC_KEY_PATH")
	v.BindEnv("auth.issuer", "JWT_ISSUER")
	v.BindEnv("room.http_address", "ROOM_HTTP_ADDRESS")
	v.BindEnv("pubsub.driver", "PUBSUB_DRIVER")
	v.BindEnv("pubsub.redis.address", "REDIS_ADDRESS")
	v.BindEnv("pubsub.redis.password", "REDIS_PASSWORD")
	v.BindEnv("pubsub.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("pubsub.kafka.group_id", "KAFKA_PUBSUB_GROUP_ID")
	v.BindEnv("kafka.enabled", "KAFKA_SESSION_EVENTS_ENABLED")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_SESSION_EVENTS_TOPIC")
	v.BindEnv("profile.address", "PROFILE_REDIS_ADDRESS")
	v.BindEnv("profile.password", "PROFILE_REDIS_PASSWORD")
	v.BindEnv("coordinator.pk_result_delay", "PK_RESULT_DELAY")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.WebSocket.PingInterval = pkgconfig.Duration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = pkgconfig.Duration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = pkgconfig.Duration(v, "websocket.write_wait", 10*time.Second)
	cfg.Room.Timeout = pkgconfig.Duration(v, "room.timeout", 5*time.Second)
	cfg.PubSub.Redis.ReadTimeout = pkgconfig.Duration(v, "pubsub.redis.read_timeout", 3*time.Second)
	cfg.PubSub.Redis.WriteTimeout = pkgconfig.Duration(v, "pubsub.redis.write_timeout", 3*time.Second)
	cfg.Coordinator.PKResultDelay = pkgconfig.Duration(v, "coordinator.pk_result_delay", 2000*time.Millisecond)

	if cfg.Coordinator.SeatNo <= 0 {
		cfg.Coordinator.SeatNo = 1
	}

	return &cfg, nil
}
