package config

// Config 配置主体
type Config struct {
	Server               ServerConfig         `mapstructure:"server"`
	DB                   DBConfig             `mapstructure:"database"`
	Redis                RedisConfig          `mapstructure:"redis"`
	Mongo                MongoConfig          `mapstructure:"mongo"`
	Logstash             LogstashConfig       `mapstructure:"logstash"`
	MinIO                MinIOConfig          `mapstructure:"minio"`
	Kafka                KafkaConfig          `mapstructure:"kafka"`
	KafkaBookingConsumer KafkaBookingConsumer `mapstructure:"kafka_booking_consumer"`
	Booking              BookingConfig        `mapstructure:"booking"`
	Chat                 ChatConfig           `mapstructure:"chat"`
}

// ServerConfig Server配置
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DBConfig 关系库配置，文档库不可达时作为降级后端
type DBConfig struct {
	DSN         string `mapstructure:"dsn"`
	MaxIdle     int    `mapstructure:"max_idle"`
	MaxOpen     int    `mapstructure:"max_open"`
	MaxLifetime int    `mapstructure:"max_lifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// MongoConfig 文档库配置，ProbeTimeoutSec 是启动探活的上限
type MongoConfig struct {
	URL             string `mapstructure:"url"`
	Database        string `mapstructure:"database"`
	ProbeTimeoutSec int    `mapstructure:"probe_timeout_sec"`
}

type LogstashConfig struct {
	Address string `mapstructure:"address"`
	Index   string `mapstructure:"index"`
	Token   string `mapstructure:"token"`
}

// MinIOConfig MinIO配置
type MinIOConfig struct {
	InternalEndpoint string `mapstructure:"internal_endpoint"`
	ExternalEndpoint string `mapstructure:"external_endpoint"`
	AccessKey        string `mapstructure:"access_key"`
	SecretKey        string `mapstructure:"secret_key"`
	AvatarBucket     string `mapstructure:"avatar_bucket"`
	InternalUseSSL   bool   `mapstructure:"internal_use_ssl"`
}

type KafkaConfig struct {
	Brokers  []string       `mapstructure:"brokers"`
	Sasl     SaslConfig     `mapstructure:"sasl"`
	Consumer ConsumerConfig `mapstructure:"consumer"`
}

type SaslConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type ConsumerConfig struct {
	SessionTimeout    int `mapstructure:"session_timeout"`
	HeartbeatInterval int `mapstructure:"heartbeat_interval"`
	RebalanceTimeout  int `mapstructure:"rebalance_timeout"`
	MaxProcessingTime int `mapstructure:"max_processing_time"`
}

type KafkaBookingConsumer struct {
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// BookingConfig 订单服务的旁路查询入口
type BookingConfig struct {
	APIURL string `mapstructure:"api_url"`
}

// ChatConfig 实时消息相关参数
type ChatConfig struct {
	IdleTimeoutSec int    `mapstructure:"idle_timeout_sec"`
	SweepSpec      string `mapstructure:"sweep_spec"`
	PageSize       int    `mapstructure:"page_size"`
}
