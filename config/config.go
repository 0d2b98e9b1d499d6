package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	AI        AIConfig        `mapstructure:"ai"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Messaging MessagingConfig `mapstructure:"messaging"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	State     StateConfig     `mapstructure:"state"`
}

type ServerConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Mode     string `mapstructure:"mode" validate:"oneof=debug release test"`
	AdminKey string `mapstructure:"admin_key"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver" validate:"oneof=postgres sqlite"`
	DSN          string `mapstructure:"dsn" validate:"required"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogLevel     string `mapstructure:"log_level"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	FeedTTL  time.Duration `mapstructure:"feed_ttl"`
}

// Enabled Redis 未配置地址时缓存与分布式锁均退化为本地实现
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Encoding   string `mapstructure:"encoding" validate:"oneof=json console"`
	OutputPath string `mapstructure:"output_path"`
}

type SentryConfig struct {
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
	Insecure    bool    `mapstructure:"insecure"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret" validate:"required"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// AIConfig 外部生成服务（文本 / 图像 / 语音）
type AIConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	ChatModel  string        `mapstructure:"chat_model"`
	TitleModel string        `mapstructure:"title_model"`
	ImageModel string        `mapstructure:"image_model"`
	TTSModel   string        `mapstructure:"tts_model"`
	Voice      string        `mapstructure:"voice"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RatePerSec float64       `mapstructure:"rate_per_sec"`
	Burst      int           `mapstructure:"burst"`
}

// Enabled 未配置 key 时使用离线生成器
func (c AIConfig) Enabled() bool { return c.APIKey != "" }

type StorageConfig struct {
	GeneratedDir string `mapstructure:"generated_dir" validate:"required"`
	PublicPrefix string `mapstructure:"public_prefix"`
}

type MessagingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url" validate:"required_if=Enabled true"`
	Exchange string `mapstructure:"exchange"`
}

// EngineConfig 回复 / 证据任务参数
type EngineConfig struct {
	ReplyDelay        time.Duration `mapstructure:"reply_delay"`
	ReplyHistory      int           `mapstructure:"reply_history" validate:"min=0"`
	ReplyMaxLen       int           `mapstructure:"reply_max_len" validate:"min=1"`
	EvidenceThreshold int           `mapstructure:"evidence_threshold" validate:"min=1"`
	EvidenceContext   int           `mapstructure:"evidence_context" validate:"min=0"`
	CrossModalEvery   int           `mapstructure:"cross_modal_every" validate:"min=1"`
	MaxCues           int           `mapstructure:"max_cues" validate:"min=1"`
	JobTimeout        time.Duration `mapstructure:"job_timeout"`
	Workers           int           `mapstructure:"workers" validate:"min=1"`
	QueueSize         int           `mapstructure:"queue_size" validate:"min=1"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	MaxAttempts       int           `mapstructure:"max_attempts" validate:"min=1"`
	ImagePlaceholder  bool          `mapstructure:"image_placeholder"`
	LockBackend       string        `mapstructure:"lock_backend" validate:"oneof=local redis"`
	LockTTL           time.Duration `mapstructure:"lock_ttl"`
	SeedCommentChance float64       `mapstructure:"seed_comment_chance" validate:"min=0,max=1"`
}

type SchedulerConfig struct {
	StoryInterval    time.Duration `mapstructure:"story_interval"`
	StateInterval    time.Duration `mapstructure:"state_interval"`
	RefreshTimes     []string      `mapstructure:"refresh_times"`
	StoryBatch       int           `mapstructure:"story_batch" validate:"min=1"`
	MaxActiveStories int           `mapstructure:"max_active_stories" validate:"min=1"`
}

// StateConfig 状态机阈值
type StateConfig struct {
	ClimaxAfter         time.Duration `mapstructure:"climax_after"`
	ClimaxInteractions  int           `mapstructure:"climax_interactions"`
	EndAfter            time.Duration `mapstructure:"end_after"`
	EndInteractions     int           `mapstructure:"end_interactions"`
	ResolveInteractions int           `mapstructure:"resolve_interactions"`
	ArchiveAfter        time.Duration `mapstructure:"archive_after"`
}

// Load 读取配置：config.yaml（可选）+ LEGEND_* 环境变量
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("LEGEND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Default 返回仅含默认值的配置，供测试和基准使用
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := decode(v)
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "legends.db")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.feed_ttl", time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output_path", "stdout")

	v.SetDefault("sentry.sample_rate", 1.0)

	v.SetDefault("tracing.service_name", "living-legends")
	v.SetDefault("tracing.sample_ratio", 0.1)
	v.SetDefault("tracing.insecure", true)

	v.SetDefault("jwt.secret", "change-me")
	v.SetDefault("jwt.ttl", 30*24*time.Hour)

	v.SetDefault("ai.chat_model", "gpt-4o-mini")
	v.SetDefault("ai.title_model", "gpt-4o-mini")
	v.SetDefault("ai.image_model", "dall-e-3")
	v.SetDefault("ai.tts_model", "tts-1")
	v.SetDefault("ai.voice", "onyx")
	v.SetDefault("ai.timeout", 45*time.Second)
	v.SetDefault("ai.rate_per_sec", 2.0)
	v.SetDefault("ai.burst", 4)

	v.SetDefault("storage.generated_dir", "static/generated")
	v.SetDefault("storage.public_prefix", "/static/generated")

	v.SetDefault("messaging.exchange", "legend.notifications")

	v.SetDefault("engine.reply_delay", 60*time.Second)
	v.SetDefault("engine.reply_history", 3)
	v.SetDefault("engine.reply_max_len", 120)
	v.SetDefault("engine.evidence_threshold", 3)
	v.SetDefault("engine.evidence_context", 4)
	v.SetDefault("engine.cross_modal_every", 3)
	v.SetDefault("engine.max_cues", 6)
	v.SetDefault("engine.job_timeout", 90*time.Second)
	v.SetDefault("engine.workers", 4)
	v.SetDefault("engine.queue_size", 1024)
	v.SetDefault("engine.poll_interval", time.Second)
	v.SetDefault("engine.max_attempts", 3)
	v.SetDefault("engine.image_placeholder", true)
	v.SetDefault("engine.lock_backend", "local")
	v.SetDefault("engine.lock_ttl", 2*time.Minute)
	v.SetDefault("engine.seed_comment_chance", 0.4)

	v.SetDefault("scheduler.story_interval", 20*time.Minute)
	v.SetDefault("scheduler.state_interval", 30*time.Minute)
	v.SetDefault("scheduler.refresh_times", []string{"11:59", "23:59"})
	v.SetDefault("scheduler.story_batch", 2)
	v.SetDefault("scheduler.max_active_stories", 5)

	v.SetDefault("state.climax_after", 48*time.Hour)
	v.SetDefault("state.climax_interactions", 10)
	v.SetDefault("state.end_after", 96*time.Hour)
	v.SetDefault("state.end_interactions", 20)
	v.SetDefault("state.resolve_interactions", 30)
	v.SetDefault("state.archive_after", 30*24*time.Hour)
}
