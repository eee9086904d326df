package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config 保存应用程序配置。
type Config struct {
	App      AppConfig      `json:"app"`
	Supabase SupabaseConfig `json:"supabase"`
	Redis    RedisConfig    `json:"redis"`
	Browser  BrowserConfig  `json:"browser"`
	Email    EmailConfig    `json:"email"`
	Security SecurityConfig `json:"security"`
}

// AppConfig 应用程序基础配置。
type AppConfig struct {
	Env              string        `json:"env"`               // 运行环境: local / prod
	LogLevel         string        `json:"log_level"`         // 日志级别: debug / info / warn / error
	HTTPAddr         string        `json:"http_addr"`         // API 服务监听地址
	ScheduleInterval time.Duration `json:"schedule_interval"` // 调度器轮询间隔（如 "1m"）
	SyncItemsLimit   int           `json:"sync_items_limit"`  // 单次同步抓取商品上限
	WorkerPoolSize   int           `json:"worker_pool_size"`  // Worker Pool 大小（并发同步数）
	QueueCapacity    int           `json:"queue_capacity"`    // 内存队列容量
	RateLimit        float64       `json:"rate_limit"`        // 页面抓取限流速率（token/s）
	RateBurst        float64       `json:"rate_burst"`        // 限流桶容量
	DedupWindow      int           `json:"dedup_window"`      // 同步防重窗口（秒）

	// Redis Streams 任务队列配置
	SyncQueueStream string `json:"sync_queue_stream"` // Redis Stream 名称
	SyncQueueGroup  string `json:"sync_queue_group"`  // Consumer Group 名称
}

// SupabaseConfig 托管数据存储配置。
//
// URL 和 AnonKey 只从环境变量读取，缺失时由存储层在启动阶段报致命错误。
type SupabaseConfig struct {
	URL     string        `json:"-"`
	AnonKey string        `json:"-"`
	Timeout time.Duration `json:"timeout"` // 单次 HTTP 请求超时
}

// RedisConfig Redis 配置。
type RedisConfig struct {
	Addr     string `json:"addr"`     // Redis 地址 (host:port)
	Password string `json:"password"` // Redis 密码
}

// BrowserConfig 抓取浏览器配置。
type BrowserConfig struct {
	BinPath        string `json:"bin_path"`        // 浏览器可执行文件路径
	ProxyURL       string `json:"proxy_url"`       // 代理服务器 URL
	Headless       bool   `json:"headless"`        // 是否使用无头模式
	MaxConcurrency int    `json:"max_concurrency"` // 最大并发页面数
}

// EmailConfig 邮件通知配置。
type EmailConfig struct {
	SMTPHost  string `json:"smtp_host"`
	SMTPPort  int    `json:"smtp_port"`
	SMTPUser  string `json:"smtp_user"`
	SMTPPass  string `json:"smtp_pass"`
	FromEmail string `json:"from_email"`
	ToEmail   string `json:"to_email"` // 同步摘要收件人
}

// SecurityConfig 安全相关配置。
type SecurityConfig struct {
	JWTSecret         string `json:"jwt_secret"`          // JWT 签名密钥
	AdminEmail        string `json:"admin_email"`         // 管理员登录账号
	AdminPasswordHash string `json:"admin_password_hash"` // bcrypt 哈希
}

// Load 从 JSON 文件加载配置。
//
// 它会尝试读取 configs/config.json 文件，如果不存在则使用默认值。
//
// 参数:
//
//	configPath: 配置文件路径（如果为空则使用默认路径 "configs/config.json")
//
// 返回值:
//
//	*Config: 加载完成的配置对象
//	error: 加载失败返回错误
func Load(configPath ...string) (*Config, error) {
	path := "configs/config.json"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	// 如果配置文件不存在，使用默认配置
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := getDefaultConfig()
		// 即使没有配置文件，也允许环境变量覆盖默认值
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	// 应用默认值（对于未设置的字段）
	applyDefaults(cfg)

	// 环境变量优先覆盖配置
	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadOrDefault 加载配置，如果失败则返回默认配置（不报错）。
func LoadOrDefault(configPath ...string) *Config {
	cfg, err := Load(configPath...)
	if err != nil {
		fallback := getDefaultConfig()
		applyEnvOverrides(fallback)
		return fallback
	}
	return cfg
}

// getDefaultConfig 返回默认配置。
func getDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:              "local",
			LogLevel:         "info",
			HTTPAddr:         ":8081",
			ScheduleInterval: 1 * time.Minute,
			SyncItemsLimit:   20,
			WorkerPoolSize:   1, // 单浏览器实例, 同步任务顺序执行
			QueueCapacity:    100,
			RateLimit:        1,
			RateBurst:        3,
			DedupWindow:      3600,

			SyncQueueStream: "reselldash:sync:queue",
			SyncQueueGroup:  "syncer_group",
		},
		Supabase: SupabaseConfig{
			Timeout: 15 * time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
		},
		Browser: BrowserConfig{
			BinPath:        "",
			ProxyURL:       "",
			Headless:       true,
			MaxConcurrency: 2,
		},
		Email: EmailConfig{
			SMTPHost:  "smtp.gmail.com",
			SMTPPort:  587,
			SMTPUser:  "",
			SMTPPass:  "",
			FromEmail: "",
			ToEmail:   "",
		},
		Security: SecurityConfig{
			JWTSecret:         "dev_secret_change_me",
			AdminEmail:        "admin@localhost",
			AdminPasswordHash: "",
		},
	}
}

// applyDefaults 对未设置的字段应用默认值。
func applyDefaults(cfg *Config) {
	defaults := getDefaultConfig()

	if cfg.App.Env == "" {
		cfg.App.Env = defaults.App.Env
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = defaults.App.LogLevel
	}
	if cfg.App.HTTPAddr == "" {
		cfg.App.HTTPAddr = defaults.App.HTTPAddr
	}
	if cfg.App.ScheduleInterval == 0 {
		cfg.App.ScheduleInterval = defaults.App.ScheduleInterval
	}
	if cfg.App.SyncItemsLimit == 0 {
		cfg.App.SyncItemsLimit = defaults.App.SyncItemsLimit
	}
	if cfg.App.WorkerPoolSize == 0 {
		cfg.App.WorkerPoolSize = defaults.App.WorkerPoolSize
	}
	if cfg.App.QueueCapacity == 0 {
		cfg.App.QueueCapacity = defaults.App.QueueCapacity
	}
	if cfg.App.RateLimit == 0 {
		cfg.App.RateLimit = defaults.App.RateLimit
	}
	if cfg.App.RateBurst == 0 {
		cfg.App.RateBurst = defaults.App.RateBurst
	}
	if cfg.App.DedupWindow == 0 {
		cfg.App.DedupWindow = defaults.App.DedupWindow
	}
	if cfg.App.SyncQueueStream == "" {
		cfg.App.SyncQueueStream = defaults.App.SyncQueueStream
	}
	if cfg.App.SyncQueueGroup == "" {
		cfg.App.SyncQueueGroup = defaults.App.SyncQueueGroup
	}
	if cfg.Supabase.Timeout == 0 {
		cfg.Supabase.Timeout = defaults.Supabase.Timeout
	}
	if cfg.Security.JWTSecret == "" {
		cfg.Security.JWTSecret = defaults.Security.JWTSecret
	}
	if cfg.Security.AdminEmail == "" {
		cfg.Security.AdminEmail = defaults.Security.AdminEmail
	}
	if cfg.Browser.MaxConcurrency == 0 {
		cfg.Browser.MaxConcurrency = defaults.Browser.MaxConcurrency
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = defaults.Email.SMTPPort
	}
}

func applyEnvOverrides(cfg *Config) {
	viper.AutomaticEnv()

	_ = viper.BindEnv("supabase_url", "SUPABASE_URL")
	_ = viper.BindEnv("supabase_anon_key", "SUPABASE_ANON_KEY")
	_ = viper.BindEnv("redis_addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = viper.BindEnv("smtp_pass", "SMTP_PASS")
	_ = viper.BindEnv("jwt_secret", "JWT_SECRET")
	_ = viper.BindEnv("chrome_bin", "CHROME_BIN")

	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("APP_LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := os.Getenv("APP_HTTP_ADDR"); v != "" {
		cfg.App.HTTPAddr = v
	}
	if v := os.Getenv("APP_SCHEDULE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.ScheduleInterval = d
		}
	}
	if v := os.Getenv("APP_SYNC_ITEMS_LIMIT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.SyncItemsLimit = i
		}
	}
	if v := os.Getenv("APP_WORKER_POOL_SIZE"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.WorkerPoolSize = i
		}
	}
	if v := os.Getenv("APP_QUEUE_CAPACITY"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.QueueCapacity = i
		}
	}
	if v := os.Getenv("APP_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.App.RateLimit = f
		}
	}
	if v := os.Getenv("APP_RATE_BURST"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.App.RateBurst = f
		}
	}
	if v := os.Getenv("APP_DEDUP_WINDOW"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.DedupWindow = i
		}
	}
	if v := os.Getenv("APP_SYNC_QUEUE_STREAM"); v != "" {
		cfg.App.SyncQueueStream = v
	}
	if v := os.Getenv("APP_SYNC_QUEUE_GROUP"); v != "" {
		cfg.App.SyncQueueGroup = v
	}

	if v := viper.GetString("supabase_url"); v != "" {
		cfg.Supabase.URL = v
	}
	if v := viper.GetString("supabase_anon_key"); v != "" {
		cfg.Supabase.AnonKey = v
	}
	if v := os.Getenv("SUPABASE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Supabase.Timeout = d
		}
	}

	if v := viper.GetString("redis_addr"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := viper.GetString("redis_password"); v != "" {
		cfg.Redis.Password = v
	}

	if v := viper.GetString("chrome_bin"); v != "" {
		cfg.Browser.BinPath = v
	}
	if v := os.Getenv("HTTP_PROXY"); v != "" {
		cfg.Browser.ProxyURL = v
	} else if v := os.Getenv("BROWSER_PROXY_URL"); v != "" {
		cfg.Browser.ProxyURL = v
	}
	if v := os.Getenv("BROWSER_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Browser.Headless = b
		}
	}
	if v := os.Getenv("BROWSER_MAX_CONCURRENCY"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Browser.MaxConcurrency = i
		}
	}

	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Email.SMTPHost = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Email.SMTPPort = i
		}
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		cfg.Email.SMTPUser = v
	}
	if v := viper.GetString("smtp_pass"); v != "" {
		cfg.Email.SMTPPass = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		cfg.Email.FromEmail = v
	}
	if v := os.Getenv("SMTP_TO"); v != "" {
		cfg.Email.ToEmail = v
	}

	if v := viper.GetString("jwt_secret"); v != "" {
		cfg.Security.JWTSecret = v
	}
	if v := os.Getenv("ADMIN_EMAIL"); v != "" {
		cfg.Security.AdminEmail = v
	}
	if v := os.Getenv("ADMIN_PASSWORD_HASH"); v != "" {
		cfg.Security.AdminPasswordHash = v
	}
}

// UnmarshalJSON 自定义 JSON 解析，支持 Duration 字符串。
func (a *AppConfig) UnmarshalJSON(data []byte) error {
	type Alias AppConfig
	aux := &struct {
		ScheduleInterval string `json:"schedule_interval"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.ScheduleInterval != "" {
		duration, err := time.ParseDuration(aux.ScheduleInterval)
		if err != nil {
			return fmt.Errorf("invalid schedule_interval format: %w", err)
		}
		a.ScheduleInterval = duration
	}

	return nil
}

// MarshalJSON 自定义 JSON 序列化，将 Duration 转为字符串。
func (a AppConfig) MarshalJSON() ([]byte, error) {
	type Alias AppConfig
	return json.Marshal(&struct {
		ScheduleInterval string `json:"schedule_interval"`
		*Alias
	}{
		ScheduleInterval: a.ScheduleInterval.String(),
		Alias:            (*Alias)(&a),
	})
}

// UnmarshalJSON 支持 "15s" 这类超时字符串。
func (s *SupabaseConfig) UnmarshalJSON(data []byte) error {
	type Alias SupabaseConfig
	aux := &struct {
		Timeout string `json:"timeout"`
		*Alias
	}{
		Alias: (*Alias)(s),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.Timeout != "" {
		duration, err := time.ParseDuration(aux.Timeout)
		if err != nil {
			return fmt.Errorf("invalid supabase timeout format: %w", err)
		}
		s.Timeout = duration
	}

	return nil
}
