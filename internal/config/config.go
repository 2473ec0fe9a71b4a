package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"lyricdesk/internal/login"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSocketPath    = "/tmp/lyrics_app.sock"
	DefaultCheckInterval = 5 * time.Second
	DefaultLeadOffset    = 0.1 // s
	DefaultWindowRadius  = 2
	DefaultPollInterval  = time.Second
	DefaultLoginTimeout  = 3 * time.Minute
	DefaultNeteaseAPI    = "http://localhost:3000"
	DefaultRedisKey      = "lyrics:credential"
)

func getDefaultCacheDir() string {
	// 优先使用 XDG_CACHE_HOME 环境变量
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, "lyrics")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "lyrics_cache"
	}

	return filepath.Join(homeDir, ".cache", "lyrics")
}

func getConfigDir() string {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "lyrics")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Warn().Err(err).Msg("Cannot get user home directory")
		return "."
	}

	return filepath.Join(homeDir, ".config", "lyrics")
}

// DefaultPath 配置文件路径
func DefaultPath() string {
	return filepath.Join(getConfigDir(), "config.toml")
}

// TomlConfig TOML配置文件结构
type TomlConfig struct {
	App struct {
		SocketPath    string      `toml:"socket_path"`
		CheckInterval string      `toml:"check_interval"`
		CacheDir      string      `toml:"cache_dir"`
		LogLevel      string      `toml:"log_level"`
		LeadOffset    interface{} `toml:"lead_offset"` // 整数或小数
		WindowRadius  *int        `toml:"window_radius"`
		Providers     []string    `toml:"providers"`
		I3Blocks      bool        `toml:"i3blocks"`
	} `toml:"app"`

	AI struct {
		ModuleName string `toml:"module_name"` // gemini | openai | OpenAI 模型名
		Model      string `toml:"model"`
		APIKey     string `toml:"api_key"`
		BaseURL    string `toml:"base_url"` // for OpenAI
	} `toml:"ai"`

	Redis struct {
		Enabled  bool   `toml:"enabled"`
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
	} `toml:"redis"`

	Netease struct {
		APIBase        string `toml:"api_base"`
		WebBase        string `toml:"web_base"`
		Translate      bool   `toml:"translate"`
		MaxRetries     int    `toml:"max_retries"`
		RequestTimeout string `toml:"request_timeout"`
	} `toml:"netease"`

	LRCLib struct {
		BaseURL string `toml:"base_url"`
	} `toml:"lrclib"`

	Login struct {
		PollInterval    string `toml:"poll_interval"`
		Timeout         string `toml:"timeout"`
		CredentialStore string `toml:"credential_store"`
		CredentialFile  string `toml:"credential_file"`
		RedisKey        string `toml:"redis_key"`
		CodeExpired     int    `toml:"code_expired"`
		CodeWaiting     int    `toml:"code_waiting"`
		CodeScanned     int    `toml:"code_scanned"`
		CodeSuccess     int    `toml:"code_success"`
	} `toml:"login"`

	Tencent struct {
		SecretID   string `toml:"secret_id"`
		SecretKey  string `toml:"secret_key"`
		Region     string `toml:"region"`
		TargetLang string `toml:"target_lang"`
	} `toml:"tencent"`
}

// AppConfig 应用配置
type AppConfig struct {
	SocketPath    string
	CheckInterval time.Duration
	CacheDir      string
	LogLevel      string
	LeadOffset    float64
	WindowRadius  int
	Providers     []string
	I3Blocks      bool
}

// AIConfig AI配置
type AIConfig struct {
	ModuleName string
	Model      string // 为空时使用各 SDK 的默认模型
	APIKey     string
	BaseURL    string
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// NeteaseConfig 网易云配置
type NeteaseConfig struct {
	APIBase        string
	WebBase        string
	Translate      bool
	MaxRetries     int
	RequestTimeout time.Duration
}

// LRCLibConfig LRCLib配置
type LRCLibConfig struct {
	BaseURL string
}

// LoginConfig 扫码登录配置
type LoginConfig struct {
	PollInterval    time.Duration
	Timeout         time.Duration
	CredentialStore string // file | redis
	CredentialFile  string
	RedisKey        string
	Codes           login.Codes
}

// TencentConfig 腾讯云翻译配置
type TencentConfig struct {
	SecretID   string
	SecretKey  string
	Region     string
	TargetLang string
}

// Config 主配置结构
type Config struct {
	Path    string
	App     AppConfig
	AI      AIConfig
	Redis   RedisConfig
	Netease NeteaseConfig
	LRCLib  LRCLibConfig
	Login   LoginConfig
	Tencent TencentConfig
}

// Default 不读取任何文件的默认配置
func Default() *Config {
	return &Config{
		Path: DefaultPath(),
		App: AppConfig{
			SocketPath:    DefaultSocketPath,
			CheckInterval: DefaultCheckInterval,
			CacheDir:      getDefaultCacheDir(),
			LogLevel:      "info",
			LeadOffset:    DefaultLeadOffset,
			WindowRadius:  DefaultWindowRadius,
			Providers:     []string{"netease", "lrclib"},
		},
		AI: AIConfig{
			ModuleName: "gemini",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Netease: NeteaseConfig{
			APIBase:        DefaultNeteaseAPI,
			MaxRetries:     3,
			RequestTimeout: 5 * time.Second,
		},
		Login: LoginConfig{
			PollInterval:    DefaultPollInterval,
			Timeout:         DefaultLoginTimeout,
			CredentialStore: "file",
			CredentialFile:  filepath.Join(getConfigDir(), "credential"),
			RedisKey:        DefaultRedisKey,
			Codes:           login.NeteaseCodes,
		},
		Tencent: TencentConfig{
			Region:     "ap-guangzhou",
			TargetLang: "zh",
		},
	}
}

// Load 读取指定路径的配置，path 为空时使用默认路径；文件不存在时使用默认值
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		cfg.Path = path
	}

	var tc TomlConfig
	if _, err := toml.DecodeFile(cfg.Path, &tc); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Info().Str("path", cfg.Path).Msg("Config file not found, using defaults")
			return cfg, nil
		}
		return nil, err
	}
	log.Info().Str("path", cfg.Path).Msg("Loaded config")

	cfg.apply(&tc)
	if err := cfg.Login.Codes.Validate(); err != nil {
		log.Warn().Err(err).Str("path", cfg.Path).Msg("Rejecting config")
		return nil, fmt.Errorf("invalid [login] section: %w", err)
	}
	return cfg, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key, v string) {
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid duration, using default")
		return
	}
	*dst = d
}

// setSeconds TOML 的 0 和 0.5 分别解码为 int64 和 float64
func setSeconds(dst *float64, key string, v interface{}) {
	switch n := v.(type) {
	case nil:
	case int64:
		*dst = float64(n)
	case float64:
		*dst = n
	default:
		log.Warn().Str("key", key).Interface("value", v).Msg("Invalid number, using default")
	}
}

// apply 用TOML中的非零值覆盖默认值
func (c *Config) apply(tc *TomlConfig) {
	setString(&c.App.SocketPath, tc.App.SocketPath)
	setDuration(&c.App.CheckInterval, "app.check_interval", tc.App.CheckInterval)
	setString(&c.App.CacheDir, tc.App.CacheDir)
	setString(&c.App.LogLevel, tc.App.LogLevel)
	setSeconds(&c.App.LeadOffset, "app.lead_offset", tc.App.LeadOffset)
	if tc.App.WindowRadius != nil {
		c.App.WindowRadius = *tc.App.WindowRadius
	}
	if len(tc.App.Providers) > 0 {
		c.App.Providers = tc.App.Providers
	}
	c.App.I3Blocks = tc.App.I3Blocks

	setString(&c.AI.ModuleName, tc.AI.ModuleName)
	setString(&c.AI.Model, tc.AI.Model)
	setString(&c.AI.BaseURL, tc.AI.BaseURL)
	setString(&c.AI.APIKey, tc.AI.APIKey)

	c.Redis.Enabled = tc.Redis.Enabled
	setString(&c.Redis.Addr, tc.Redis.Addr)
	setString(&c.Redis.Password, tc.Redis.Password)
	setInt(&c.Redis.DB, tc.Redis.DB)

	setString(&c.Netease.APIBase, tc.Netease.APIBase)
	setString(&c.Netease.WebBase, tc.Netease.WebBase)
	c.Netease.Translate = tc.Netease.Translate
	setInt(&c.Netease.MaxRetries, tc.Netease.MaxRetries)
	setDuration(&c.Netease.RequestTimeout, "netease.request_timeout", tc.Netease.RequestTimeout)

	setString(&c.LRCLib.BaseURL, tc.LRCLib.BaseURL)

	setDuration(&c.Login.PollInterval, "login.poll_interval", tc.Login.PollInterval)
	setDuration(&c.Login.Timeout, "login.timeout", tc.Login.Timeout)
	setString(&c.Login.CredentialStore, tc.Login.CredentialStore)
	setString(&c.Login.CredentialFile, tc.Login.CredentialFile)
	setString(&c.Login.RedisKey, tc.Login.RedisKey)
	setInt(&c.Login.Codes.Expired, tc.Login.CodeExpired)
	setInt(&c.Login.Codes.Waiting, tc.Login.CodeWaiting)
	setInt(&c.Login.Codes.Scanned, tc.Login.CodeScanned)
	setInt(&c.Login.Codes.Success, tc.Login.CodeSuccess)

	setString(&c.Tencent.SecretID, tc.Tencent.SecretID)
	setString(&c.Tencent.SecretKey, tc.Tencent.SecretKey)
	setString(&c.Tencent.Region, tc.Tencent.Region)
	setString(&c.Tencent.TargetLang, tc.Tencent.TargetLang)
}

// Warn 启动时提示缺失的可选配置
func (c *Config) Warn() {
	if c.AI.APIKey == "" {
		log.Warn().Str("config", c.Path).Msg("No AI API key configured, media titles are split as 'artist - title'")
	}
	if c.Login.CredentialStore == "redis" && !c.Redis.Enabled {
		log.Warn().Msg("login.credential_store is redis but redis is disabled, falling back to file")
	}
}
