package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"lyricdesk/internal/config"
	"lyricdesk/internal/login"
	"lyricdesk/internal/lyrics"
	"lyricdesk/internal/player"
	"lyricdesk/pkg/ai"
	"lyricdesk/pkg/ai/gemini"
	"lyricdesk/pkg/ai/openai"
	"lyricdesk/pkg/lrclib"
	"lyricdesk/pkg/music"
	"lyricdesk/pkg/musiccache"
	"lyricdesk/pkg/netease"
	"lyricdesk/pkg/redis"
	"lyricdesk/pkg/tencent"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogger 设置 zerolog 的全局配置
func SetupLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// Deps 各命令共用的依赖
type Deps struct {
	Redis      *redis.Client // 未启用时为 nil
	Store      login.CredentialStore
	Netease    *netease.Client
	Provider   *lyrics.Provider
	Translator tencent.Translator // 未配置时为 nil
}

// NewDeps 按配置创建依赖；Redis 连接失败时降级为本地存储
func NewDeps(ctx context.Context, cfg *config.Config) (*Deps, error) {
	d := &Deps{}

	if cfg.Redis.Enabled {
		rdb, err := redis.NewClient(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to redis, continuing without it")
		} else {
			d.Redis = rdb
		}
	}

	d.Store = newCredentialStore(cfg, d.Redis)

	cookie, err := d.Store.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load netease credential")
	} else if cookie != "" {
		log.Info().Msg("Loaded netease credential")
	}

	d.Netease = netease.NewClient(netease.Options{
		WebBase:        cfg.Netease.WebBase,
		APIBase:        cfg.Netease.APIBase,
		Cookie:         cookie,
		Translate:      cfg.Netease.Translate,
		MaxRetries:     cfg.Netease.MaxRetries,
		RequestTimeout: cfg.Netease.RequestTimeout,
	})

	provider, err := newProvider(ctx, cfg, d.Netease, d.Redis)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Provider = provider

	if cfg.Tencent.SecretID != "" {
		translator, err := tencent.NewClient(cfg.Tencent.SecretID, cfg.Tencent.SecretKey, cfg.Tencent.Region, cfg.Tencent.TargetLang)
		if err != nil {
			log.Warn().Err(err).Msg("Translation disabled")
		} else {
			d.Translator = translator
		}
	}

	return d, nil
}

func (d *Deps) Close() {
	if d.Redis != nil {
		d.Redis.Close()
	}
}

func newCredentialStore(cfg *config.Config, rdb *redis.Client) login.CredentialStore {
	if cfg.Login.CredentialStore == "redis" && rdb != nil {
		return login.NewRedisStore(rdb, cfg.Login.RedisKey)
	}
	return login.NewFileStore(cfg.Login.CredentialFile)
}

// newAIClient 没有配置 API key 时返回 nil
func newAIClient(ctx context.Context, cfg config.AIConfig) (ai.Client, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	backend, model := aiModel(cfg)
	if backend == "gemini" {
		return gemini.NewGemini(ctx, cfg.APIKey, model)
	}
	return openai.NewOpenAi(cfg.APIKey, model, cfg.BaseURL), nil
}

// aiModel module_name 选择后端；旧配置把 OpenAI 模型名写在 module_name 里，ai.model 优先
func aiModel(cfg config.AIConfig) (backend, model string) {
	switch cfg.ModuleName {
	case "", "gemini":
		return "gemini", cfg.Model
	case "openai":
		return "openai", cfg.Model
	}
	if cfg.Model != "" {
		return "openai", cfg.Model
	}
	return "openai", cfg.ModuleName
}

func newProvider(ctx context.Context, cfg *config.Config, ne *netease.Client, rdb *redis.Client) (*lyrics.Provider, error) {
	order, err := music.ParseProviders(cfg.App.Providers)
	if err != nil {
		return nil, err
	}
	manager, err := music.CreateManager(order, music.Clients{
		NetEase: ne,
		LRCLib:  lrclib.NewClient(cfg.LRCLib.BaseURL),
	})
	if err != nil {
		return nil, err
	}
	log.Info().Strs("providers", manager.GetProviderNames()).Msg("Music providers")

	aiClient, err := newAIClient(ctx, cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("failed to create ai client: %w", err)
	}

	titles, err := musiccache.Open(musiccache.DefaultPath(cfg.App.CacheDir))
	if err != nil {
		return nil, err
	}

	opts := lyrics.Options{
		CacheDir: cfg.App.CacheDir,
		AI:       aiClient,
		Titles:   titles,
		Duration: player.GetCurrentDuration,
	}
	if rdb != nil {
		opts.Remote = rdb
	}
	return lyrics.NewProvider(manager, opts), nil
}
