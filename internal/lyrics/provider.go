package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"lyricdesk/pkg/ai"
	"lyricdesk/pkg/fileutil"
	"lyricdesk/pkg/music"
	"lyricdesk/pkg/musiccache"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	aiMaxRetries  = 3
	redisKeyPfx   = "lyrics:lrc:"
	redisCacheTTL = 30 * 24 * time.Hour
)

// logger 延迟创建，保证使用 main 中配置好的全局输出
func logger() *zerolog.Logger {
	l := log.With().Str("component", "lyrics").Logger()
	return &l
}

// ErrNotSong 媒体标题不是歌曲
var ErrNotSong = errors.New("media title is not a song")

// SongInfo AI 从媒体标题中提取的歌曲信息
type SongInfo struct {
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Duration float64 `json:"duration"` // 歌曲时长（秒）
	IsSong   bool    `json:"is_song"`
}

// KV 远端歌词缓存（Redis）
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// Fetcher 根据歌曲信息获取LRC文本
type Fetcher interface {
	GetLyricsByInfo(ctx context.Context, title, artist string, duration float64) (string, error)
}

// Options Provider 的可选依赖
type Options struct {
	CacheDir string
	AI       ai.Client
	Titles   *musiccache.Cache
	Remote   KV
	Duration func() float64
}

// Provider 负责把正在播放的媒体标题变成LRC文本
type Provider struct {
	cacheDir string
	aiClient ai.Client
	titles   *musiccache.Cache
	remote   KV
	fetcher  Fetcher
	duration func() float64
}

var _ Fetcher = (*music.Manager)(nil)

func formatQuerySong(title string) string {
	return fmt.Sprintf(`请精确地按照以下JSON格式提取歌曲信息: {"is_song": true, "title": "歌曲标题", "artist": "演唱者"}。  输入是一个媒体标题，如果标题中包含歌曲信息，请返回符合格式的JSON；否则，返回{"is_song": false}。 请注意，"title" 和 "artist" 必须准确，否则将被视为错误，切记不要任何markdown格式，并将繁体中文转换为简体。 媒体标题是：%s`, title)
}

// NewProvider 创建歌词提供者
func NewProvider(fetcher Fetcher, opts Options) *Provider {
	duration := opts.Duration
	if duration == nil {
		duration = func() float64 { return 0 }
	}
	return &Provider{
		cacheDir: opts.CacheDir,
		aiClient: opts.AI,
		titles:   opts.Titles,
		remote:   opts.Remote,
		fetcher:  fetcher,
		duration: duration,
	}
}

// GetLyrics 根据播放器上报的 "artist - title" 获取歌词
func (p *Provider) GetLyrics(ctx context.Context, songIdentifier string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	info, err := p.resolve(ctx, songIdentifier)
	if err != nil {
		return "", err
	}
	info.Duration = p.duration()
	return p.Lookup(ctx, info)
}

// Lookup 跳过标题解析，直接按歌曲信息查找（本地文件 -> Redis -> 音乐API）
func (p *Provider) Lookup(ctx context.Context, info SongInfo) (string, error) {
	cacheKey := sanitizeFilename(info.Title + "-" + info.Artist)

	if cached, ok := p.readCache(ctx, cacheKey); ok {
		return cached, nil
	}
	logger().Info().Str("title", info.Title).Str("artist", info.Artist).Msg("Cache MISS, fetching from API")

	text, err := p.fetcher.GetLyricsByInfo(ctx, info.Title, info.Artist, info.Duration)
	if err != nil {
		return "", fmt.Errorf("failed to get lyrics for '%s - %s': %w", info.Title, info.Artist, err)
	}

	p.writeCache(ctx, cacheKey, text)
	return text, nil
}

func (p *Provider) resolve(ctx context.Context, songIdentifier string) (SongInfo, error) {
	if p.titles != nil {
		if raw, err := p.titles.Get(songIdentifier); err == nil {
			var info SongInfo
			if json.Unmarshal([]byte(raw), &info) == nil && info.IsSong {
				return info, nil
			}
		}
	}

	info, err := p.queryAI(ctx, songIdentifier)
	if err != nil {
		return SongInfo{}, err
	}
	if !info.IsSong {
		return SongInfo{}, fmt.Errorf("'%s': %w", songIdentifier, ErrNotSong)
	}
	logger().Info().Str("title", info.Title).Str("artist", info.Artist).Msg("AI returned song info")

	if p.titles != nil {
		if raw, err := json.Marshal(info); err == nil {
			if err := p.titles.Add(songIdentifier, string(raw)); err != nil {
				logger().Warn().Err(err).Msg("Failed to persist title cache")
			}
		}
	}
	return info, nil
}

func (p *Provider) queryAI(ctx context.Context, songIdentifier string) (SongInfo, error) {
	if p.aiClient == nil {
		return splitIdentifier(songIdentifier), nil
	}

	var raw string
	var err error
	for i := range aiMaxRetries {
		raw, err = p.aiClient.HandleText(ctx, formatQuerySong(songIdentifier))
		if err == nil {
			break
		}
		logger().Warn().Err(err).Int("attempt", i+1).Int("max", aiMaxRetries).Str("ai", p.aiClient.Name()).Msg("Failed to query AI")
		if i == aiMaxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return SongInfo{}, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	if err != nil {
		return SongInfo{}, fmt.Errorf("failed to query %s after %d attempts: %w", p.aiClient.Name(), aiMaxRetries, err)
	}

	var info SongInfo
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &info); err != nil {
		return SongInfo{}, fmt.Errorf("failed to parse %s response: %w", p.aiClient.Name(), err)
	}
	return info, nil
}

// splitIdentifier 没有配置AI时按 "artist - title" 拆分
func splitIdentifier(songIdentifier string) SongInfo {
	artist, title, ok := strings.Cut(songIdentifier, " - ")
	if !ok {
		return SongInfo{Title: strings.TrimSpace(songIdentifier), IsSong: songIdentifier != ""}
	}
	return SongInfo{
		Title:  strings.TrimSpace(title),
		Artist: strings.TrimSpace(artist),
		IsSong: true,
	}
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func (p *Provider) readCache(ctx context.Context, key string) (string, bool) {
	if p.cacheDir != "" {
		path := filepath.Join(p.cacheDir, key+".lrc")
		if data, err := os.ReadFile(path); err == nil {
			logger().Info().Str("path", path).Msg("Cache HIT (file)")
			return string(data), true
		}
	}
	if p.remote != nil {
		text, err := p.remote.Get(ctx, redisKeyPfx+key)
		if err != nil {
			logger().Warn().Err(err).Msg("Redis lyric cache lookup failed")
		} else if text != "" {
			logger().Info().Str("key", key).Msg("Cache HIT (redis)")
			return text, true
		}
	}
	return "", false
}

func (p *Provider) writeCache(ctx context.Context, key, text string) {
	if p.cacheDir != "" {
		path := filepath.Join(p.cacheDir, key+".lrc")
		if err := fileutil.WriteFileOverwrite(path, []byte(text), 0644); err != nil {
			logger().Error().Err(err).Str("path", path).Msg("Failed to write lyric cache file")
		}
	}
	if p.remote != nil {
		if err := p.remote.SetWithExpiration(ctx, redisKeyPfx+key, text, redisCacheTTL); err != nil {
			logger().Warn().Err(err).Msg("Failed to write redis lyric cache")
		}
	}
}

var unsafeFilenameRe = regexp.MustCompile(`[\\/:*?"<>|]`)

func sanitizeFilename(name string) string {
	return unsafeFilenameRe.ReplaceAllString(name, "-")
}
