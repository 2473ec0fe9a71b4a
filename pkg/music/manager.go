package music

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNoProviders 没有可用的提供商
	ErrNoProviders = errors.New("no music providers available")
	// ErrEmptyLyrics 提供商返回了空歌词
	ErrEmptyLyrics = errors.New("provider returned empty lyrics")
)

func logger() *zerolog.Logger {
	l := log.With().Str("component", "music-manager").Logger()
	return &l
}

// Manager 按优先级依次尝试各提供商
type Manager struct {
	providers []MusicAPI
}

var _ InfoLookup = (*Manager)(nil)

func NewManager(providers []MusicAPI) *Manager {
	if len(providers) == 0 {
		logger().Warn().Msg("No music providers configured")
	}
	return &Manager{providers: providers}
}

// GetLyricsByInfo 第一个成功的提供商的歌词；全部失败时返回每个提供商的错误
func (m *Manager) GetLyricsByInfo(ctx context.Context, title, artist string, duration float64) (string, error) {
	if len(m.providers) == 0 {
		return "", ErrNoProviders
	}

	var errs []error
	for i, provider := range m.providers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		name := provider.GetProviderName()
		plog := logger().With().Str("provider", name).Int("attempt", i+1).Logger()
		plog.Info().Str("title", title).Str("artist", artist).Float64("duration", duration).Msg("Trying to get lyrics")

		text, err := fetchFrom(ctx, provider, title, artist, duration)
		if err == nil && strings.TrimSpace(text) == "" {
			err = ErrEmptyLyrics
		}
		if err != nil {
			plog.Warn().Err(err).Msg("Provider failed")
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}

		plog.Info().Msg("Successfully got lyrics")
		return text, nil
	}

	return "", fmt.Errorf("all providers failed to get lyrics for '%s - %s': %w", title, artist, errors.Join(errs...))
}

// fetchFrom 支持按时长查询的提供商（LRCLib）跳过搜索步骤
func fetchFrom(ctx context.Context, provider MusicAPI, title, artist string, duration float64) (string, error) {
	if lookup, ok := provider.(InfoLookup); ok && duration > 0 {
		return lookup.GetLyricsByInfo(ctx, title, artist, duration)
	}

	songID, err := provider.SearchSong(ctx, title, artist)
	if err != nil {
		return "", fmt.Errorf("search: %w", err)
	}
	text, err := provider.GetLyrics(ctx, songID)
	if err != nil {
		return "", fmt.Errorf("lyrics for %s: %w", songID, err)
	}
	return text, nil
}

// GetProviderNames 按优先级排列的提供商名称
func (m *Manager) GetProviderNames() []string {
	names := make([]string, len(m.providers))
	for i, provider := range m.providers {
		names[i] = provider.GetProviderName()
	}
	return names
}
