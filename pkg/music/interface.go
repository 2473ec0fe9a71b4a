package music

import (
	"context"
)

// MusicAPI 先搜索再取歌词的提供商
type MusicAPI interface {
	// SearchSong 搜索歌曲，返回提供商内部的歌曲ID
	SearchSong(ctx context.Context, title, artist string) (string, error)

	// GetLyrics 根据歌曲ID获取歌词
	GetLyrics(ctx context.Context, songID string) (string, error)

	GetProviderName() string
}

// InfoLookup 可以直接按歌曲信息（含时长）查询，例如 LRCLib 和 Manager
type InfoLookup interface {
	GetLyricsByInfo(ctx context.Context, title, artist string, duration float64) (string, error)
}
