package lrclib

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lyricdesk/pkg/textnorm"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL = "https://lrclib.net/api"
	userAgent      = "lyricdesk/1.0 (https://github.com/lyricdesk)"

	// 候选时长与目标时长的最大允许误差（秒）
	maxDurationDiff = 3
)

var (
	// ErrNotFound LRCLib 没有这首歌
	ErrNotFound = errors.New("lrclib: lyrics not found")
	// ErrNoSynced 只有纯文本歌词，无法同步
	ErrNoSynced = errors.New("lrclib: no synced lyrics")
)

// Client LRCLib客户端
type Client struct {
	httpClient     *http.Client
	baseURL        string
	requestTimeout time.Duration
	maxRetries     int
	retryDelay     time.Duration
}

// Record LRCLib 返回的一条歌词记录，/get 返回单条，/search 返回列表
type Record struct {
	ID           int     `json:"id"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

// NewClient 创建新的LRCLib客户端，baseURL 为空时使用官方地址
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient:     &http.Client{},
		baseURL:        strings.TrimRight(baseURL, "/"),
		requestTimeout: 5 * time.Second,
		maxRetries:     2,
		retryDelay:     500 * time.Millisecond,
	}
}

func logger() *zerolog.Logger {
	l := log.With().Str("component", "lrclib").Logger()
	return &l
}

// GetProviderName 返回提供商名称
func (c *Client) GetProviderName() string {
	return "LRCLib"
}

// SearchSong LRCLib 没有单独的歌曲 ID，用 "title|artist" 代替
func (c *Client) SearchSong(ctx context.Context, title, artist string) (string, error) {
	return title + "|" + artist, nil
}

// GetLyrics 按 SearchSong 返回的 ID 获取歌词
func (c *Client) GetLyrics(ctx context.Context, songID string) (string, error) {
	title, artist, ok := strings.Cut(songID, "|")
	if !ok || title == "" {
		return "", fmt.Errorf("invalid song ID format: %s", songID)
	}
	return c.GetLyricsByInfo(ctx, title, artist, 0)
}

// GetLyricsByInfo 有时长时先走精确匹配的 /get，失败再退回 /search
func (c *Client) GetLyricsByInfo(ctx context.Context, title, artist string, duration float64) (string, error) {
	if duration > 0 {
		rec, err := c.get(ctx, title, artist, duration)
		switch {
		case err == nil && rec.SyncedLyrics != "":
			logger().Info().Str("track", rec.TrackName).Str("artist", rec.ArtistName).Msg("Exact match via /get")
			return rec.SyncedLyrics, nil
		case err == nil, errors.Is(err, ErrNotFound):
			logger().Debug().Str("title", title).Msg("No synced exact match, falling back to search")
		default:
			if ctx.Err() != nil {
				return "", err
			}
			logger().Warn().Err(err).Msg("Exact lookup failed, falling back to search")
		}
	}

	records, err := c.search(ctx, title, artist)
	if err != nil {
		return "", err
	}
	logger().Info().Int("results", len(records)).Str("title", title).Str("artist", artist).Msg("Search finished")

	best := pickBest(records, title, artist, duration)
	if best == nil {
		return "", fmt.Errorf("%w: '%s - %s'", ErrNotFound, title, artist)
	}
	if best.SyncedLyrics == "" {
		// 纯文本歌词交给下一个提供商
		return "", fmt.Errorf("%w: '%s - %s'", ErrNoSynced, title, artist)
	}

	logger().Info().
		Str("track", best.TrackName).
		Str("artist", best.ArtistName).
		Float64("duration", best.Duration).
		Float64("target_duration", duration).
		Msg("Selected synced lyrics")
	return best.SyncedLyrics, nil
}

func (c *Client) get(ctx context.Context, title, artist string, duration float64) (*Record, error) {
	params := url.Values{}
	params.Set("track_name", title)
	params.Set("artist_name", artist)
	params.Set("duration", fmt.Sprintf("%.0f", duration))

	var rec Record
	if err := c.fetchJSON(ctx, "/get", params, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) search(ctx context.Context, title, artist string) ([]Record, error) {
	params := url.Values{}
	params.Set("track_name", title)
	if artist != "" {
		params.Set("artist_name", artist)
	}

	var records []Record
	if err := c.fetchJSON(ctx, "/search", params, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// fetchJSON 请求并解码；404 直接返回 ErrNotFound，不重试
func (c *Client) fetchJSON(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path + "?" + params.Encode()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			logger().Info().Int("attempt", attempt).Int("max", c.maxRetries).Str("path", path).Msg("Retrying request")
			select {
			case <-ctx.Done():
				return fmt.Errorf("request cancelled during retry: %w", ctx.Err())
			case <-time.After(time.Duration(attempt) * c.retryDelay):
			}
		}

		body, err := c.doRequest(ctx, endpoint)
		if err == nil {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("failed to decode %s response: %w", path, err)
			}
			return nil
		}
		if errors.Is(err, ErrNotFound) || ctx.Err() != nil {
			return err
		}
		logger().Warn().Err(err).Int("attempt", attempt+1).Str("path", path).Msg("Request failed")
		lastErr = err
	}
	return fmt.Errorf("request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// doRequest 单次请求，带独立超时
func (c *Client) doRequest(ctx context.Context, endpoint string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return io.ReadAll(resp.Body)
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
}

// pickBest 先按标题/歌手匹配程度分组，再在组内选时长最接近的
func pickBest(records []Record, title, artist string, duration float64) *Record {
	if len(records) == 0 {
		return nil
	}

	var exact, byTitle []*Record
	for i := range records {
		r := &records[i]
		if r.Instrumental {
			continue
		}
		if !containsIgnoreCase(r.TrackName, title) {
			continue
		}
		if artist == "" || containsIgnoreCase(r.ArtistName, artist) {
			exact = append(exact, r)
		} else {
			byTitle = append(byTitle, r)
		}
	}

	pool := exact
	if len(pool) == 0 {
		pool = byTitle
	}
	if len(pool) == 0 {
		return nil
	}

	// 同步歌词优先于纯文本
	synced := pool[:0:0]
	for _, r := range pool {
		if r.SyncedLyrics != "" {
			synced = append(synced, r)
		}
	}
	if len(synced) > 0 {
		pool = synced
	}

	if duration <= 0 {
		return pool[0]
	}
	best := pool[0]
	for _, r := range pool[1:] {
		if durationDiff(r, duration) < durationDiff(best, duration) {
			best = r
		}
	}
	if d := durationDiff(best, duration); d > maxDurationDiff {
		logger().Debug().Float64("diff", d).Msg("Best candidate outside duration threshold")
	}
	return best
}

func durationDiff(r *Record, target float64) float64 {
	d := r.Duration - target
	if d < 0 {
		return -d
	}
	return d
}

// containsIgnoreCase 忽略大小写和全半角检查包含关系
func containsIgnoreCase(s, substr string) bool {
	return textnorm.Contains(s, substr)
}
