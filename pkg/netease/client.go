package netease

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"lyricdesk/pkg/textnorm"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultWebBase        = "https://music.163.com"
	DefaultAPIBase        = "http://localhost:3000"
	DefaultMaxRetries     = 3
	DefaultRequestTimeout = 5 * time.Second

	qrLoginURLFormat = "https://music.163.com/login?codekey=%s"
)

// ErrNoLyrics 歌曲没有LRC歌词（纯音乐或未收录）
var ErrNoLyrics = errors.New("song has no synced lyrics")

// NeteaseSearchResponse 网易云搜索API响应
type NeteaseSearchResponse struct {
	Result struct {
		Songs []struct {
			ID      int    `json:"id"`
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
		} `json:"songs"`
	} `json:"result"`
}

// NeteaseLyricResponse 网易云歌词API响应
type NeteaseLyricResponse struct {
	Lrc struct {
		Lyric string `json:"lyric"`
	} `json:"lrc"`
	Tlyric struct {
		Lyric string `json:"lyric"`
	} `json:"tlyric"`
	NoLyric bool `json:"nolyric"`
}

// qrKeyResponse /login/qr/key 响应
type qrKeyResponse struct {
	Code int `json:"code"`
	Data struct {
		Code   int    `json:"code"`
		Unikey string `json:"unikey"`
	} `json:"data"`
}

// QRStatus /login/qr/check 响应，800 过期 801 等待扫码 802 待确认 803 成功
type QRStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Cookie  string `json:"cookie"`
}

// Options 客户端配置
type Options struct {
	WebBase        string // 搜索和歌词接口
	APIBase        string // NeteaseCloudMusicApi 代理，用于扫码登录
	Cookie         string
	Translate      bool // 合并翻译歌词
	MaxRetries     int
	RequestTimeout time.Duration
}

// Client 网易云音乐客户端
type Client struct {
	httpClient     *http.Client
	webBase        string
	apiBase        string
	translate      bool
	maxRetries     int
	requestTimeout time.Duration

	cookieMu sync.RWMutex
	cookie   string
}

// NewClient 创建新的网易云音乐客户端
func NewClient(opts Options) *Client {
	c := &Client{
		httpClient:     &http.Client{},
		webBase:        strings.TrimRight(opts.WebBase, "/"),
		apiBase:        strings.TrimRight(opts.APIBase, "/"),
		translate:      opts.Translate,
		maxRetries:     opts.MaxRetries,
		requestTimeout: opts.RequestTimeout,
		cookie:         opts.Cookie,
	}
	if c.webBase == "" {
		c.webBase = DefaultWebBase
	}
	if c.apiBase == "" {
		c.apiBase = DefaultAPIBase
	}
	if c.maxRetries <= 0 {
		c.maxRetries = DefaultMaxRetries
	}
	if c.requestTimeout <= 0 {
		c.requestTimeout = DefaultRequestTimeout
	}
	return c
}

func (c *Client) logger() *zerolog.Logger {
	l := log.With().Str("component", "netease").Logger()
	return &l
}

// SetCookie 登录成功后更新Cookie
func (c *Client) SetCookie(cookie string) {
	c.cookieMu.Lock()
	c.cookie = cookie
	c.cookieMu.Unlock()
}

func (c *Client) getCookie() string {
	c.cookieMu.RLock()
	defer c.cookieMu.RUnlock()
	return c.cookie
}

// GetProviderName 获取提供商名称
func (c *Client) GetProviderName() string {
	return "NetEase Cloud Music"
}

// SearchSong 搜索歌曲
func (c *Client) SearchSong(ctx context.Context, title, artist string) (string, error) {
	params := url.Values{}
	params.Set("s", title)
	params.Set("type", "1")
	params.Set("limit", "100")
	searchURL := fmt.Sprintf("%s/api/search/get/web?%s", c.webBase, params.Encode())
	c.logger().Info().Str("url", searchURL).Msg("Searching for song")

	var searchResp NeteaseSearchResponse
	if err := c.getJSON(ctx, searchURL, &searchResp); err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}

	if len(searchResp.Result.Songs) == 0 {
		return "", fmt.Errorf("no songs found for '%s'", title)
	}

	songID := c.findBestMatch(searchResp, artist, title)
	if songID == 0 {
		return "", fmt.Errorf("no matching song found for '%s' by '%s'", title, artist)
	}

	return strconv.Itoa(songID), nil
}

// GetLyrics 获取歌词，开启翻译时原文与译文按相同时间戳交替排列
func (c *Client) GetLyrics(ctx context.Context, songID string) (string, error) {
	lyricURL := fmt.Sprintf("%s/api/song/lyric?os=pc&id=%s&lv=-1&kv=-1&tv=-1", c.webBase, url.QueryEscape(songID))
	c.logger().Info().Str("url", lyricURL).Msg("Fetching lyrics")

	var lyricResp NeteaseLyricResponse
	if err := c.getJSON(ctx, lyricURL, &lyricResp); err != nil {
		return "", fmt.Errorf("lyric request failed: %w", err)
	}

	if lyricResp.NoLyric || strings.TrimSpace(lyricResp.Lrc.Lyric) == "" {
		return "", fmt.Errorf("song %s: %w", songID, ErrNoLyrics)
	}

	if c.translate && lyricResp.Tlyric.Lyric != "" {
		return combineLyrics(lyricResp.Lrc.Lyric, lyricResp.Tlyric.Lyric), nil
	}
	return lyricResp.Lrc.Lyric, nil
}

// AcquireQRKey 申请扫码登录的 unikey
func (c *Client) AcquireQRKey(ctx context.Context) (string, error) {
	keyURL := fmt.Sprintf("%s/login/qr/key?timestamp=%d", c.apiBase, time.Now().UnixMilli())

	var resp qrKeyResponse
	if err := c.getJSON(ctx, keyURL, &resp); err != nil {
		return "", fmt.Errorf("qr key request failed: %w", err)
	}
	if resp.Data.Unikey == "" {
		return "", fmt.Errorf("qr key response has no unikey (code %d)", resp.Code)
	}
	return resp.Data.Unikey, nil
}

// CheckQR 查询扫码状态
func (c *Client) CheckQR(ctx context.Context, key string) (QRStatus, error) {
	params := url.Values{}
	params.Set("key", key)
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	checkURL := fmt.Sprintf("%s/login/qr/check?%s", c.apiBase, params.Encode())

	var status QRStatus
	if err := c.getJSON(ctx, checkURL, &status); err != nil {
		return QRStatus{}, fmt.Errorf("qr check request failed: %w", err)
	}
	return status, nil
}

// QRLoginURL 二维码内容
func QRLoginURL(key string) string {
	return fmt.Sprintf(qrLoginURLFormat, url.QueryEscape(key))
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if cookie := c.getCookie(); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	resp, err := c.doRequestWithRetry(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// doRequestWithRetry 对网络错误和5xx重试，每次尝试有独立超时
func (c *Client) doRequestWithRetry(req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(attempt-1) * 200 * time.Millisecond
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(backoff):
			}
		}

		ctx, cancel := context.WithTimeout(req.Context(), c.requestTimeout)
		resp, err := c.httpClient.Do(req.Clone(ctx))
		if err != nil {
			cancel()
			lastErr = err
			c.logger().Warn().Err(err).Int("attempt", attempt).Int("max", c.maxRetries).Msg("Request failed")
			if req.Context().Err() != nil {
				return nil, err
			}
			continue
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			cancel()
			lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
			c.logger().Warn().Int("status", resp.StatusCode).Int("attempt", attempt).Int("max", c.maxRetries).Msg("Request returned server error")
			continue
		}
		resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxRetries, lastErr)
}

// cancelOnClose 读完响应体后再释放单次请求的超时上下文
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// findBestMatch 找到最佳匹配的歌曲
func (c *Client) findBestMatch(resp NeteaseSearchResponse, targetArtist, targetTitle string) int {
	for _, song := range resp.Result.Songs {
		if !containsIgnoreCase(song.Name, targetTitle) {
			continue
		}

		// artists 可能有多个，只要一个满足就算
		for _, artist := range song.Artists {
			if containsIgnoreCase(artist.Name, targetArtist) {
				c.logger().Info().Str("song", song.Name).Str("artist", artist.Name).Int("id", song.ID).Msg("Found matching song")
				return song.ID
			}
		}
	}

	// 如果没有找到完全匹配的，返回第一个匹配标题的
	first := resp.Result.Songs[0]
	if containsIgnoreCase(first.Name, targetTitle) {
		c.logger().Info().Str("song", first.Name).Int("id", first.ID).Msg("Using first matching song")
		return first.ID
	}

	return 0
}

var lrcTagRe = regexp.MustCompile(`^\[(\d+:\d{1,2}\.\d{1,3})\]`)

// combineLyrics 原文顺序不变，每行后插入同时间戳的译文
func combineLyrics(originalLyrics, translatedLyrics string) string {
	translated := make(map[string]string)
	for _, line := range strings.Split(translatedLyrics, "\n") {
		line = strings.TrimSpace(line)
		m := lrcTagRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if text := strings.TrimSpace(line[len(m[0]):]); text != "" {
			translated[m[1]] = text
		}
	}

	var b strings.Builder
	for _, line := range strings.Split(originalLyrics, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')

		m := lrcTagRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		original := strings.TrimSpace(line[len(m[0]):])
		if t, ok := translated[m[1]]; ok && original != "" && t != original {
			fmt.Fprintf(&b, "[%s]%s\n", m[1], t)
		}
	}
	return strings.TrimSpace(b.String())
}

// containsIgnoreCase 忽略大小写、全半角和空格的包含关系检查
func containsIgnoreCase(s1, s2 string) bool {
	return textnorm.Overlaps(s1, s2)
}
