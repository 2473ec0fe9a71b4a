package lyrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lyricdesk/pkg/musiccache"
)

type fakeFetcher struct {
	calls    int
	title    string
	artist   string
	duration float64
	text     string
	err      error
}

func (f *fakeFetcher) GetLyricsByInfo(ctx context.Context, title, artist string, duration float64) (string, error) {
	f.calls++
	f.title, f.artist, f.duration = title, artist, duration
	return f.text, f.err
}

type fakeAI struct {
	reply string
	err   error
	calls int
}

func (f *fakeAI) Name() string { return "fake" }

func (f *fakeAI) HandleText(ctx context.Context, msg string) (string, error) {
	f.calls++
	return f.reply, f.err
}

type memKV struct {
	data map[string]string
	ttl  time.Duration
}

func (m *memKV) Get(ctx context.Context, key string) (string, error) {
	return m.data[key], nil
}

func (m *memKV) SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.data[key] = value.(string)
	m.ttl = expiration
	return nil
}

func TestProviderWithoutAISplitsIdentifier(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{text: "[00:01.00]hello"}
	p := NewProvider(fetcher, Options{CacheDir: dir, Duration: func() float64 { return 180 }})

	text, err := p.GetLyrics(context.Background(), "Some Artist - Some/Song")
	if err != nil {
		t.Fatalf("GetLyrics failed: %v", err)
	}
	if text != "[00:01.00]hello" {
		t.Errorf("unexpected lyrics %q", text)
	}
	if fetcher.title != "Some/Song" || fetcher.artist != "Some Artist" || fetcher.duration != 180 {
		t.Errorf("unexpected fetch args %+v", fetcher)
	}

	// 第二次从文件缓存读取
	if _, err := p.GetLyrics(context.Background(), "Some Artist - Some/Song"); err != nil {
		t.Fatalf("cached GetLyrics failed: %v", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("expected 1 fetch, got %d", fetcher.calls)
	}
	if _, err := os.Stat(filepath.Join(dir, "Some-Song-Some Artist.lrc")); err != nil {
		t.Errorf("cache file not written: %v", err)
	}
}

func TestProviderUsesAIAndTitleCache(t *testing.T) {
	titles, err := musiccache.Open(filepath.Join(t.TempDir(), "music_cache.list"))
	if err != nil {
		t.Fatalf("musiccache.Open failed: %v", err)
	}
	ai := &fakeAI{reply: "```json\n{\"is_song\": true, \"title\": \"晴天\", \"artist\": \"周杰伦\"}\n```"}
	fetcher := &fakeFetcher{text: "[00:01.00]故事的小黄花"}
	remote := &memKV{data: map[string]string{}}

	p := NewProvider(fetcher, Options{AI: ai, Titles: titles, Remote: remote})

	for i := 0; i < 2; i++ {
		if _, err := p.GetLyrics(context.Background(), "周杰伦 Jay Chou【晴天 Sunny Day】Official MV"); err != nil {
			t.Fatalf("GetLyrics failed: %v", err)
		}
	}
	if ai.calls != 1 {
		t.Errorf("AI should be queried once, got %d", ai.calls)
	}
	if fetcher.calls != 1 {
		t.Errorf("second lookup should hit redis, got %d fetches", fetcher.calls)
	}
	if remote.data["lyrics:lrc:晴天-周杰伦"] == "" || remote.ttl != redisCacheTTL {
		t.Errorf("redis cache not populated: %+v", remote)
	}
}

func TestProviderNotSong(t *testing.T) {
	p := NewProvider(&fakeFetcher{}, Options{AI: &fakeAI{reply: `{"is_song": false}`}})
	_, err := p.GetLyrics(context.Background(), "Podcast episode 12")
	if !errors.Is(err, ErrNotSong) {
		t.Errorf("expected ErrNotSong, got %v", err)
	}
}

func TestProviderFetchError(t *testing.T) {
	p := NewProvider(&fakeFetcher{err: errors.New("upstream down")}, Options{})
	if _, err := p.Lookup(context.Background(), SongInfo{Title: "a", Artist: "b", IsSong: true}); err == nil {
		t.Error("expected error from fetcher to propagate")
	}
}
