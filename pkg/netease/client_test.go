package netease

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestRequestRetry(t *testing.T) {
	tests := []struct {
		name      string
		failures  int // 前几次返回 500
		delay     time.Duration
		timeout   time.Duration
		wantCalls int
		wantErr   bool
	}{
		{name: "RecoversOnThirdAttempt", failures: 2, wantCalls: 3},
		{name: "GivesUpAfterMaxRetries", failures: 5, wantCalls: 3, wantErr: true},
		{name: "PerAttemptTimeout", delay: 300 * time.Millisecond, timeout: 50 * time.Millisecond, wantCalls: 3, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)
				if tt.delay > 0 {
					select {
					case <-time.After(tt.delay):
					case <-r.Context().Done():
						return
					}
				}
				if int(n) <= tt.failures {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				w.Write([]byte(`{"result":{"songs":[{"id":123,"name":"Test Song","artists":[{"name":"Test Artist"}]}]}}`))
			}))
			defer server.Close()

			client := NewClient(Options{WebBase: server.URL, MaxRetries: 3, RequestTimeout: tt.timeout})
			id, err := client.SearchSong(context.Background(), "Test Song", "Test Artist")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got id %q", id)
				}
			} else if err != nil || id != "123" {
				t.Fatalf("SearchSong = %q, %v", id, err)
			}
			if got := atomic.LoadInt32(&calls); int(got) != tt.wantCalls {
				t.Errorf("expected %d calls, got %d", tt.wantCalls, got)
			}
		})
	}
}

func TestRequestCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(Options{WebBase: server.URL})
	if _, err := client.SearchSong(ctx, "a", "b"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSearchAndLyrics(t *testing.T) {
	var gotCookie string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/search/get/web", func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		if r.URL.Query().Get("s") != "晴天" {
			t.Errorf("unexpected search term %q", r.URL.Query().Get("s"))
		}
		w.Write([]byte(`{"result":{"songs":[
			{"id":1,"name":"晴天 (Live)","artists":[{"name":"Someone"}]},
			{"id":186016,"name":"晴天","artists":[{"name":"周杰伦"}]}
		]}}`))
	})
	mux.HandleFunc("/api/song/lyric", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") != "186016" {
			t.Errorf("unexpected song id %q", r.URL.Query().Get("id"))
		}
		w.Write([]byte(`{"lrc":{"lyric":"[00:01.00]故事的小黄花\n[00:05.00]从出生那年就飘着"},
			"tlyric":{"lyric":"[00:01.00]The little yellow flower"}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(Options{WebBase: server.URL, Cookie: "MUSIC_U=abc", Translate: true})

	songID, err := client.SearchSong(context.Background(), "晴天", "周杰伦")
	if err != nil {
		t.Fatalf("SearchSong failed: %v", err)
	}
	if songID != "186016" {
		t.Errorf("expected song 186016, got %s", songID)
	}
	if gotCookie != "MUSIC_U=abc" {
		t.Errorf("expected cookie to be forwarded, got %q", gotCookie)
	}

	lrc, err := client.GetLyrics(context.Background(), songID)
	if err != nil {
		t.Fatalf("GetLyrics failed: %v", err)
	}
	want := "[00:01.00]故事的小黄花\n[00:01.00]The little yellow flower\n[00:05.00]从出生那年就飘着"
	if lrc != want {
		t.Errorf("unexpected combined lyrics:\n%s", lrc)
	}
}

func TestGetLyricsNoLyric(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"nolyric":true,"lrc":{"lyric":""}}`))
	}))
	defer server.Close()

	client := NewClient(Options{WebBase: server.URL})
	_, err := client.GetLyrics(context.Background(), "1")
	if !errors.Is(err, ErrNoLyrics) {
		t.Fatalf("expected ErrNoLyrics, got %v", err)
	}
}

func TestQRLogin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login/qr/key", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("timestamp") == "" {
			t.Error("expected timestamp parameter")
		}
		w.Write([]byte(`{"data":{"code":200,"unikey":"key-123"},"code":200}`))
	})
	mux.HandleFunc("/login/qr/check", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "key-123" {
			t.Errorf("unexpected key %q", r.URL.Query().Get("key"))
		}
		w.Write([]byte(`{"code":803,"message":"授权登陆成功","cookie":"MUSIC_U=xyz;"}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(Options{APIBase: server.URL + "/"})

	key, err := client.AcquireQRKey(context.Background())
	if err != nil {
		t.Fatalf("AcquireQRKey failed: %v", err)
	}
	if key != "key-123" {
		t.Errorf("expected key-123, got %s", key)
	}

	status, err := client.CheckQR(context.Background(), key)
	if err != nil {
		t.Fatalf("CheckQR failed: %v", err)
	}
	if status.Code != 803 || status.Cookie != "MUSIC_U=xyz;" {
		t.Errorf("unexpected status %+v", status)
	}

	if url := QRLoginURL(key); !strings.HasSuffix(url, "codekey=key-123") {
		t.Errorf("unexpected qr url %s", url)
	}
}

func TestAcquireQRKeyMissingUnikey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"code":502},"code":200}`))
	}))
	defer server.Close()

	client := NewClient(Options{APIBase: server.URL})
	if _, err := client.AcquireQRKey(context.Background()); err == nil {
		t.Error("expected error when unikey is missing")
	}
}

func TestCombineLyricsKeepsOriginalOrder(t *testing.T) {
	original := "[ti:Song]\n[00:02.00]second\n[00:01.00]first\n[00:03.00]"
	translated := "[00:01.00]eins\n[00:02.00]zwei\n[00:03.00]drei"

	got := combineLyrics(original, translated)
	want := "[ti:Song]\n[00:02.00]second\n[00:02.00]zwei\n[00:01.00]first\n[00:01.00]eins\n[00:03.00]"
	if got != want {
		t.Errorf("combineLyrics =\n%s\nwant\n%s", got, want)
	}
}
