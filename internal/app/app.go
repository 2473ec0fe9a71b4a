package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"lyricdesk/internal/config"
	"lyricdesk/internal/i3block"
	"lyricdesk/internal/ipc"
	"lyricdesk/internal/lyrics"
	"lyricdesk/internal/player"
	"lyricdesk/pkg/tencent"

	"github.com/rs/zerolog/log"
)

const (
	tickInterval     = 50 * time.Millisecond
	finishGrace      = 5.0 // s
	fetchTimeout     = 30 * time.Second
	translateTimeout = 3 * time.Second

	statusNoMusic  = "No music playing..."
	statusNoLyrics = "♪ 暂无歌词 ♪"
	statusUpcoming = "♪ 即将开始... ♪"
	statusFinished = "♪ 歌曲结束 ♪"
)

type broadcaster interface {
	Broadcast(msg ipc.Message)
}

type lyricSource interface {
	GetLyrics(ctx context.Context, songIdentifier string) (string, error)
}

type notifier interface {
	Notify() error
}

type App struct {
	cfg        *config.Config
	ipcServer  *ipc.Server
	out        broadcaster
	source     lyricSource
	translator tencent.Translator
	notifier   notifier

	currentSong string
	idle        bool // 已推送过 "No music playing"
	mutex       sync.Mutex

	// 播放器
	song     func() (string, error)
	position func() float64

	// 歌词调度器控制
	schedulerMutex  sync.Mutex
	schedulerCancel context.CancelFunc
	schedulerDone   chan struct{}

	publishMu sync.Mutex
	seq       uint64
}

func New(cfg *config.Config, d *Deps) *App {
	server := ipc.NewServer(cfg.App.SocketPath, ipc.DefaultMirrorPath)
	a := &App{
		cfg:        cfg,
		ipcServer:  server,
		out:        server,
		source:     d.Provider,
		translator: d.Translator,
		song:       player.GetCurrentSong,
		position:   player.GetCurrentPlayTime,
	}
	if cfg.App.I3Blocks {
		a.notifier = i3block.NewController(0)
	}
	return a
}

// Run 直到 ctx 结束
func (a *App) Run(ctx context.Context) error {
	if err := os.MkdirAll(a.cfg.App.CacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory %s: %w", a.cfg.App.CacheDir, err)
	}
	log.Info().Str("cache_dir", a.cfg.App.CacheDir).Msg("Lyrics cache directory")

	if err := a.ipcServer.Start(); err != nil {
		return fmt.Errorf("failed to start IPC server: %w", err)
	}
	defer a.ipcServer.Close()

	if c, ok := a.notifier.(*i3block.Controller); ok {
		if err := c.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start i3block controller")
		}
		defer c.Stop()
	}

	ticker := time.NewTicker(a.cfg.App.CheckInterval)
	defer ticker.Stop()

	log.Info().Msg("Starting player check loop...")
	for {
		a.updateSongInfo(ctx)
		select {
		case <-ctx.Done():
			a.stopScheduler()
			log.Info().Msg("Player check loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (a *App) broadcast(msg ipc.Message) {
	a.out.Broadcast(msg)
	if a.notifier != nil {
		if err := a.notifier.Notify(); err != nil {
			log.Debug().Err(err).Msg("Failed to notify i3blocks")
		}
	}
}

func (a *App) updateSongInfo(ctx context.Context) {
	songIdentifier, err := a.song()
	if err != nil || songIdentifier == "" {
		a.mutex.Lock()
		stopped := a.currentSong != ""
		first := !a.idle
		a.currentSong = ""
		a.idle = true
		a.mutex.Unlock()
		if stopped {
			a.stopScheduler()
		}
		// 只在状态变化时推送
		if stopped || first {
			a.publish(ipc.StatusMessage(statusNoMusic))
		}
		return
	}

	a.mutex.Lock()
	if songIdentifier == a.currentSong {
		a.mutex.Unlock()
		return
	}
	log.Info().Msg("-----------------------------------------------------")
	log.Info().Str("song", songIdentifier).Msg("New song detected")
	a.currentSong = songIdentifier
	a.idle = false
	a.mutex.Unlock()

	a.stopScheduler()
	a.publish(ipc.StatusMessage(fmt.Sprintf("... Searching for lyrics for %s ...", songIdentifier)))

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	lyricsText, err := a.source.GetLyrics(fetchCtx, songIdentifier)
	if err != nil {
		if errors.Is(err, lyrics.ErrNotSong) {
			log.Info().Str("song", songIdentifier).Msg("Media is not a song")
		} else {
			log.Error().Err(err).Msg("Failed to get lyrics")
		}
		a.publish(ipc.StatusMessage(statusNoLyrics))
		return
	}

	track, err := lyrics.Parse(lyricsText)
	if err != nil {
		log.Error().Err(err).Msg("Failed to parse lyrics")
		a.publish(ipc.StatusMessage(statusNoLyrics))
		return
	}
	if track.Empty() {
		log.Warn().Msg("No timed lyric lines found")
		a.publish(ipc.StatusMessage(statusNoLyrics))
		return
	}

	a.startLyricScheduler(ctx, songIdentifier, track.MergeTranslations())
}

// stopScheduler 取消当前调度器并等待它退出
func (a *App) stopScheduler() {
	a.schedulerMutex.Lock()
	cancel, done := a.schedulerCancel, a.schedulerDone
	a.schedulerCancel, a.schedulerDone = nil, nil
	a.schedulerMutex.Unlock()

	if cancel != nil {
		log.Info().Msg("Stopping previous lyric scheduler")
		cancel()
		<-done
	}
}

func (a *App) startLyricScheduler(parent context.Context, song string, track lyrics.Track) {
	a.stopScheduler()

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	a.schedulerMutex.Lock()
	a.schedulerCancel = cancel
	a.schedulerDone = done
	a.schedulerMutex.Unlock()

	syncer := lyrics.NewSynchronizer(track, a.cfg.App.LeadOffset, a.cfg.App.WindowRadius)
	log.Info().Int("lines_count", track.Len()).Float64("duration", track.Duration()).Msg("Starting lyric scheduler")

	go func() {
		defer close(done)
		defer log.Info().Msg("Lyric scheduler stopped")
		a.runScheduler(ctx, song, syncer)
	}()
}

func (a *App) runScheduler(ctx context.Context, song string, syncer *lyrics.Synchronizer) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	a.publish(ipc.StatusMessage(statusUpcoming))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// 每次都重新获取播放器时间，避免累积误差
			position := a.position()
			if position < 0 {
				log.Warn().Float64("player_time", position).Msg("Invalid player time")
				continue
			}

			if window, changed := syncer.Update(position); changed {
				msg := windowMessage(song, window)
				if msg.Current < 0 {
					msg = ipc.StatusMessage(statusUpcoming)
				} else {
					cur := window[msg.Current]
					log.Debug().
						Int("index", syncer.Cursor().Index).
						Float64("player_time", position).
						Float64("lyric_time", cur.Time).
						Str("lyric", cur.Text).
						Msg("Broadcasting lyric")
				}
				seq := a.publish(msg)
				if msg.Current >= 0 && msg.Translation == "" && a.translator != nil {
					go a.translate(ctx, seq, msg)
				}
			}

			if syncer.Finished(position, finishGrace) {
				log.Info().
					Float64("current_time", position).
					Float64("duration", syncer.Track().Duration()).
					Msg("Song finished")
				a.publish(ipc.StatusMessage(statusFinished))
				return
			}
		}
	}
}

// translate 翻译当前行；期间歌词已经换行则丢弃结果
func (a *App) translate(ctx context.Context, seq uint64, msg ipc.Message) {
	ctx, cancel := context.WithTimeout(ctx, translateTimeout)
	defer cancel()

	text, err := a.translator.Translate(ctx, msg.Lines[msg.Current])
	if err != nil {
		log.Debug().Err(err).Msg("Failed to translate lyric")
		return
	}
	if text == "" || text == msg.Lines[msg.Current] {
		return
	}
	msg.Translation = text

	a.publishMu.Lock()
	defer a.publishMu.Unlock()
	if a.seq == seq {
		a.broadcast(msg)
	}
}

// publish 广播新的一帧并返回它的序号
func (a *App) publish(msg ipc.Message) uint64 {
	a.publishMu.Lock()
	defer a.publishMu.Unlock()
	a.seq++
	a.broadcast(msg)
	return a.seq
}

func windowMessage(song string, window []lyrics.WindowLine) ipc.Message {
	msg := ipc.Message{Song: song, Lines: make([]string, len(window)), Current: -1}
	for i, l := range window {
		msg.Lines[i] = l.Text
		if l.IsCurrent {
			msg.Current = i
			msg.Translation = l.Translation
		}
	}
	return msg
}
