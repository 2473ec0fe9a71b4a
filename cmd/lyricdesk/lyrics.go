package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"lyricdesk/internal/app"
	"lyricdesk/internal/lyrics"
	"lyricdesk/pkg/tencent"

	"github.com/spf13/cobra"
)

var (
	previewAt        float64
	previewRadius    int
	previewTranslate bool
	previewFile      string
)

var lyricsCmd = &cobra.Command{
	Use:   "lyrics",
	Short: "lyrics utilities",
}

var previewCmd = &cobra.Command{
	Use:   "preview [artist] [title]",
	Short: "show the lyric window at a playback position",
	Long: `fetches lyrics for the given song (or reads --file) and prints the lines
visible at --at seconds, marking the current line.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if previewFile != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().Float64Var(&previewAt, "at", 0, "playback position in seconds")
	previewCmd.Flags().IntVarP(&previewRadius, "radius", "r", -1, "lines shown before and after the current one (default from config)")
	previewCmd.Flags().BoolVarP(&previewTranslate, "translate", "t", false, "translate the visible lines")
	previewCmd.Flags().StringVarP(&previewFile, "file", "f", "", "read an .lrc file instead of fetching")
	lyricsCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(lyricsCmd)
}

func runPreview(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	radius := previewRadius
	if radius < 0 {
		radius = cfg.App.WindowRadius
	}

	var deps *app.Deps
	if previewFile == "" || previewTranslate {
		d, err := app.NewDeps(ctx, cfg)
		if err != nil {
			return err
		}
		defer d.Close()
		deps = d
	}

	var raw string
	if previewFile != "" {
		data, err := os.ReadFile(previewFile)
		if err != nil {
			return err
		}
		raw = string(data)
	} else {
		text, err := deps.Provider.Lookup(ctx, lyrics.SongInfo{Artist: args[0], Title: args[1], IsSong: true})
		if err != nil {
			return err
		}
		raw = text
	}

	track, err := lyrics.Parse(raw)
	if err != nil {
		return err
	}
	if track.Empty() {
		return errors.New("no timed lyric lines found")
	}

	track = track.MergeTranslations()
	cursor, _ := track.AdvanceTo(lyrics.NewCursor(), previewAt)
	window := track.VisibleWindow(cursor, radius)

	var translator tencent.Translator
	if previewTranslate {
		if deps.Translator == nil {
			return errors.New("translation requires [tencent] secret_id and secret_key in the config")
		}
		translator = deps.Translator
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d lines, %s\n", track.Len(), formatTimestamp(track.Duration()))
	if len(window) == 0 {
		fmt.Fprintf(out, "no line has started at %s\n", formatTimestamp(previewAt))
		return nil
	}
	printWindow(ctx, out, window, translator)
	return nil
}

// printWindow 当前行前面标 '>'，翻译缩进在原文下一行
func printWindow(ctx context.Context, w io.Writer, window []lyrics.WindowLine, translator tencent.Translator) {
	for _, l := range window {
		marker := " "
		if l.IsCurrent {
			marker = ">"
		}
		fmt.Fprintf(w, "%s [%s] %s\n", marker, formatTimestamp(l.Time), l.Text)

		if l.Translation != "" {
			fmt.Fprintf(w, "             %s\n", l.Translation)
			continue
		}
		if translator == nil || strings.TrimSpace(l.Text) == "" {
			continue
		}
		tctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		text, err := translator.Translate(tctx, l.Text)
		cancel()
		if err != nil {
			fmt.Fprintf(w, "             (translation failed: %v)\n", err)
			continue
		}
		if text != "" && text != l.Text {
			fmt.Fprintf(w, "             %s\n", text)
		}
	}
}

// formatTimestamp mm:ss.xx
func formatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	d := time.Duration(seconds * float64(time.Second)).Round(10 * time.Millisecond)
	minutes := int(d / time.Minute)
	rest := (d % time.Minute).Seconds()
	return fmt.Sprintf("%02d:%05.2f", minutes, rest)
}
