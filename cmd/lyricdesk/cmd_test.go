package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"lyricdesk/internal/lyrics"

	"github.com/skip2/go-qrcode"
)

func TestFormatTimestamp(t *testing.T) {
	tests := map[float64]string{
		0:       "00:00.00",
		12.5:    "00:12.50",
		62.003:  "01:02.00",
		599.999: "10:00.00",
		-1:      "00:00.00",
	}
	for in, want := range tests {
		if got := formatTimestamp(in); got != want {
			t.Errorf("formatTimestamp(%v) = %q, want %q", in, got, want)
		}
	}
}

type upperTranslator struct{}

func (upperTranslator) Translate(ctx context.Context, text string) (string, error) {
	return strings.ToUpper(text), nil
}

func TestPrintWindow(t *testing.T) {
	track, err := lyrics.Parse("[00:01.00]one\n[00:02.00]two\n[00:03.00]three")
	if err != nil {
		t.Fatal(err)
	}
	cursor, _ := track.AdvanceTo(lyrics.NewCursor(), 2.2)
	window := track.VisibleWindow(cursor, 1)

	var buf bytes.Buffer
	printWindow(context.Background(), &buf, window, nil)
	want := "  [00:01.00] one\n> [00:02.00] two\n  [00:03.00] three\n"
	if buf.String() != want {
		t.Errorf("got\n%s\nwant\n%s", buf.String(), want)
	}

	buf.Reset()
	printWindow(context.Background(), &buf, window[1:2], upperTranslator{})
	if !strings.Contains(buf.String(), "TWO") {
		t.Errorf("expected translation line, got %q", buf.String())
	}
}

func TestPrintWindowMergedTranslation(t *testing.T) {
	track, err := lyrics.Parse("[00:01.00]hello\n[00:01.00]你好")
	if err != nil {
		t.Fatal(err)
	}
	track = track.MergeTranslations()
	cursor, _ := track.AdvanceTo(lyrics.NewCursor(), 1)

	var buf bytes.Buffer
	printWindow(context.Background(), &buf, track.VisibleWindow(cursor, 0), upperTranslator{})
	want := "> [00:01.00] hello\n             你好\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestRenderQR(t *testing.T) {
	text := "https://music.163.com/login?codekey=abc"
	qr, err := qrcode.New(text, qrcode.Medium)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := renderQR(&buf, text, false); err != nil {
		t.Fatalf("renderQR failed: %v", err)
	}
	rows := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(rows) != len(qr.Bitmap()) {
		t.Errorf("expected %d rows, got %d", len(qr.Bitmap()), len(rows))
	}
}
