package lyrics

import (
	"bufio"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Line 一行带时间戳的歌词
type Line struct {
	Time        float64 // 时间戳（秒）
	Text        string
	Translation string // 仅 MergeTranslations 之后可能有值
}

// FormatError 输入不是文本时返回
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("lyrics: input is not text: %s", e.Reason)
}

// Track 解析后的歌词，按时间升序排列，创建后不可修改
type Track struct {
	lines []Line
}

// Cursor 当前播放到的歌词行，-1 表示第一行还未开始
type Cursor struct {
	Index int
}

// NewCursor 返回新歌曲加载时的初始游标
func NewCursor() Cursor {
	return Cursor{Index: -1}
}

// WindowLine 可见窗口中的一行
type WindowLine struct {
	Line
	IsCurrent bool
}

var (
	// 行首可以连续出现多个时间标签，例如 [00:01.00][00:30.00]副歌
	leadingTagsRe = regexp.MustCompile(`^((?:\[\d+:\d{1,2}\.\d{1,3}\])+)(.*)$`)
	tagRe         = regexp.MustCompile(`\[(\d+):(\d{1,2})\.(\d{1,3})\]`)
)

// Parse 解析LRC格式歌词，不匹配的行会被忽略
func Parse(raw string) (Track, error) {
	if !utf8.ValidString(raw) {
		return Track{}, &FormatError{Reason: "invalid utf-8"}
	}
	if strings.IndexByte(raw, 0) >= 0 {
		return Track{}, &FormatError{Reason: "contains NUL byte"}
	}

	var result []Line
	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), len(raw)+1)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		match := leadingTagsRe.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		text := strings.TrimSpace(match[2])
		for _, tag := range tagRe.FindAllStringSubmatch(match[1], -1) {
			ts, ok := tagSeconds(tag[1], tag[2], tag[3])
			if !ok {
				continue
			}
			result = append(result, Line{Time: ts, Text: text})
		}
	}
	if err := scanner.Err(); err != nil {
		return Track{}, &FormatError{Reason: err.Error()}
	}

	sort.SliceStable(result, func(i, j int) bool { return result[i].Time < result[j].Time })
	return Track{lines: result}, nil
}

func tagSeconds(minStr, secStr, fracStr string) (float64, bool) {
	minutes, err := strconv.Atoi(minStr)
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.Atoi(secStr)
	if err != nil {
		return 0, false
	}
	frac, err := strconv.Atoi(fracStr)
	if err != nil {
		return 0, false
	}
	// 小数位数决定精度：.5 是 500ms，.49 是 490ms
	return float64(minutes*60+seconds) + float64(frac)/math.Pow10(len(fracStr)), true
}

// MergeTranslations 把紧跟在原文后、时间戳相同的一行并入原文的 Translation。
// 网易云的翻译歌词就是这样排列的；不合并的话按时间戳查找会落在译文上。
func (t Track) MergeTranslations() Track {
	merged := make([]Line, 0, len(t.lines))
	for _, l := range t.lines {
		if n := len(merged); n > 0 {
			prev := &merged[n-1]
			if prev.Time == l.Time && prev.Translation == "" && prev.Text != "" && l.Text != "" {
				prev.Translation = l.Text
				continue
			}
		}
		merged = append(merged, l)
	}
	return Track{lines: merged}
}

// Len 歌词行数
func (t Track) Len() int {
	return len(t.lines)
}

// Empty 没有任何可同步的歌词
func (t Track) Empty() bool {
	return len(t.lines) == 0
}

// Line 返回第i行
func (t Track) Line(i int) Line {
	return t.lines[i]
}

// Lines 返回所有歌词行的拷贝
func (t Track) Lines() []Line {
	out := make([]Line, len(t.lines))
	copy(out, t.lines)
	return out
}

// Duration 最后一行歌词的时间戳
func (t Track) Duration() float64 {
	if len(t.lines) == 0 {
		return 0
	}
	return t.lines[len(t.lines)-1].Time
}

// IndexAt 找到时间戳 <= position 的最后一行，找不到返回 -1
func (t Track) IndexAt(position float64) int {
	// 第一行 Time > position 的位置，减一即为当前行
	return sort.Search(len(t.lines), func(i int) bool {
		return t.lines[i].Time > position
	}) - 1
}

// AdvanceTo 根据播放位置重新计算游标，每次都从头计算，支持任意方向的跳转
func (t Track) AdvanceTo(c Cursor, position float64) (Cursor, bool) {
	idx := t.IndexAt(position)
	return Cursor{Index: idx}, idx != c.Index
}

// VisibleWindow 返回当前行前后 radius 行
func (t Track) VisibleWindow(c Cursor, radius int) []WindowLine {
	if c.Index < 0 || c.Index >= len(t.lines) {
		return nil
	}
	if radius < 0 {
		radius = 0
	}

	start := max(0, c.Index-radius)
	end := min(len(t.lines)-1, c.Index+radius)

	window := make([]WindowLine, 0, end-start+1)
	for i := start; i <= end; i++ {
		window = append(window, WindowLine{Line: t.lines[i], IsCurrent: i == c.Index})
	}
	return window
}
