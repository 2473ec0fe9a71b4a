package player

import (
	"os/exec"
	"strconv"
	"strings"
)

// GetCurrentSong 返回 "artist - title" 形式的媒体标题
func GetCurrentSong() (string, error) {
	cmd := exec.Command("playerctl", "metadata", "--format", `{{artist}} - {{title}}`)
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

// GetCurrentPlayTime 播放位置（秒），失败时为 0
func GetCurrentPlayTime() float64 {
	out, err := exec.Command("playerctl", "position").Output()
	if err != nil {
		return 0
	}
	return parseSeconds(string(out))
}

// GetCurrentDuration 歌曲时长（秒），播放器没有提供时为 0
func GetCurrentDuration() float64 {
	out, err := exec.Command("playerctl", "metadata", "mpris:length").Output()
	if err != nil {
		return 0
	}
	return parseMicroseconds(string(out))
}

func parseSeconds(s string) float64 {
	seconds, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || seconds < 0 {
		return 0
	}
	return seconds
}

// mpris:length 单位是微秒
func parseMicroseconds(s string) float64 {
	us, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || us <= 0 {
		return 0
	}
	return float64(us) / 1e6
}
